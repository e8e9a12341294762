package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SyncUserRepo interface {
	// Store persists a new sync user and returns it with the generated id.
	// Unset optional fields are omitted from the insert.
	Store(ctx context.Context, input SyncUserCreate) (*SyncUser, error)
	// FindByID returns the sync user with the given id, or nil without an
	// error when no row matches.
	FindByID(ctx context.Context, id int) (*SyncUser, error)
	// FindByUser returns every sync user owned by userID, narrowed to a
	// single record when syncID is non-nil. An empty result is not an error.
	FindByUser(ctx context.Context, userID uuid.UUID, syncID *int) ([]SyncUser, error)
	// FindByState matches on the canonical serialization of state.
	// When several rows share a state the lowest id wins. Returns nil
	// without an error when nothing matches.
	FindByState(ctx context.Context, state map[string]any) (*SyncUser, error)
	// FindByProvider returns every sync user stored for the canonical form
	// of the given provider.
	FindByProvider(ctx context.Context, provider Provider) ([]SyncUser, error)
	// Update patches the row owned by userID whose canonical state matches.
	// A missing row is a silent no-op, not an error.
	Update(ctx context.Context, userID uuid.UUID, state map[string]any, patch SyncUserPatch) error
	// Delete removes the row only when both id and owner match. Ownership
	// sits in the query predicate, so a foreign owner's row survives even
	// on an id hit. A missing row is a silent no-op.
	Delete(ctx context.Context, id int, userID uuid.UUID) error

	// FindAbandonedIDs returns ids of rows without credentials created
	// before cutoff, capped at limit. These are connect attempts whose
	// callback never arrived.
	FindAbandonedIDs(ctx context.Context, cutoff time.Time, limit int) ([]int, error)
	// DeleteBatch removes the given rows and reports how many went away.
	DeleteBatch(ctx context.Context, ids []int) (int64, error)
}

// SyncUser links an application owner to one external file-provider account
// and carries that connection's credentials and correlation state.
type SyncUser struct {
	ID          int            `json:"id" gorm:"primaryKey;autoIncrement;column:id"`
	UserID      uuid.UUID      `json:"user_id" gorm:"column:user_id;type:uuid;index"`
	Provider    Provider       `json:"provider" gorm:"column:provider;size:32;index"`
	Name        string         `json:"name,omitempty" gorm:"column:name"`
	Email       string         `json:"email,omitempty" gorm:"column:email"`
	Credentials datatypes.JSON `json:"credentials,omitempty" gorm:"column:credentials"`
	State       datatypes.JSON `json:"state,omitempty" gorm:"column:state"`
	CreatedAt   time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (SyncUser) TableName() string {
	return "sync_users"
}

// SyncUserCreate is the caller-supplied input for Store.
type SyncUserCreate struct {
	UserID      uuid.UUID      `json:"user_id"`
	Provider    Provider       `json:"provider"`
	Name        string         `json:"name,omitempty"`
	Email       string         `json:"email,omitempty"`
	Credentials map[string]any `json:"credentials,omitempty"`
	State       map[string]any `json:"state,omitempty"`
}

// SyncUserPatch carries the fields an update may change. Nil fields are
// left untouched.
type SyncUserPatch struct {
	Name        *string        `json:"name,omitempty"`
	Email       *string        `json:"email,omitempty"`
	Credentials map[string]any `json:"credentials,omitempty"`
	State       map[string]any `json:"state,omitempty"`
}

// CanonicalState serializes a state payload for storage and equality
// comparisons. json.Marshal writes map keys in sorted order at every
// nesting level, so structurally equal payloads always produce identical
// bytes regardless of construction order.
func CanonicalState(state map[string]any) (datatypes.JSON, error) {
	if state == nil {
		return nil, nil
	}
	b, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// CanonicalPayload serializes an opaque payload (credentials) the same way
// CanonicalState does; the store never looks inside it.
func CanonicalPayload(payload map[string]any) (datatypes.JSON, error) {
	return CanonicalState(payload)
}
