package database

import (
	"context"
	"time"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/driftworks/syncbridge/pkg/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

func NewSyncUserRepo(log logger.Logger, db *DB) domain.SyncUserRepo {
	return &SyncUserRepo{
		log: log.With().Str("repo", "sync_user").Logger(),
		db:  db,
	}
}

type SyncUserRepo struct {
	log zerolog.Logger
	db  *DB
}

// Store inserts a new sync user. Optional fields that are unset stay out of
// the insert entirely so their columns keep NULLs instead of empty values.
func (r *SyncUserRepo) Store(ctx context.Context, input domain.SyncUserCreate) (*domain.SyncUser, error) {
	credentials, err := domain.CanonicalPayload(input.Credentials)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize credentials")
	}
	state, err := domain.CanonicalState(input.State)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize state")
	}

	syncUser := domain.SyncUser{
		UserID:      input.UserID,
		Provider:    input.Provider.Canonical(),
		Name:        input.Name,
		Email:       input.Email,
		Credentials: credentials,
		State:       state,
	}

	omit := make([]string, 0, 4)
	if syncUser.Name == "" {
		omit = append(omit, "name")
	}
	if syncUser.Email == "" {
		omit = append(omit, "email")
	}
	if len(syncUser.Credentials) == 0 {
		omit = append(omit, "credentials")
	}
	if len(syncUser.State) == 0 {
		omit = append(omit, "state")
	}

	result := r.db.Get().WithContext(ctx).Omit(omit...).Create(&syncUser)
	if result.Error != nil {
		r.log.Error().Err(result.Error).Str("provider", syncUser.Provider.String()).Msg("Failed to store sync user")
		return nil, errors.Wrap(result.Error, "failed to store sync user")
	}

	r.log.Debug().Int("id", syncUser.ID).Str("provider", syncUser.Provider.String()).Msg("Stored sync user")
	return &syncUser, nil
}

// FindByID retrieves a sync user by id. A missing row yields nil without an
// error.
func (r *SyncUserRepo) FindByID(ctx context.Context, id int) (*domain.SyncUser, error) {
	var syncUser domain.SyncUser
	result := r.db.Get().WithContext(ctx).
		Where("id = ?", id).
		First(&syncUser)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Error().Err(result.Error).Int("id", id).Msg("Failed to find sync user by id")
		return nil, errors.Wrap(result.Error, "failed to find sync user by id")
	}

	return &syncUser, nil
}

// FindByUser retrieves every sync user owned by userID, narrowed to a single
// id when syncID is non-nil. An empty result is returned as-is, never as an
// error.
func (r *SyncUserRepo) FindByUser(ctx context.Context, userID uuid.UUID, syncID *int) ([]domain.SyncUser, error) {
	query := r.db.Get().WithContext(ctx).Where("user_id = ?", userID)
	if syncID != nil {
		query = query.Where("id = ?", *syncID)
	}

	var syncUsers []domain.SyncUser
	result := query.Order("id asc").Find(&syncUsers)
	if result.Error != nil {
		r.log.Error().Err(result.Error).Str("userID", userID.String()).Msg("Failed to find sync users for user")
		return nil, errors.Wrap(result.Error, "failed to find sync users for user")
	}

	return syncUsers, nil
}

// FindByState retrieves the sync user whose stored state equals the
// canonical serialization of state. When several rows share a state the
// lowest id wins. A missing row yields nil without an error.
func (r *SyncUserRepo) FindByState(ctx context.Context, state map[string]any) (*domain.SyncUser, error) {
	canonical, err := domain.CanonicalState(state)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize state")
	}

	var syncUser domain.SyncUser
	result := r.db.Get().WithContext(ctx).
		Where("state = ?", canonical).
		Order("id asc").
		First(&syncUser)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Error().Err(result.Error).Msg("Failed to find sync user by state")
		return nil, errors.Wrap(result.Error, "failed to find sync user by state")
	}

	return &syncUser, nil
}

// FindByProvider retrieves every sync user stored for a provider. Both the
// stored value and the query input are canonicalized, so lookups never miss
// on letter case.
func (r *SyncUserRepo) FindByProvider(ctx context.Context, provider domain.Provider) ([]domain.SyncUser, error) {
	var syncUsers []domain.SyncUser
	result := r.db.Get().WithContext(ctx).
		Where("provider = ?", provider.Canonical()).
		Order("id asc").
		Find(&syncUsers)

	if result.Error != nil {
		r.log.Error().Err(result.Error).Str("provider", provider.String()).Msg("Failed to find sync users by provider")
		return nil, errors.Wrap(result.Error, "failed to find sync users by provider")
	}

	return syncUsers, nil
}

// Update patches the row owned by userID whose stored state matches the
// canonical serialization of state. Ownership sits in the predicate, and a
// missing row is a silent no-op.
func (r *SyncUserRepo) Update(ctx context.Context, userID uuid.UUID, state map[string]any, patch domain.SyncUserPatch) error {
	canonical, err := domain.CanonicalState(state)
	if err != nil {
		return errors.Wrap(err, "failed to serialize state")
	}

	values := map[string]interface{}{}
	if patch.Name != nil {
		values["name"] = *patch.Name
	}
	if patch.Email != nil {
		values["email"] = *patch.Email
	}
	if patch.Credentials != nil {
		credentials, err := domain.CanonicalPayload(patch.Credentials)
		if err != nil {
			return errors.Wrap(err, "failed to serialize credentials")
		}
		values["credentials"] = credentials
	}
	if patch.State != nil {
		newState, err := domain.CanonicalState(patch.State)
		if err != nil {
			return errors.Wrap(err, "failed to serialize state")
		}
		values["state"] = newState
	}
	if len(values) == 0 {
		r.log.Debug().Str("userID", userID.String()).Msg("Sync user update carried no changes")
		return nil
	}

	result := r.db.Get().WithContext(ctx).
		Model(&domain.SyncUser{}).
		Where("user_id = ? AND state = ?", userID, canonical).
		Updates(values)

	if result.Error != nil {
		r.log.Error().Err(result.Error).Str("userID", userID.String()).Msg("Failed to update sync user")
		return errors.Wrap(result.Error, "failed to update sync user")
	}

	if result.RowsAffected == 0 {
		r.log.Warn().Str("userID", userID.String()).Msg("Sync user update matched no rows")
	} else {
		r.log.Debug().Str("userID", userID.String()).Int64("rows", result.RowsAffected).Msg("Updated sync user")
	}

	return nil
}

// Delete removes the row only when both id and owner match. A foreign
// owner's row survives even on an id hit, and a missing row is a silent
// no-op.
func (r *SyncUserRepo) Delete(ctx context.Context, id int, userID uuid.UUID) error {
	result := r.db.Get().WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.SyncUser{})

	if result.Error != nil {
		r.log.Error().Err(result.Error).Int("id", id).Msg("Failed to delete sync user")
		return errors.Wrap(result.Error, "failed to delete sync user")
	}

	if result.RowsAffected == 0 {
		r.log.Warn().Int("id", id).Str("userID", userID.String()).Msg("Sync user delete matched no rows")
	} else {
		r.log.Info().Int("id", id).Msg("Deleted sync user")
	}

	return nil
}

// FindAbandonedIDs returns ids of rows that never received credentials and
// were created before cutoff. These are connect attempts whose OAuth
// callback never arrived.
func (r *SyncUserRepo) FindAbandonedIDs(ctx context.Context, cutoff time.Time, limit int) ([]int, error) {
	var ids []int
	query := r.db.Get().WithContext(ctx).
		Model(&domain.SyncUser{}).
		Where("credentials IS NULL AND created_at < ?", cutoff).
		Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	result := query.Pluck("id", &ids)
	if result.Error != nil {
		r.log.Error().Err(result.Error).Msg("Failed to find abandoned sync users")
		return nil, errors.Wrap(result.Error, "failed to find abandoned sync users")
	}

	return ids, nil
}

// DeleteBatch removes the given rows and reports how many went away.
func (r *SyncUserRepo) DeleteBatch(ctx context.Context, ids []int) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := r.db.Get().WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&domain.SyncUser{})

	if result.Error != nil {
		r.log.Error().Err(result.Error).Ints("ids", ids).Msg("Failed to batch delete sync users")
		return 0, errors.Wrap(result.Error, "failed to batch delete sync users")
	}

	return result.RowsAffected, nil
}
