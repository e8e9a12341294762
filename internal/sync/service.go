package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/driftworks/syncbridge/internal/notification"
	"github.com/driftworks/syncbridge/internal/provider"
	"github.com/driftworks/syncbridge/pkg/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service interface {
	// Store persists a new sync user and returns it with the generated id.
	Store(ctx context.Context, input domain.SyncUserCreate) (*domain.SyncUser, error)
	// FindByID returns the sync user with the given id, or nil when absent.
	FindByID(ctx context.Context, id int) (*domain.SyncUser, error)
	// FindByUser returns the caller's sync users, optionally narrowed to one
	// id.
	FindByUser(ctx context.Context, userID uuid.UUID, syncID *int) ([]domain.SyncUser, error)
	// FindByState resolves a sync user by its stored state payload.
	FindByState(ctx context.Context, state map[string]any) (*domain.SyncUser, error)
	// FindByProvider returns every sync user connected to a provider.
	FindByProvider(ctx context.Context, p domain.Provider) ([]domain.SyncUser, error)
	// Update patches the caller's sync user matching the state payload.
	Update(ctx context.Context, userID uuid.UUID, state map[string]any, patch domain.SyncUserPatch) error
	// Delete removes the caller's sync user. A missing or foreign row is a
	// silent no-op.
	Delete(ctx context.Context, id int, userID uuid.UUID) error
	// ListFiles dispatches a file listing for the caller's sync user.
	ListFiles(ctx context.Context, syncID int, userID uuid.UUID, opts provider.ListOptions) (*domain.FileListing, error)
}

func NewService(log logger.Logger, repo domain.SyncUserRepo, registry *provider.Registry, notificationSvc notification.Service) Service {
	return &service{
		log:                 log.With().Str("module", "sync").Logger(),
		repo:                repo,
		registry:            registry,
		notificationService: notificationSvc,
	}
}

type service struct {
	log                 zerolog.Logger
	repo                domain.SyncUserRepo
	registry            *provider.Registry
	notificationService notification.Service
}

func (s *service) Store(ctx context.Context, input domain.SyncUserCreate) (*domain.SyncUser, error) {
	syncUser, err := s.repo.Store(ctx, input)
	if err != nil {
		return nil, err
	}

	// A record born with credentials is a live connection; one without is a
	// pending connect attempt and gets announced on callback instead.
	if len(syncUser.Credentials) > 0 {
		s.notifySyncConnected(syncUser)
	}

	return syncUser, nil
}

func (s *service) FindByID(ctx context.Context, id int) (*domain.SyncUser, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) FindByUser(ctx context.Context, userID uuid.UUID, syncID *int) ([]domain.SyncUser, error) {
	return s.repo.FindByUser(ctx, userID, syncID)
}

func (s *service) FindByState(ctx context.Context, state map[string]any) (*domain.SyncUser, error) {
	return s.repo.FindByState(ctx, state)
}

func (s *service) FindByProvider(ctx context.Context, p domain.Provider) ([]domain.SyncUser, error) {
	return s.repo.FindByProvider(ctx, p)
}

func (s *service) Update(ctx context.Context, userID uuid.UUID, state map[string]any, patch domain.SyncUserPatch) error {
	return s.repo.Update(ctx, userID, state, patch)
}

func (s *service) Delete(ctx context.Context, id int, userID uuid.UUID) error {
	// Resolve through the owner predicate first so the removal notice only
	// fires for rows the caller actually owns.
	owned, err := s.repo.FindByUser(ctx, userID, &id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return err
	}

	if len(owned) > 0 {
		s.notifySyncRemoved(&owned[0])
	}

	return nil
}

// ListFiles resolves the caller's sync user, dispatches to the matching
// provider handler, and wraps the result in a file listing envelope.
//
// A sync id that is missing or owned by someone else resolves to nil without
// an error. A stored provider with no registered handler resolves to
// ErrNoSyncFound.
func (s *service) ListFiles(ctx context.Context, syncID int, userID uuid.UUID, opts provider.ListOptions) (*domain.FileListing, error) {
	syncUsers, err := s.repo.FindByUser(ctx, userID, &syncID)
	if err != nil {
		return nil, err
	}
	if len(syncUsers) == 0 {
		s.log.Debug().Int("syncID", syncID).Str("userID", userID.String()).Msg("No sync user for file listing")
		return nil, nil
	}

	syncUser := syncUsers[0]

	lister, ok := s.registry.Lookup(syncUser.Provider)
	if !ok {
		s.log.Warn().Int("syncID", syncID).Str("provider", syncUser.Provider.String()).Msg("No handler for stored provider")
		return nil, domain.ErrNoSyncFound
	}

	files, err := lister.ListFiles(ctx, json.RawMessage(syncUser.Credentials), opts)
	if err != nil {
		if errors.Is(err, domain.ErrNotionClientRequired) {
			return nil, err
		}
		s.log.Error().Err(err).Int("syncID", syncID).Str("provider", syncUser.Provider.String()).Msg("Provider file listing failed")
		return nil, errors.Wrap(err, "failed to list files for sync %d", syncID)
	}

	if files == nil {
		files = []domain.SyncFile{}
	}

	s.log.Debug().Int("syncID", syncID).Str("provider", syncUser.Provider.String()).Int("count", len(files)).Msg("Listed files")
	return &domain.FileListing{Files: files}, nil
}

func (s *service) notifySyncConnected(syncUser *domain.SyncUser) {
	s.notificationService.Send(domain.NotificationEventSyncConnected, domain.NotificationPayload{
		Subject:  "Sync Connected",
		Message:  fmt.Sprintf("A **%s** sync was connected for account **%s**.", syncUser.Provider, syncUser.Email),
		Event:    domain.NotificationEventSyncConnected,
		Provider: syncUser.Provider,
	})
}

func (s *service) notifySyncRemoved(syncUser *domain.SyncUser) {
	s.notificationService.Send(domain.NotificationEventSyncRemoved, domain.NotificationPayload{
		Subject:  "Sync Removed",
		Message:  fmt.Sprintf("The **%s** sync for account **%s** was removed.", syncUser.Provider, syncUser.Email),
		Event:    domain.NotificationEventSyncRemoved,
		Provider: syncUser.Provider,
	})
}
