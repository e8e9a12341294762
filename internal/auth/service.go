package auth

import (
	"context"
	"sort"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/driftworks/syncbridge/pkg/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
	drive "google.golang.org/api/drive/v3"
)

var (
	ErrProviderNotConfigured = errors.New("oauth provider is not configured")
	ErrStateNotFound         = errors.New("oauth state does not match a pending connect")
	ErrCallbackLockedOut     = errors.New("too many failed callback attempts")
)

// stateField is the key under which the connect nonce is stored in a
// pending sync user's state document.
const stateField = "connect_state"

// Service runs the OAuth connect flow that provisions sync users: a begin
// step that creates a pending record and hands out the consent URL, and a
// callback step that exchanges the authorization code and attaches the
// resulting credentials.
type Service interface {
	Providers() []domain.Provider
	BeginConnect(ctx context.Context, userID uuid.UUID, provider domain.Provider) (string, error)
	CompleteConnect(ctx context.Context, state string, code string) (*domain.SyncUser, error)
}

// LockoutStore guards the callback endpoint against state guessing.
// Threshold crossing is the store's own concern; the flow only records
// failures and checks the flag.
type LockoutStore interface {
	IsLockedOut(ctx context.Context, key string) (bool, error)
	IncrementFailure(ctx context.Context, key string) (int64, error)
	ClearFailures(ctx context.Context, key string) error
}

type service struct {
	log      zerolog.Logger
	configs  map[domain.Provider]*oauth2.Config
	repo     domain.SyncUserRepo
	lockout  LockoutStore
	eventBus EventBus.Bus
}

func NewService(log logger.Logger, cfg *domain.Config, repo domain.SyncUserRepo, lockout LockoutStore, eventBus EventBus.Bus) Service {
	return &service{
		log:      log.With().Str("module", "auth").Logger(),
		configs:  BuildConfigs(cfg.OAuth),
		repo:     repo,
		lockout:  lockout,
		eventBus: eventBus,
	}
}

// BuildConfigs assembles an oauth2 config per provider that has a client id
// set. Providers without one are simply not connectable. The provider
// handlers share these configs for token refresh.
func BuildConfigs(cfg domain.OAuthConfig) map[domain.Provider]*oauth2.Config {
	configs := make(map[domain.Provider]*oauth2.Config)

	if cfg.Google.ClientID != "" {
		configs[domain.ProviderGoogle] = &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			Scopes:       scopesOrDefault(cfg.Google.Scopes, []string{drive.DriveReadonlyScope}),
			Endpoint:     google.Endpoint,
		}
	}

	if cfg.Azure.ClientID != "" {
		tenant := cfg.Azure.Tenant
		if tenant == "" {
			tenant = "common"
		}
		configs[domain.ProviderAzure] = &oauth2.Config{
			ClientID:     cfg.Azure.ClientID,
			ClientSecret: cfg.Azure.ClientSecret,
			RedirectURL:  cfg.Azure.RedirectURL,
			Scopes:       scopesOrDefault(cfg.Azure.Scopes, []string{"Files.Read.All", "offline_access"}),
			Endpoint:     microsoft.AzureADEndpoint(tenant),
		}
	}

	if cfg.Dropbox.ClientID != "" {
		configs[domain.ProviderDropbox] = &oauth2.Config{
			ClientID:     cfg.Dropbox.ClientID,
			ClientSecret: cfg.Dropbox.ClientSecret,
			RedirectURL:  cfg.Dropbox.RedirectURL,
			Scopes:       scopesOrDefault(cfg.Dropbox.Scopes, []string{"files.metadata.read"}),
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://www.dropbox.com/oauth2/authorize",
				TokenURL: "https://api.dropboxapi.com/oauth2/token",
			},
		}
	}

	if cfg.Notion.ClientID != "" {
		configs[domain.ProviderNotion] = &oauth2.Config{
			ClientID:     cfg.Notion.ClientID,
			ClientSecret: cfg.Notion.ClientSecret,
			RedirectURL:  cfg.Notion.RedirectURL,
			// notion grants workspace access as a whole, no scopes
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://api.notion.com/v1/oauth/authorize",
				TokenURL:  "https://api.notion.com/v1/oauth/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		}
	}

	if cfg.GitHub.ClientID != "" {
		configs[domain.ProviderGitHub] = &oauth2.Config{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			RedirectURL:  cfg.GitHub.RedirectURL,
			Scopes:       scopesOrDefault(cfg.GitHub.Scopes, []string{"repo"}),
			Endpoint:     github.Endpoint,
		}
	}

	return configs
}

func scopesOrDefault(scopes []string, fallback []string) []string {
	if len(scopes) > 0 {
		return scopes
	}
	return fallback
}

// Providers lists the providers that have OAuth credentials configured.
func (s *service) Providers() []domain.Provider {
	providers := make([]domain.Provider, 0, len(s.configs))
	for p := range s.configs {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	return providers
}

// BeginConnect creates a pending sync user carrying a one-time state nonce
// and returns the provider's consent URL. The pending record holds no
// credentials; if the user never completes the flow the abandoned sweep
// reaps it.
func (s *service) BeginConnect(ctx context.Context, userID uuid.UUID, provider domain.Provider) (string, error) {
	cfg, ok := s.configs[provider.Canonical()]
	if !ok {
		return "", ErrProviderNotConfigured
	}

	state := uuid.NewString()

	_, err := s.repo.Store(ctx, domain.SyncUserCreate{
		UserID:   userID,
		Provider: provider,
		State:    map[string]any{stateField: state},
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to create pending sync user")
	}

	s.log.Debug().
		Str("provider", provider.String()).
		Str("user_id", userID.String()).
		Msg("Started connect flow")

	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// CompleteConnect resolves the callback state to its pending sync user,
// exchanges the authorization code and stores the token as the sync user's
// credentials. The consumed nonce is replaced so the callback cannot be
// replayed.
func (s *service) CompleteConnect(ctx context.Context, state string, code string) (*domain.SyncUser, error) {
	locked, err := s.lockout.IsLockedOut(ctx, state)
	if err != nil {
		s.log.Error().Err(err).Msg("Lockout check failed")
		// fail closed
		return nil, ErrCallbackLockedOut
	}
	if locked {
		return nil, ErrCallbackLockedOut
	}

	pendingState := map[string]any{stateField: state}

	syncUser, err := s.repo.FindByState(ctx, pendingState)
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up pending connect")
	}
	if syncUser == nil {
		s.recordFailure(ctx, state)
		return nil, ErrStateNotFound
	}

	cfg, ok := s.configs[syncUser.Provider.Canonical()]
	if !ok {
		return nil, ErrProviderNotConfigured
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		s.recordFailure(ctx, state)
		return nil, errors.Wrap(err, "failed to exchange authorization code")
	}

	credentials := map[string]any{
		"access_token": token.AccessToken,
		"token_type":   token.TokenType,
	}
	if token.RefreshToken != "" {
		credentials["refresh_token"] = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		credentials["expiry"] = token.Expiry.UTC().Format(time.RFC3339)
	}

	patch := domain.SyncUserPatch{
		Credentials: credentials,
		State: map[string]any{
			"connected_at": time.Now().UTC().Format(time.RFC3339),
		},
	}

	if err := s.repo.Update(ctx, syncUser.UserID, pendingState, patch); err != nil {
		return nil, errors.Wrap(err, "failed to store credentials")
	}

	if err := s.lockout.ClearFailures(ctx, state); err != nil {
		s.log.Error().Err(err).Msg("Failed to clear callback failures")
	}

	connected, err := s.repo.FindByID(ctx, syncUser.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reload sync user")
	}

	s.log.Info().
		Str("provider", syncUser.Provider.String()).
		Int("sync_id", syncUser.ID).
		Msg("Connect flow completed")

	s.publishConnected(connected)

	return connected, nil
}

func (s *service) recordFailure(ctx context.Context, state string) {
	count, err := s.lockout.IncrementFailure(ctx, state)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to record callback failure")
		return
	}
	s.log.Warn().Int64("failure_count", count).Msg("Connect callback failure recorded")
}

func (s *service) publishConnected(syncUser *domain.SyncUser) {
	if s.eventBus == nil || syncUser == nil {
		return
	}

	event := domain.NotificationEventSyncConnected
	payload := domain.NotificationPayload{
		Subject:   "New sync connected",
		Message:   "A new **" + syncUser.Provider.String() + "** sync was connected.",
		Event:     event,
		Provider:  syncUser.Provider,
		Timestamp: time.Now(),
	}

	s.eventBus.Publish("events:notification", &event, &payload)
}
