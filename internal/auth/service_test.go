package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/driftworks/syncbridge/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeSyncUserRepo struct {
	syncUsers []domain.SyncUser
	nextID    int
}

func newFakeSyncUserRepo() *fakeSyncUserRepo {
	return &fakeSyncUserRepo{nextID: 1}
}

func (f *fakeSyncUserRepo) Store(_ context.Context, create domain.SyncUserCreate) (*domain.SyncUser, error) {
	creds, err := domain.CanonicalPayload(create.Credentials)
	if err != nil {
		return nil, err
	}
	state, err := domain.CanonicalState(create.State)
	if err != nil {
		return nil, err
	}

	su := domain.SyncUser{
		ID:          f.nextID,
		UserID:      create.UserID,
		Provider:    create.Provider.Canonical(),
		Name:        create.Name,
		Email:       create.Email,
		Credentials: creds,
		State:       state,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	f.nextID++
	f.syncUsers = append(f.syncUsers, su)
	return &su, nil
}

func (f *fakeSyncUserRepo) FindByID(_ context.Context, syncID int) (*domain.SyncUser, error) {
	for i := range f.syncUsers {
		if f.syncUsers[i].ID == syncID {
			su := f.syncUsers[i]
			return &su, nil
		}
	}
	return nil, nil
}

func (f *fakeSyncUserRepo) FindByUser(_ context.Context, userID uuid.UUID, syncID *int) ([]domain.SyncUser, error) {
	var out []domain.SyncUser
	for _, su := range f.syncUsers {
		if su.UserID != userID {
			continue
		}
		if syncID != nil && su.ID != *syncID {
			continue
		}
		out = append(out, su)
	}
	return out, nil
}

func (f *fakeSyncUserRepo) FindByState(_ context.Context, state map[string]any) (*domain.SyncUser, error) {
	canonical, err := domain.CanonicalState(state)
	if err != nil {
		return nil, err
	}
	for i := range f.syncUsers {
		if string(f.syncUsers[i].State) == string(canonical) {
			su := f.syncUsers[i]
			return &su, nil
		}
	}
	return nil, nil
}

func (f *fakeSyncUserRepo) FindByProvider(_ context.Context, provider domain.Provider) ([]domain.SyncUser, error) {
	var out []domain.SyncUser
	for _, su := range f.syncUsers {
		if su.Provider == provider.Canonical() {
			out = append(out, su)
		}
	}
	return out, nil
}

func (f *fakeSyncUserRepo) Update(_ context.Context, userID uuid.UUID, state map[string]any, patch domain.SyncUserPatch) error {
	canonical, err := domain.CanonicalState(state)
	if err != nil {
		return err
	}
	for i := range f.syncUsers {
		if f.syncUsers[i].UserID != userID || string(f.syncUsers[i].State) != string(canonical) {
			continue
		}
		if patch.Name != nil {
			f.syncUsers[i].Name = *patch.Name
		}
		if patch.Email != nil {
			f.syncUsers[i].Email = *patch.Email
		}
		if patch.Credentials != nil {
			creds, err := domain.CanonicalPayload(patch.Credentials)
			if err != nil {
				return err
			}
			f.syncUsers[i].Credentials = creds
		}
		if patch.State != nil {
			newState, err := domain.CanonicalState(patch.State)
			if err != nil {
				return err
			}
			f.syncUsers[i].State = newState
		}
		f.syncUsers[i].UpdatedAt = time.Now()
	}
	return nil
}

func (f *fakeSyncUserRepo) Delete(_ context.Context, syncID int, userID uuid.UUID) error {
	for i := range f.syncUsers {
		if f.syncUsers[i].ID == syncID && f.syncUsers[i].UserID == userID {
			f.syncUsers = append(f.syncUsers[:i], f.syncUsers[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeSyncUserRepo) FindAbandonedIDs(_ context.Context, _ time.Time, _ int) ([]int, error) {
	return nil, nil
}

func (f *fakeSyncUserRepo) DeleteBatch(_ context.Context, _ []int) (int64, error) {
	return 0, nil
}

type fakeLockout struct {
	locked   map[string]bool
	failures map[string]int64
	cleared  []string
	checkErr error
}

func newFakeLockout() *fakeLockout {
	return &fakeLockout{locked: make(map[string]bool), failures: make(map[string]int64)}
}

func (f *fakeLockout) IsLockedOut(_ context.Context, key string) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return f.locked[key], nil
}

func (f *fakeLockout) IncrementFailure(_ context.Context, key string) (int64, error) {
	f.failures[key]++
	return f.failures[key], nil
}

func (f *fakeLockout) ClearFailures(_ context.Context, key string) error {
	f.cleared = append(f.cleared, key)
	delete(f.failures, key)
	delete(f.locked, key)
	return nil
}

func newTestConfig() *domain.Config {
	return &domain.Config{
		OAuth: domain.OAuthConfig{
			Google: domain.OAuthProviderConfig{
				ClientID:     "google-client",
				ClientSecret: "google-secret",
				RedirectURL:  "http://localhost:8282/api/oauth/callback",
			},
			Dropbox: domain.OAuthProviderConfig{
				ClientID:     "dropbox-client",
				ClientSecret: "dropbox-secret",
				RedirectURL:  "http://localhost:8282/api/oauth/callback",
			},
		},
	}
}

func stateFromAuthURL(t *testing.T, authURL string) string {
	t.Helper()

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestProvidersListsConfigured(t *testing.T) {
	svc := NewService(logger.Mock(), newTestConfig(), newFakeSyncUserRepo(), newFakeLockout(), EventBus.New())

	assert.Equal(t, []domain.Provider{domain.ProviderDropbox, domain.ProviderGoogle}, svc.Providers())
}

func TestBeginConnectCreatesPendingSyncUser(t *testing.T) {
	repo := newFakeSyncUserRepo()
	svc := NewService(logger.Mock(), newTestConfig(), repo, newFakeLockout(), EventBus.New())

	userID := uuid.New()
	authURL, err := svc.BeginConnect(context.Background(), userID, "Google")
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "google-client", u.Query().Get("client_id"))
	assert.Equal(t, "http://localhost:8282/api/oauth/callback", u.Query().Get("redirect_uri"))

	state := stateFromAuthURL(t, authURL)

	pending, err := repo.FindByState(context.Background(), map[string]any{"connect_state": state})
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, userID, pending.UserID)
	assert.Equal(t, domain.ProviderGoogle, pending.Provider)
	assert.Empty(t, pending.Credentials)
}

func TestBeginConnectUnconfiguredProvider(t *testing.T) {
	svc := NewService(logger.Mock(), newTestConfig(), newFakeSyncUserRepo(), newFakeLockout(), EventBus.New())

	_, err := svc.BeginConnect(context.Background(), uuid.New(), domain.ProviderNotion)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestCompleteConnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/token", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-123","token_type":"Bearer","refresh_token":"rt-456","expires_in":3600}`))
	}))
	defer srv.Close()

	repo := newFakeSyncUserRepo()
	lockout := newFakeLockout()
	bus := EventBus.New()

	published := make(chan domain.NotificationPayload, 1)
	require.NoError(t, bus.Subscribe("events:notification", func(e *domain.NotificationEvent, p *domain.NotificationPayload) {
		published <- *p
	}))

	svc := NewService(logger.Mock(), newTestConfig(), repo, lockout, bus).(*service)
	svc.configs[domain.ProviderGoogle].Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/auth",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}

	userID := uuid.New()
	authURL, err := svc.BeginConnect(context.Background(), userID, domain.ProviderGoogle)
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, srv.Client())

	connected, err := svc.CompleteConnect(ctx, state, "auth-code")
	require.NoError(t, err)
	require.NotNil(t, connected)

	assert.Equal(t, userID, connected.UserID)
	assert.Contains(t, string(connected.Credentials), `"access_token":"at-123"`)
	assert.Contains(t, string(connected.Credentials), `"refresh_token":"rt-456"`)
	assert.Contains(t, string(connected.State), "connected_at")

	// the nonce is consumed
	replayed, err := repo.FindByState(context.Background(), map[string]any{"connect_state": state})
	require.NoError(t, err)
	assert.Nil(t, replayed)

	assert.Contains(t, lockout.cleared, state)

	select {
	case p := <-published:
		assert.Equal(t, domain.NotificationEventSyncConnected, p.Event)
		assert.Equal(t, domain.ProviderGoogle, p.Provider)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connected event")
	}
}

func TestCompleteConnectUnknownState(t *testing.T) {
	lockout := newFakeLockout()
	svc := NewService(logger.Mock(), newTestConfig(), newFakeSyncUserRepo(), lockout, EventBus.New())

	_, err := svc.CompleteConnect(context.Background(), "bogus-state", "auth-code")
	assert.ErrorIs(t, err, ErrStateNotFound)
	assert.EqualValues(t, 1, lockout.failures["bogus-state"])
}

func TestCompleteConnectLockedOut(t *testing.T) {
	lockout := newFakeLockout()
	lockout.locked["hot-state"] = true

	svc := NewService(logger.Mock(), newTestConfig(), newFakeSyncUserRepo(), lockout, EventBus.New())

	_, err := svc.CompleteConnect(context.Background(), "hot-state", "auth-code")
	assert.ErrorIs(t, err, ErrCallbackLockedOut)
}

func TestCompleteConnectFailsClosedOnLockoutError(t *testing.T) {
	lockout := newFakeLockout()
	lockout.checkErr = errors.New("valkey down")

	svc := NewService(logger.Mock(), newTestConfig(), newFakeSyncUserRepo(), lockout, EventBus.New())

	_, err := svc.CompleteConnect(context.Background(), "any-state", "auth-code")
	assert.ErrorIs(t, err, ErrCallbackLockedOut)
}

func TestCompleteConnectExchangeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	repo := newFakeSyncUserRepo()
	lockout := newFakeLockout()

	svc := NewService(logger.Mock(), newTestConfig(), repo, lockout, EventBus.New()).(*service)
	svc.configs[domain.ProviderGoogle].Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/auth",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}

	authURL, err := svc.BeginConnect(context.Background(), uuid.New(), domain.ProviderGoogle)
	require.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, srv.Client())

	_, err = svc.CompleteConnect(ctx, state, "bad-code")
	assert.ErrorContains(t, err, "failed to exchange authorization code")
	assert.EqualValues(t, 1, lockout.failures[state])
}
