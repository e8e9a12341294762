package http

import (
	"context"
	"net/http"

	"github.com/driftworks/syncbridge/internal/auth"
	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type oauthService interface {
	Providers() []domain.Provider
	BeginConnect(ctx context.Context, userID uuid.UUID, provider domain.Provider) (string, error)
	CompleteConnect(ctx context.Context, state string, code string) (*domain.SyncUser, error)
}

type oauthHandler struct {
	log     zerolog.Logger
	encoder encoder
	service oauthService

	requireSession func(http.Handler) http.Handler
}

func newOAuthHandler(encoder encoder, log zerolog.Logger, service oauthService, requireSession func(http.Handler) http.Handler) *oauthHandler {
	return &oauthHandler{
		log:            log,
		encoder:        encoder,
		service:        service,
		requireSession: requireSession,
	}
}

// Routes keeps the callback public: the provider redirects the user's
// browser there and correlation happens through the state nonce, not the
// session.
func (h oauthHandler) Routes(r chi.Router) {
	r.Get("/providers", h.providers)
	r.Get("/callback", h.callback)

	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)
		r.Post("/{provider}/connect", h.connect)
	})
}

func (h oauthHandler) providers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.encoder.StatusResponse(ctx, w, h.service.Providers(), http.StatusOK)
}

type connectResponse struct {
	URL string `json:"url"`
}

// connect starts the flow for one provider and hands back the consent URL
// the client should send the user to.
func (h oauthHandler) connect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := ownerFromContext(ctx)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	provider, err := domain.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		h.encoder.StatusResponse(ctx, w, errorResponse{Message: err.Error(), Status: http.StatusBadRequest}, http.StatusBadRequest)
		return
	}

	authURL, err := h.service.BeginConnect(ctx, ownerID, provider)
	if err != nil {
		if errors.Is(err, auth.ErrProviderNotConfigured) {
			h.encoder.StatusResponse(ctx, w, errorResponse{Message: err.Error(), Status: http.StatusBadRequest}, http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Str("provider", provider.String()).Msg("Failed to begin connect")
		h.encoder.Error(w, err)
		return
	}

	h.encoder.StatusResponse(ctx, w, connectResponse{URL: authURL}, http.StatusOK)
}

// callback finishes the flow: the state nonce resolves the pending sync
// user, the code is exchanged, and the connected record comes back.
func (h oauthHandler) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		h.encoder.StatusResponse(ctx, w, errorResponse{Message: "state and code are required", Status: http.StatusBadRequest}, http.StatusBadRequest)
		return
	}

	syncUser, err := h.service.CompleteConnect(ctx, state, code)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrCallbackLockedOut):
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		case errors.Is(err, auth.ErrStateNotFound):
			h.encoder.StatusNotFound(ctx, w)
		default:
			h.log.Error().Err(err).Msg("Failed to complete connect")
			h.encoder.Error(w, err)
		}
		return
	}

	h.encoder.StatusResponse(ctx, w, syncUser, http.StatusOK)
}
