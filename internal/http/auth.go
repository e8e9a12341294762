package http

import (
	"encoding/json"
	"net/http"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
)

// authHandler manages browser sessions. There are no accounts: an owner id
// is a bookmark-style UUID the caller either minted here or brought back
// from an earlier visit.
type authHandler struct {
	log     zerolog.Logger
	encoder encoder
	config  *domain.Config

	cookieStore *sessions.CookieStore
}

func newAuthHandler(encoder encoder, log zerolog.Logger, config *domain.Config, cookieStore *sessions.CookieStore) *authHandler {
	return &authHandler{
		log:         log,
		encoder:     encoder,
		config:      config,
		cookieStore: cookieStore,
	}
}

func (h authHandler) Routes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.Post("/register", h.register)
	r.Get("/validate", h.validate)
}

type loginRequest struct {
	OwnerID string `json:"owner_id"`
}

type loginResponse struct {
	OwnerID string `json:"owner_id"`
}

func (h authHandler) configureCookieOptions(r *http.Request) {
	h.cookieStore.Options.HttpOnly = true
	h.cookieStore.Options.SameSite = http.SameSiteLaxMode
	h.cookieStore.Options.Path = h.config.Server.BaseURL

	if r.Header.Get("X-Forwarded-Proto") == "https" {
		h.cookieStore.Options.Secure = true
		h.cookieStore.Options.SameSite = http.SameSiteStrictMode
	}
}

// login establishes a session for an owner id the caller already holds.
func (h authHandler) login(w http.ResponseWriter, r *http.Request) {
	var (
		ctx  = r.Context()
		data loginRequest
	)

	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		h.log.Warn().Err(err).Msg("Auth: Failed to decode login request body")
		h.encoder.StatusResponse(ctx, w, nil, http.StatusBadRequest)
		return
	}

	ownerID, err := uuid.Parse(data.OwnerID)
	if err != nil {
		prefix := data.OwnerID
		if len(prefix) > 8 {
			prefix = prefix[:8]
		}
		h.log.Warn().Err(err).Msgf("Auth: Login attempt with malformed owner id prefix: [%s] ip: %s", prefix, ReadUserIP(r))
		h.encoder.StatusResponse(ctx, w, nil, http.StatusBadRequest)
		return
	}

	h.configureCookieOptions(r)

	session, _ := h.cookieStore.Get(r, "user_session")
	session.Values["authenticated"] = true
	session.Values["owner_id"] = ownerID.String()
	if err := session.Save(r, w); err != nil {
		h.log.Error().Err(err).Msg("Auth: Failed to save session on login")
		h.encoder.StatusResponse(ctx, w, nil, http.StatusInternalServerError)
		return
	}

	h.encoder.StatusResponse(ctx, w, loginResponse{OwnerID: ownerID.String()}, http.StatusOK)
}

// register mints a fresh owner id and logs the caller straight in. The
// returned id is the caller's only credential, losing it means losing the
// syncs bound to it.
func (h authHandler) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID := uuid.New()

	h.configureCookieOptions(r)

	session, _ := h.cookieStore.Get(r, "user_session")
	session.Values["authenticated"] = true
	session.Values["owner_id"] = ownerID.String()
	if err := session.Save(r, w); err != nil {
		h.log.Error().Err(err).Msg("Auth: Failed to save session during registration")
		// the id is still usable for a manual login
		h.encoder.StatusResponse(ctx, w, loginResponse{OwnerID: ownerID.String()}, http.StatusOK)
		return
	}

	h.log.Info().Str("owner_id", ownerID.String()).Msg("Auth: Registered new owner id")

	h.encoder.StatusResponse(ctx, w, loginResponse{OwnerID: ownerID.String()}, http.StatusOK)
}

func (h authHandler) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := h.cookieStore.Get(r, "user_session")

	session.Values["authenticated"] = false
	delete(session.Values, "owner_id")
	session.Save(r, w)

	h.encoder.StatusResponse(ctx, w, nil, http.StatusNoContent)
}

func (h authHandler) validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := h.cookieStore.Get(r, "user_session")

	if auth, ok := session.Values["authenticated"].(bool); !ok || !auth {
		http.Error(w, "Forbidden", http.StatusUnauthorized)
		return
	}

	h.encoder.StatusResponse(ctx, w, nil, http.StatusNoContent)
}

func ReadUserIP(r *http.Request) string {
	IPAddress := r.Header.Get("X-Real-Ip")
	if IPAddress == "" {
		IPAddress = r.Header.Get("X-Forwarded-For")
	}
	if IPAddress == "" {
		IPAddress = r.RemoteAddr
	}
	return IPAddress
}
