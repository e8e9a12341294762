package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthHandler(t *testing.T) (*authHandler, *sessions.CookieStore) {
	t.Helper()

	log := logger.Mock().With().Str("module", "http").Logger()
	cookieStore := sessions.NewCookieStore([]byte("test-secret"))
	cfg := &domain.Config{
		Server: domain.ServerConfig{BaseURL: "/"},
	}

	return newAuthHandler(encoder{}, log, cfg, cookieStore), cookieStore
}

func TestAuthHandler_Login(t *testing.T) {
	handler, cookieStore := newTestAuthHandler(t)
	router := chi.NewRouter()
	handler.Routes(router)

	ownerID := uuid.New()
	body, _ := json.Marshal(loginRequest{OwnerID: ownerID.String()})

	req := httptest.NewRequest("POST", "/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, ownerID.String(), resp.OwnerID)

	// the session cookie must carry the authenticated owner
	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)

	followUp := httptest.NewRequest("GET", "/", nil)
	for _, c := range cookies {
		followUp.AddCookie(c)
	}
	session, err := cookieStore.Get(followUp, "user_session")
	require.NoError(t, err)
	assert.Equal(t, true, session.Values["authenticated"])
	assert.Equal(t, ownerID.String(), session.Values["owner_id"])
}

func TestAuthHandler_Login_MalformedOwnerID(t *testing.T) {
	handler, _ := newTestAuthHandler(t)
	router := chi.NewRouter()
	handler.Routes(router)

	body, _ := json.Marshal(loginRequest{OwnerID: "definitely-not-a-uuid"})

	req := httptest.NewRequest("POST", "/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAuthHandler_Login_InvalidBody(t *testing.T) {
	handler, _ := newTestAuthHandler(t)
	router := chi.NewRouter()
	handler.Routes(router)

	req := httptest.NewRequest("POST", "/login", bytes.NewReader([]byte("not json")))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAuthHandler_Register(t *testing.T) {
	handler, cookieStore := newTestAuthHandler(t)
	router := chi.NewRouter()
	handler.Routes(router)

	req := httptest.NewRequest("POST", "/register", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	mintedID, err := uuid.Parse(resp.OwnerID)
	require.NoError(t, err)

	// register logs the fresh owner in immediately
	followUp := httptest.NewRequest("GET", "/", nil)
	for _, c := range rr.Result().Cookies() {
		followUp.AddCookie(c)
	}
	session, err := cookieStore.Get(followUp, "user_session")
	require.NoError(t, err)
	assert.Equal(t, true, session.Values["authenticated"])
	assert.Equal(t, mintedID.String(), session.Values["owner_id"])
}

func TestAuthHandler_SecureCookieBehindTLSProxy(t *testing.T) {
	handler, cookieStore := newTestAuthHandler(t)
	router := chi.NewRouter()
	handler.Routes(router)

	req := httptest.NewRequest("POST", "/register", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, cookieStore.Options.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookieStore.Options.SameSite)
}

func TestAuthHandler_Logout(t *testing.T) {
	handler, cookieStore := newTestAuthHandler(t)
	router := chi.NewRouter()
	handler.Routes(router)

	// establish a session first
	ownerID := uuid.New()
	body, _ := json.Marshal(loginRequest{OwnerID: ownerID.String()})
	loginReq := httptest.NewRequest("POST", "/login", bytes.NewReader(body))
	loginRR := httptest.NewRecorder()
	router.ServeHTTP(loginRR, loginReq)
	require.Equal(t, http.StatusOK, loginRR.Code)

	logoutReq := httptest.NewRequest("POST", "/logout", nil)
	for _, c := range loginRR.Result().Cookies() {
		logoutReq.AddCookie(c)
	}
	logoutRR := httptest.NewRecorder()
	router.ServeHTTP(logoutRR, logoutReq)

	assert.Equal(t, http.StatusNoContent, logoutRR.Code)

	followUp := httptest.NewRequest("GET", "/", nil)
	for _, c := range logoutRR.Result().Cookies() {
		followUp.AddCookie(c)
	}
	session, err := cookieStore.Get(followUp, "user_session")
	require.NoError(t, err)
	assert.Equal(t, false, session.Values["authenticated"])
	_, hasOwner := session.Values["owner_id"]
	assert.False(t, hasOwner)
}

func TestAuthHandler_Validate(t *testing.T) {
	handler, _ := newTestAuthHandler(t)
	router := chi.NewRouter()
	handler.Routes(router)

	t.Run("authenticated", func(t *testing.T) {
		ownerID := uuid.New()
		body, _ := json.Marshal(loginRequest{OwnerID: ownerID.String()})
		loginReq := httptest.NewRequest("POST", "/login", bytes.NewReader(body))
		loginRR := httptest.NewRecorder()
		router.ServeHTTP(loginRR, loginReq)
		require.Equal(t, http.StatusOK, loginRR.Code)

		req := httptest.NewRequest("GET", "/validate", nil)
		for _, c := range loginRR.Result().Cookies() {
			req.AddCookie(c)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/validate", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestReadUserIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:4321"
	assert.Equal(t, "10.0.0.5:4321", ReadUserIP(req))

	req.Header.Set("X-Forwarded-For", "2.2.2.2")
	assert.Equal(t, "2.2.2.2", ReadUserIP(req))

	req.Header.Set("X-Real-Ip", "1.1.1.1")
	assert.Equal(t, "1.1.1.1", ReadUserIP(req))
}
