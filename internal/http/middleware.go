package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// OwnerContextKey is the key RequireSession stores the session owner's
	// id under.
	OwnerContextKey ContextKey = "owner_id"

	rateLimitKeyPrefix = "rate_limit:"
)

// ownerFromContext returns the owner id RequireSession stored for this
// request.
func ownerFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(OwnerContextKey).(uuid.UUID)
	return id, ok
}

// RequireSession gates a route group on a valid session cookie and puts the
// session owner's id into the request context.
func (s *Server) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, _ := s.cookieStore.Get(r, "user_session")

		if auth, ok := session.Values["authenticated"].(bool); !ok || !auth {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		rawID, ok := session.Values["owner_id"].(string)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ownerID, err := uuid.Parse(rawID)
		if err != nil {
			s.log.Warn().Err(err).Msg("Session carries a malformed owner id")
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), OwnerContextKey, ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggerMiddleware provides structured logging and panic recovery for HTTP
// requests.
func LoggerMiddleware(logger *zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			reqLogger := logger.With().Logger()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				reqID := middleware.GetReqID(r.Context())

				if rec := recover(); rec != nil {
					reqLogger.Error().
						Str("type", "error").
						Timestamp().
						Interface("recover_info", rec).
						Bytes("debug_stack", debug.Stack()).
						Str("request_id", reqID).
						Msg("Unhandled panic recovered by middleware")
					http.Error(ww, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}

// RateLimiter limits request rates per session owner, or per client IP for
// anonymous calls. Counts live in Valkey as a sliding window; when Valkey is
// unreachable requests pass through unthrottled.
func (s *Server) RateLimiter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.config.Config.RateLimit.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		logger := s.log.With().Str("middleware", "RateLimiter").Logger()

		identifier, identifierType := s.getClientIdentifier(r)

		if s.isExemptFromRateLimit(identifier, identifierType) {
			logger.Debug().
				Str("identifier", identifier).
				Str("type", identifierType).
				Msg("Client exempt from rate limiting")
			next.ServeHTTP(w, r)
			return
		}

		requestsPerMinute := s.config.Config.RateLimit.RequestsPerMinute
		windowSeconds := s.config.Config.RateLimit.WindowSeconds

		if requestsPerMinute <= 0 {
			requestsPerMinute = 20
		}
		if windowSeconds <= 0 {
			windowSeconds = 60
		}

		exceeded, currentCount, err := s.checkRateLimit(r.Context(), identifier, identifierType, requestsPerMinute, windowSeconds)
		if err != nil {
			logger.Error().Err(err).
				Str("identifier", identifier).
				Str("type", identifierType).
				Msg("Error checking rate limit")
			// fail open rather than blocking legitimate traffic
			next.ServeHTTP(w, r)
			return
		}

		if exceeded {
			logger.Warn().
				Str("identifier", identifier).
				Str("type", identifierType).
				Int("current_count", currentCount).
				Int("limit", requestsPerMinute).
				Int("window_seconds", windowSeconds).
				Msg("Rate limit exceeded")

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", requestsPerMinute))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", windowSeconds))

			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", requestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", requestsPerMinute-currentCount))

		next.ServeHTTP(w, r)
	})
}

// getClientIdentifier keys the rate limit by session owner when one is
// present and by client IP otherwise.
func (s *Server) getClientIdentifier(r *http.Request) (string, string) {
	if ownerID, ok := ownerFromContext(r.Context()); ok {
		return ownerID.String(), "owner_id"
	}

	return getClientIP(r), "ip_address"
}

// getClientIP extracts the client IP address from the request, honoring the
// forwarding headers a reverse proxy sets.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			clientIP := strings.TrimSpace(ips[0])
			if clientIP != "" {
				return clientIP
			}
		}
	}

	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return strings.TrimSpace(xrip)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}

func (s *Server) isExemptFromRateLimit(identifier string, identifierType string) bool {
	if identifierType != "ip_address" {
		return false
	}

	exemptIPs := strings.Split(s.config.Config.RateLimit.ExemptInternalIPs, ",")
	for _, exemptIP := range exemptIPs {
		exemptIP = strings.TrimSpace(exemptIP)
		if exemptIP != "" && exemptIP == identifier {
			return true
		}
	}

	return false
}

// checkRateLimit counts the caller's requests inside the sliding window and
// reports whether the limit is exceeded.
func (s *Server) checkRateLimit(ctx context.Context, identifier string, identifierType string, limit int, windowSeconds int) (bool, int, error) {
	valkeyClient := s.valkeyService.GetClient()
	if valkeyClient == nil {
		return false, 0, fmt.Errorf("valkey client not available")
	}

	key := fmt.Sprintf("%s%s:%s", rateLimitKeyPrefix, identifierType, identifier)

	now := time.Now().Unix()
	cutoff := now - int64(windowSeconds)

	// drop entries that slid out of the window, record this request, and
	// refresh the key's lifetime
	valkeyClient.Do(ctx, valkeyClient.B().Zremrangebyscore().Key(key).Min("-inf").Max(fmt.Sprintf("%d", cutoff)).Build())
	valkeyClient.Do(ctx, valkeyClient.B().Zadd().Key(key).ScoreMember().ScoreMember(float64(now), fmt.Sprintf("%d", now)).Build())
	valkeyClient.Do(ctx, valkeyClient.B().Expire().Key(key).Seconds(int64(windowSeconds)).Build())

	countCmd := valkeyClient.Do(ctx, valkeyClient.B().Zcard().Key(key).Build())
	if countCmd.Error() != nil {
		return false, 0, fmt.Errorf("error counting rate limit entries: %w", countCmd.Error())
	}

	count, err := countCmd.AsInt64()
	if err != nil {
		return false, 0, fmt.Errorf("error parsing rate limit count: %w", err)
	}

	return int(count) > limit, int(count), nil
}
