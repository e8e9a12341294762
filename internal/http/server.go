package http

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/driftworks/syncbridge/internal/config"
	"github.com/driftworks/syncbridge/internal/database"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/driftworks/syncbridge/internal/provider"
	"github.com/driftworks/syncbridge/internal/sync"
	"github.com/driftworks/syncbridge/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/r3labs/sse/v2"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	valkeygo "github.com/valkey-io/valkey-go"
)

type valkeyService interface {
	GetClient() valkeygo.Client
	Close()
}

type Server struct {
	log zerolog.Logger
	sse *sse.Server
	db  *database.DB

	config      *config.AppConfig
	cookieStore *sessions.CookieStore

	version string
	commit  string
	date    string

	oauthService        oauthService
	notificationService notificationService
	updateService       updateService
	syncService         sync.Service
	valkeyService       valkeyService
	notionSource        provider.NotionSource
}

func NewServer(
	log logger.Logger,
	config *config.AppConfig,
	sse *sse.Server,
	db *database.DB,
	version string,
	commit string,
	date string,
	oauthSvc oauthService,
	notificationSvc notificationService,
	updateSvc updateService,
	syncSvc sync.Service,
	valkeySvc valkeyService,
	notionSource provider.NotionSource,
) Server {
	return Server{
		log:     log.With().Str("module", "http").Logger(),
		config:  config,
		sse:     sse,
		db:      db,
		version: version,
		commit:  commit,
		date:    date,

		cookieStore: sessions.NewCookieStore([]byte(config.Config.SessionSecret)),

		oauthService:        oauthSvc,
		notificationService: notificationSvc,
		updateService:       updateSvc,
		syncService:         syncSvc,
		valkeyService:       valkeySvc,
		notionSource:        notionSource,
	}
}

func (s Server) Open() error {
	addr := fmt.Sprintf("%v:%v", s.config.Config.Server.Host, s.config.Config.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	server := http.Server{
		Handler: s.Handler(),
	}

	s.log.Info().Msgf("Starting server. Listening on %s", listener.Addr().String())

	return server.Serve(listener)
}

// readinessChecks lists the dependencies a ready instance must reach: the
// database and the Valkey session store.
func (s Server) readinessChecks() []healthCheck {
	return []healthCheck{
		{
			name: "database",
			probe: func(_ context.Context) error {
				return s.db.Ping()
			},
		},
		{
			name: "session store",
			probe: func(ctx context.Context) error {
				client := s.valkeyService.GetClient()
				if client == nil {
					return errors.New("valkey client not available")
				}
				return client.Do(ctx, client.B().Ping().Build()).Error()
			},
		},
	}
}

func (s Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware(&s.log))

	c := cors.New(cors.Options{
		AllowCredentials:   true,
		AllowedMethods:     []string{"HEAD", "OPTIONS", "GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowOriginFunc:    func(origin string) bool { return true },
		OptionsPassthrough: true,
		Debug:              false,
	})

	r.Use(c.Handler)

	encoder := encoder{}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", newAuthHandler(encoder, s.log, s.config.Config, s.cookieStore).Routes)
		r.Route("/healthz", newHealthHandler(encoder, s.readinessChecks()...).Routes)

		// owner id minting is open but throttled
		uuidRouter := r.Group(nil)
		uuidRouter.Use(s.RateLimiter)
		uuidRouter.Post("/v1/utils/uuid", s.handleGetUUID)

		// the oauth handler gates its connect route itself; the callback
		// stays public for the provider redirect
		r.Route("/oauth", newOAuthHandler(encoder, s.log, s.oauthService, s.RequireSession).Routes)

		authedRouter := r.Group(nil)
		authedRouter.Use(s.RequireSession)

		authedRouter.Route("/config", newConfigHandler(encoder, s, s.config).Routes)
		authedRouter.Route("/logs", newLogsHandler(s.config).Routes)
		authedRouter.Route("/notification", newNotificationHandler(encoder, s.notificationService).Routes)
		authedRouter.Route("/updates", newUpdateHandler(encoder, s.updateService).Routes)

		// sync listings fan out to external providers, keep them throttled
		syncRouter := authedRouter.Group(nil)
		syncRouter.Use(s.RateLimiter)
		syncRouter.Route("/syncs", newSyncUserHandler(encoder, s.log, s.syncService).Routes)
		syncRouter.Route("/files", newFilesHandler(encoder, s.log, s.syncService, s.notionSource).Routes)

		authedRouter.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
			// inject CORS headers to bypass checks
			s.sse.Headers = map[string]string{
				"Content-Type":      "text/event-stream",
				"Cache-Control":     "no-cache",
				"Connection":        "keep-alive",
				"X-Accel-Buffering": "no",
			}
			s.sse.ServeHTTP(w, r)
		})
	})

	return r
}
