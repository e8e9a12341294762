package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/asaskevich/EventBus"
	"github.com/driftworks/syncbridge/internal/auth"
	"github.com/driftworks/syncbridge/internal/config"
	"github.com/driftworks/syncbridge/internal/database"
	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/events"
	"github.com/driftworks/syncbridge/internal/http"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/driftworks/syncbridge/internal/notification"
	"github.com/driftworks/syncbridge/internal/provider"
	"github.com/driftworks/syncbridge/internal/scheduler"
	"github.com/driftworks/syncbridge/internal/server"
	"github.com/driftworks/syncbridge/internal/sync"
	"github.com/driftworks/syncbridge/internal/update"
	"github.com/driftworks/syncbridge/internal/valkey"
	"github.com/r3labs/sse/v2"
	"github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	var configPath string
	pflag.StringVar(&configPath, "config", "", "path to configuration file")
	pflag.Parse()

	// read config
	cfg := config.New(configPath, version)

	// init new logger
	log := logger.New(cfg.Config)

	// init dynamic config
	cfg.DynamicReload(log)

	// setup server-sent-events
	serverEvents := sse.New()
	serverEvents.CreateStreamWithOpts("logs", sse.StreamOpts{MaxEntries: 1000, AutoReplay: true})

	// register SSE writer
	log.RegisterSSEWriter(serverEvents)

	// setup internal eventbus
	bus := EventBus.New()

	// open database connection
	db, err := database.NewDB(cfg.Config, log)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create new db")
	}

	if err := db.Open(); err != nil {
		log.Fatal().Err(err).Msg("could not open db connection")
	}

	log.Info().Msgf("Starting SyncBridge")
	log.Info().Msgf("Version: %s", version)
	log.Info().Msgf("Commit: %s", commit)
	log.Info().Msgf("Build date: %s", date)
	log.Info().Msgf("Log-level: %s", cfg.Config.Logging.Level)
	log.Info().Msgf("Using database: %s", db.Driver)

	// setup repos
	var (
		notificationRepo = database.NewNotificationRepo(log, db)
		syncUserRepo     = database.NewSyncUserRepo(log, db)
	)

	// init valkey service
	valkeyService, err := valkey.NewService(log, cfg.Config.Valkey)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create new valkey service")
	}
	defer valkeyService.Close()
	log.Info().Msg("Valkey service initialized")

	lockoutStore := valkey.NewLockoutStore(log, valkeyService, cfg.Config.OAuth.MaxCallbackFailures, cfg.Config.OAuth.LockoutMinutes)

	// provider handlers share the oauth app registrations so refreshed
	// tokens keep working after the initial connect
	oauthConfigs := auth.BuildConfigs(cfg.Config.OAuth)

	registry := provider.NewRegistry(log)
	registry.Register(domain.ProviderGoogle, provider.NewGoogleDrive(log, oauthConfigs[domain.ProviderGoogle]))
	registry.Register(domain.ProviderAzure, provider.NewAzureDrive(log))
	registry.Register(domain.ProviderDropbox, provider.NewDropboxFiles(log))
	registry.Register(domain.ProviderNotion, provider.NewNotionPages(log))
	registry.Register(domain.ProviderGitHub, provider.NewGitHubRepos(log, oauthConfigs[domain.ProviderGitHub]))

	notionSource := provider.NewNotionAPI(log)

	// setup services
	var (
		notificationService = notification.NewService(log, notificationRepo)
		updateService       = update.NewUpdate(log, cfg.Config)
		schedulingService   = scheduler.NewService(log, cfg.Config, notificationService, updateService, syncUserRepo)
		syncService         = sync.NewService(log, syncUserRepo, registry, notificationService)
		authService         = auth.NewService(log, cfg.Config, syncUserRepo, lockoutStore, bus)
	)

	// register event subscribers
	events.NewSubscribers(log, bus, notificationService)

	errorChannel := make(chan error)

	go func() {
		httpServer := http.NewServer(
			log,
			cfg,
			serverEvents,
			db,
			version,
			commit,
			date,
			authService,
			notificationService,
			updateService,
			syncService,
			valkeyService,
			notionSource,
		)
		errorChannel <- httpServer.Open()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	srv := server.NewServer(log, cfg.Config, schedulingService, updateService)
	if err := srv.Start(); err != nil {
		log.Fatal().Stack().Err(err).Msg("could not start server")
		return
	}

	for sig := range sigCh {
		switch sig {
		case syscall.SIGHUP:
			log.Log().Msg("shutting down server sighup")
			srv.Shutdown()
			if err := db.Close(); err != nil {
				log.Error().Stack().Err(err).Msg("could not close db connection")
			}
			valkeyService.Close()
			os.Exit(1)
		case syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM:
			log.Info().Msg("Shutting down server...")
			srv.Shutdown()
			if err := db.Close(); err != nil {
				log.Error().Stack().Err(err).Msg("could not close db connection")
			}
			valkeyService.Close()
			os.Exit(0)
		}
	}
}
