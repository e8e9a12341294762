package server

import (
	"context"
	"time"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/driftworks/syncbridge/internal/scheduler"
	"github.com/driftworks/syncbridge/internal/update"
	"github.com/rs/zerolog"
)

// Server owns the background side of the application: the cron scheduler
// and the startup update check. The HTTP listener runs separately.
type Server struct {
	log    zerolog.Logger
	config *domain.Config

	scheduler     scheduler.Service
	updateService *update.Service
}

func NewServer(log logger.Logger, config *domain.Config, scheduler scheduler.Service, updateSvc *update.Service) *Server {
	return &Server{
		log:           log.With().Str("module", "server").Logger(),
		config:        config,
		scheduler:     scheduler,
		updateService: updateSvc,
	}
}

func (s *Server) Start() error {
	go s.checkUpdates()

	// start cron scheduler
	s.scheduler.Start()

	return nil
}

func (s *Server) Shutdown() {
	s.log.Info().Msg("Shutting down server")

	// stop cron scheduler
	s.scheduler.Stop()
}

func (s *Server) checkUpdates() {
	if s.config.CheckForUpdates {
		time.Sleep(1 * time.Second)

		s.updateService.CheckUpdates(context.Background())
	}
}
