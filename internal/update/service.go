package update

import (
	"context"
	"sync"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/driftworks/syncbridge/pkg/version"
	"github.com/rs/zerolog"
)

// Service periodically checks GitHub for a newer release and caches the
// result for the API to serve.
type Service struct {
	log     zerolog.Logger
	config  *domain.Config
	checker *version.Checker

	m             sync.RWMutex
	latestRelease *version.Release
}

func NewUpdate(log logger.Logger, config *domain.Config) *Service {
	return &Service{
		log:     log.With().Str("module", "update").Logger(),
		config:  config,
		checker: version.NewChecker("driftworks", "syncbridge"),
	}
}

// GetLatestRelease returns the most recent release found by a check, or nil
// when no newer release is known.
func (s *Service) GetLatestRelease(_ context.Context) *version.Release {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.latestRelease
}

func (s *Service) CheckUpdates(ctx context.Context) {
	if _, err := s.CheckUpdateAvailable(ctx); err != nil {
		s.log.Error().Err(err).Msg("Failed to check for updates")
	}
}

// CheckUpdateAvailable compares the running version against the newest
// published release. It returns the release when one is newer, nil
// otherwise. Development builds never report an update.
func (s *Service) CheckUpdateAvailable(ctx context.Context) (*version.Release, error) {
	s.log.Trace().Msg("Checking for updates...")

	newAvailable, newVersion, err := s.checker.CheckNewVersion(ctx, s.config.Version)
	if err != nil {
		return nil, err
	}

	if !newAvailable {
		return nil, nil
	}

	s.log.Info().Msgf("New update available: %s", newVersion.TagName)

	s.m.Lock()
	s.latestRelease = newVersion
	s.m.Unlock()

	return newVersion, nil
}
