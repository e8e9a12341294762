package valkey

import (
	"context"
	"time"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/driftworks/syncbridge/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/valkey-io/valkey-go"
)

const pingTimeout = 5 * time.Second

// Service owns the Valkey connection shared by the lockout store and the
// rate limiter.
type Service struct {
	log    zerolog.Logger
	client valkey.Client
}

// NewService dials Valkey and verifies the connection with a ping before
// handing it out.
func NewService(log logger.Logger, cfg domain.ValkeyConfig) (*Service, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.Address},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to valkey at %s", cfg.Address)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to ping valkey at %s", cfg.Address)
	}

	s := &Service{
		log:    log.With().Str("module", "valkey").Logger(),
		client: client,
	}
	s.log.Debug().Str("address", cfg.Address).Int("db", cfg.DB).Msg("Connected to Valkey")

	return s, nil
}

// Close releases the underlying client connection.
func (s *Service) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// GetClient exposes the raw client for commands the service does not wrap.
func (s *Service) GetClient() valkey.Client {
	return s.client
}
