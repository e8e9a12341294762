package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/rs/zerolog"
	"github.com/valkey-io/valkey-go"
)

const (
	defaultMaxFailures    = 5
	defaultLockoutMinutes = 30
)

// LockoutStore tracks failed OAuth callback attempts per state key and locks
// a key out once the failure threshold is crossed. Both the failure counter
// and the lockout flag expire on their own, so a stale key never needs
// manual cleanup.
type LockoutStore struct {
	log         zerolog.Logger
	client      valkey.Client
	maxFailures int64
	lockoutTTL  time.Duration
}

func NewLockoutStore(log logger.Logger, svc *Service, maxFailures int, lockoutMinutes int) *LockoutStore {
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}
	if lockoutMinutes <= 0 {
		lockoutMinutes = defaultLockoutMinutes
	}

	return &LockoutStore{
		log:         log.With().Str("module", "valkey").Logger(),
		client:      svc.GetClient(),
		maxFailures: int64(maxFailures),
		lockoutTTL:  time.Duration(lockoutMinutes) * time.Minute,
	}
}

func lockoutKey(key string) string {
	return fmt.Sprintf("connect:lockout:%s", key)
}

func failureKey(key string) string {
	return fmt.Sprintf("connect:failures:%s", key)
}

// IsLockedOut reports whether the key is currently locked out.
func (s *LockoutStore) IsLockedOut(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Do(ctx, s.client.B().Exists().Key(lockoutKey(key)).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("failed to check lockout for key: %w", err)
	}
	return n > 0, nil
}

// IncrementFailure records a failed attempt and returns the new failure
// count. Crossing the threshold sets the lockout flag.
func (s *LockoutStore) IncrementFailure(ctx context.Context, key string) (int64, error) {
	count, err := s.client.Do(ctx, s.client.B().Incr().Key(failureKey(key)).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to increment failure count: %w", err)
	}

	// the counter lives as long as a lockout would
	if count == 1 {
		if err := s.client.Do(ctx, s.client.B().Expire().Key(failureKey(key)).Seconds(int64(s.lockoutTTL.Seconds())).Build()).Error(); err != nil {
			s.log.Error().Err(err).Msg("Failed to set expiry on failure counter")
		}
	}

	if count >= s.maxFailures {
		if err := s.SetLockout(ctx, key); err != nil {
			s.log.Error().Err(err).Msg("Failed to set lockout after crossing threshold")
		}
	}

	return count, nil
}

// ClearFailures removes the failure counter and any lockout for the key.
func (s *LockoutStore) ClearFailures(ctx context.Context, key string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(failureKey(key), lockoutKey(key)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to clear failures for key: %w", err)
	}
	return nil
}

// SetLockout marks the key as locked out for the configured duration.
func (s *LockoutStore) SetLockout(ctx context.Context, key string) error {
	if err := s.client.Do(ctx, s.client.B().Set().Key(lockoutKey(key)).Value("1").Ex(s.lockoutTTL).Build()).Error(); err != nil {
		return fmt.Errorf("failed to set lockout for key: %w", err)
	}

	s.log.Warn().Str("key", key).Dur("ttl", s.lockoutTTL).Msg("Connect callback key locked out")
	return nil
}
