package notification

import (
	"context"
	"sync"
	"time"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Service interface {
	Find(ctx context.Context, params domain.NotificationQueryParams) ([]domain.Notification, int, error)
	FindByID(ctx context.Context, id int) (*domain.Notification, error)
	Store(ctx context.Context, n domain.Notification) (*domain.Notification, error)
	Update(ctx context.Context, n domain.Notification) (*domain.Notification, error)
	Delete(ctx context.Context, id int) error
	// Send fans the payload out to every registered sender that accepts the
	// event. Delivery runs in the background; failures are logged, not
	// returned.
	Send(event domain.NotificationEvent, payload domain.NotificationPayload)
	// Test delivers a test event through the given channel synchronously.
	Test(ctx context.Context, n domain.Notification) error
}

type service struct {
	log  zerolog.Logger
	repo domain.NotificationRepo

	senderMu sync.RWMutex
	senders  []domain.NotificationSender
}

func NewService(log logger.Logger, repo domain.NotificationRepo) Service {
	s := &service{
		log:  log.With().Str("module", "notification").Logger(),
		repo: repo,
	}

	s.registerSenders()

	return s
}

// registerSenders rebuilds the sender list from the stored notification
// channels. Called at startup and after every channel mutation.
func (s *service) registerSenders() {
	notifications, err := s.repo.List(context.Background())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load notification channels")
		return
	}

	senders := make([]domain.NotificationSender, 0, len(notifications))
	for _, n := range notifications {
		if !n.Enabled {
			continue
		}
		if sender := s.senderForChannel(n); sender != nil {
			senders = append(senders, sender)
		}
	}

	s.senderMu.Lock()
	s.senders = senders
	s.senderMu.Unlock()

	s.log.Debug().Int("count", len(senders)).Msg("Registered notification senders")
}

func (s *service) senderForChannel(n domain.Notification) domain.NotificationSender {
	switch n.Type {
	case domain.NotificationTypeDiscord:
		return NewDiscordSender(s.log, n)
	case domain.NotificationTypeSlack:
		return NewSlackSender(s.log, n)
	case domain.NotificationTypeTelegram:
		return NewTelegramSender(s.log, n)
	case domain.NotificationTypeWebhook:
		return NewWebhookSender(s.log, n)
	default:
		s.log.Warn().Str("type", string(n.Type)).Msg("Unknown notification channel type")
		return nil
	}
}

func (s *service) Find(ctx context.Context, params domain.NotificationQueryParams) ([]domain.Notification, int, error) {
	return s.repo.Find(ctx, params)
}

func (s *service) FindByID(ctx context.Context, id int) (*domain.Notification, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) Store(ctx context.Context, n domain.Notification) (*domain.Notification, error) {
	stored, err := s.repo.Store(ctx, n)
	if err != nil {
		return nil, err
	}

	s.registerSenders()
	return stored, nil
}

func (s *service) Update(ctx context.Context, n domain.Notification) (*domain.Notification, error) {
	updated, err := s.repo.Update(ctx, n)
	if err != nil {
		return nil, err
	}

	s.registerSenders()
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.registerSenders()
	return nil
}

func (s *service) Send(event domain.NotificationEvent, payload domain.NotificationPayload) {
	if payload.Event == "" {
		payload.Event = event
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
	}

	s.senderMu.RLock()
	senders := make([]domain.NotificationSender, len(s.senders))
	copy(senders, s.senders)
	s.senderMu.RUnlock()

	if len(senders) == 0 {
		return
	}

	go func() {
		g := new(errgroup.Group)
		for _, sender := range senders {
			sender := sender
			if !sender.CanSend(event) {
				continue
			}
			g.Go(func() error {
				return sender.Send(event, payload)
			})
		}

		if err := g.Wait(); err != nil {
			s.log.Error().Err(err).Msgf("Failed to deliver %v notification", event)
		}
	}()
}

func (s *service) Test(ctx context.Context, n domain.Notification) error {
	sender := s.senderForChannel(n)
	if sender == nil {
		return domain.ErrUnsupportedNotificationType
	}

	s.log.Debug().Str("type", string(n.Type)).Msg("Sending test notification")

	return sender.Send(domain.NotificationEventTest, domain.NotificationPayload{
		Subject:   "Test notification",
		Message:   "A test notification from syncbridge",
		Event:     domain.NotificationEventTest,
		Timestamp: time.Now(),
	})
}
