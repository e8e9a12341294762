package events

import (
	"github.com/asaskevich/EventBus"
	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/driftworks/syncbridge/internal/notification"
	"github.com/rs/zerolog"
)

type Subscriber struct {
	log                 zerolog.Logger
	eventBus            EventBus.Bus
	notificationService notification.Service
}

func NewSubscribers(log logger.Logger, eventBus EventBus.Bus, notificationSvc notification.Service) Subscriber {
	s := Subscriber{
		log:                 log.With().Str("module", "events").Logger(),
		eventBus:            eventBus,
		notificationService: notificationSvc,
	}

	s.Register()

	return s
}

func (s Subscriber) Register() {
	if err := s.eventBus.Subscribe("events:notification", s.sendNotification); err != nil {
		s.log.Error().Err(err).Str("topic", "events:notification").Msg("Failed to subscribe to event topic")
	}
}

func (s Subscriber) sendNotification(event *domain.NotificationEvent, payload *domain.NotificationPayload) {
	s.log.Trace().Msgf("events: '%v' '%+v'", *event, *payload)
	s.notificationService.Send(*event, *payload)
}
