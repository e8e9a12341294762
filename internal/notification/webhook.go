package notification

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/pkg/errors"
	"github.com/rs/zerolog"
)

// WebhookPayload is the body posted to generic webhook channels.
type WebhookPayload struct {
	Event     string    `json:"event"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Provider  string    `json:"provider,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type webhookSender struct {
	log        zerolog.Logger
	Settings   domain.Notification
	httpClient *http.Client
}

func NewWebhookSender(log zerolog.Logger, settings domain.Notification) domain.NotificationSender {
	return &webhookSender{
		log:      log.With().Str("sender", "webhook").Logger(),
		Settings: settings,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *webhookSender) Send(event domain.NotificationEvent, payload domain.NotificationPayload) error {
	body := WebhookPayload{
		Event:     string(event),
		Subject:   payload.Subject,
		Message:   payload.Message,
		Provider:  payload.Provider.String(),
		Timestamp: payload.Timestamp,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal webhook payload")
	}

	req, err := http.NewRequest(http.MethodPost, s.Settings.Webhook, bytes.NewBuffer(jsonData))
	if err != nil {
		return errors.Wrap(err, "failed to build webhook request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "syncbridge")

	res, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send webhook notification")
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		respBody, _ := io.ReadAll(res.Body)
		return errors.New("webhook returned status %d: %s", res.StatusCode, string(respBody))
	}

	s.log.Debug().Msg("Notification successfully sent to webhook")
	return nil
}

func (s *webhookSender) CanSend(event domain.NotificationEvent) bool {
	return s.Settings.Enabled && eventEnabled(s.Settings.Events, event)
}

// eventEnabled reports whether the channel is subscribed to the event.
func eventEnabled(events []string, event domain.NotificationEvent) bool {
	for _, e := range events {
		if e == string(event) {
			return true
		}
	}
	return false
}
