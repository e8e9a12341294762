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

type SlackMessage struct {
	Text        string            `json:"text"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

type SlackAttachment struct {
	Color string `json:"color"`
	Title string `json:"title"`
	Text  string `json:"text"`
	Ts    int64  `json:"ts"`
}

type slackSender struct {
	log        zerolog.Logger
	Settings   domain.Notification
	httpClient *http.Client
}

func NewSlackSender(log zerolog.Logger, settings domain.Notification) domain.NotificationSender {
	return &slackSender{
		log:      log.With().Str("sender", "slack").Logger(),
		Settings: settings,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *slackSender) Send(event domain.NotificationEvent, payload domain.NotificationPayload) error {
	m := SlackMessage{
		Username:  "syncbridge",
		IconEmoji: ":arrows_counterclockwise:",
		Attachments: []SlackAttachment{
			{
				Color: slackColor(event),
				Title: payload.Subject,
				Text:  payload.Message,
				Ts:    payload.Timestamp.Unix(),
			},
		},
	}

	jsonData, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "failed to marshal slack message")
	}

	req, err := http.NewRequest(http.MethodPost, s.Settings.Webhook, bytes.NewBuffer(jsonData))
	if err != nil {
		return errors.Wrap(err, "failed to build slack request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "syncbridge")

	res, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send slack notification")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		return errors.New("slack webhook returned status %d: %s", res.StatusCode, string(body))
	}

	s.log.Debug().Msg("Notification successfully sent to slack")
	return nil
}

func (s *slackSender) CanSend(event domain.NotificationEvent) bool {
	return s.Settings.Enabled && eventEnabled(s.Settings.Events, event)
}

func slackColor(event domain.NotificationEvent) string {
	switch event {
	case domain.NotificationEventSyncConnected:
		return "good"
	case domain.NotificationEventSyncBroken:
		return "danger"
	case domain.NotificationEventSyncRemoved:
		return "warning"
	default:
		return "#95a5a6"
	}
}
