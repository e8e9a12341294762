package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/pkg/errors"
	"github.com/rs/zerolog"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

type TelegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramSender struct {
	log        zerolog.Logger
	Settings   domain.Notification
	baseURL    string
	httpClient *http.Client
}

func NewTelegramSender(log zerolog.Logger, settings domain.Notification) domain.NotificationSender {
	return &telegramSender{
		log:      log.With().Str("sender", "telegram").Logger(),
		Settings: settings,
		baseURL:  defaultTelegramBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *telegramSender) Send(event domain.NotificationEvent, payload domain.NotificationPayload) error {
	text := fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(payload.Subject), html.EscapeString(payload.Message))

	m := TelegramMessage{
		ChatID:    s.Settings.Channel,
		Text:      text,
		ParseMode: "HTML",
	}

	jsonData, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "failed to marshal telegram message")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.Settings.Token)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return errors.Wrap(err, "failed to build telegram request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "syncbridge")

	res, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send telegram notification")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		return errors.New("telegram api returned status %d: %s", res.StatusCode, string(body))
	}

	s.log.Debug().Msg("Notification successfully sent to telegram")
	return nil
}

func (s *telegramSender) CanSend(event domain.NotificationEvent) bool {
	return s.Settings.Enabled && eventEnabled(s.Settings.Events, event)
}
