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

type DiscordMessage struct {
	Content interface{}    `json:"content"`
	Embeds  []DiscordEmbed `json:"embeds,omitempty"`
}

type DiscordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Color       int                 `json:"color"`
	Fields      []DiscordEmbedField `json:"fields,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
}

type DiscordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

const (
	discordColorGreen  = 0x2ecc71
	discordColorRed    = 0xe74c3c
	discordColorOrange = 0xe67e22
	discordColorGray   = 0x95a5a6
)

type discordSender struct {
	log        zerolog.Logger
	Settings   domain.Notification
	httpClient *http.Client
}

func NewDiscordSender(log zerolog.Logger, settings domain.Notification) domain.NotificationSender {
	return &discordSender{
		log:      log.With().Str("sender", "discord").Logger(),
		Settings: settings,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *discordSender) Send(event domain.NotificationEvent, payload domain.NotificationPayload) error {
	embed := DiscordEmbed{
		Title:       payload.Subject,
		Description: payload.Message,
		Color:       discordColor(event),
		Timestamp:   payload.Timestamp,
	}
	if payload.Provider != "" {
		embed.Fields = []DiscordEmbedField{
			{Name: "Provider", Value: payload.Provider.String(), Inline: true},
		}
	}

	m := DiscordMessage{
		Content: nil,
		Embeds:  []DiscordEmbed{embed},
	}

	jsonData, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "failed to marshal discord message")
	}

	req, err := http.NewRequest(http.MethodPost, s.Settings.Webhook, bytes.NewBuffer(jsonData))
	if err != nil {
		return errors.Wrap(err, "failed to build discord request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "syncbridge")

	res, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send discord notification")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(res.Body)
		return errors.New("discord webhook returned status %d: %s", res.StatusCode, string(body))
	}

	s.log.Debug().Msg("Notification successfully sent to discord")
	return nil
}

func (s *discordSender) CanSend(event domain.NotificationEvent) bool {
	return s.Settings.Enabled && eventEnabled(s.Settings.Events, event)
}

func discordColor(event domain.NotificationEvent) int {
	switch event {
	case domain.NotificationEventSyncConnected:
		return discordColorGreen
	case domain.NotificationEventSyncRemoved:
		return discordColorOrange
	case domain.NotificationEventSyncBroken:
		return discordColorRed
	default:
		return discordColorGray
	}
}
