package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordSenderSend(t *testing.T) {
	var got DiscordMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sender := NewDiscordSender(logger.Mock().With().Logger(), domain.Notification{
		Type:    domain.NotificationTypeDiscord,
		Enabled: true,
		Webhook: srv.URL,
	})

	err := sender.Send(domain.NotificationEventSyncBroken, domain.NotificationPayload{
		Subject:   "Sync broken",
		Message:   "Credentials for dropbox were rejected",
		Provider:  domain.ProviderDropbox,
		Timestamp: time.Now(),
	})
	require.NoError(t, err)

	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Sync broken", got.Embeds[0].Title)
	assert.Equal(t, discordColorRed, got.Embeds[0].Color)
	require.Len(t, got.Embeds[0].Fields, 1)
	assert.Equal(t, "dropbox", got.Embeds[0].Fields[0].Value)
}

func TestDiscordSenderCanSend(t *testing.T) {
	sender := NewDiscordSender(logger.Mock().With().Logger(), domain.Notification{
		Enabled: true,
		Events:  []string{string(domain.NotificationEventSyncConnected), string(domain.NotificationEventTest)},
	})

	assert.True(t, sender.CanSend(domain.NotificationEventSyncConnected))
	assert.True(t, sender.CanSend(domain.NotificationEventTest))
	assert.False(t, sender.CanSend(domain.NotificationEventSyncRemoved))

	disabled := NewDiscordSender(logger.Mock().With().Logger(), domain.Notification{
		Enabled: false,
		Events:  []string{string(domain.NotificationEventSyncConnected)},
	})
	assert.False(t, disabled.CanSend(domain.NotificationEventSyncConnected))
}

func TestTelegramSenderSend(t *testing.T) {
	var got TelegramMessage
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewTelegramSender(logger.Mock().With().Logger(), domain.Notification{
		Type:    domain.NotificationTypeTelegram,
		Enabled: true,
		Token:   "bot-token",
		Channel: "-100123",
	}).(*telegramSender)
	sender.baseURL = srv.URL

	err := sender.Send(domain.NotificationEventSyncConnected, domain.NotificationPayload{
		Subject: "Connected",
		Message: "github sync is <ready>",
	})
	require.NoError(t, err)

	assert.Equal(t, "/botbot-token/sendMessage", path)
	assert.Equal(t, "-100123", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.Contains(t, got.Text, "<b>Connected</b>")
	assert.Contains(t, got.Text, "&lt;ready&gt;")
}

func TestSlackSenderSend(t *testing.T) {
	var got SlackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewSlackSender(logger.Mock().With().Logger(), domain.Notification{
		Type:    domain.NotificationTypeSlack,
		Enabled: true,
		Webhook: srv.URL,
	})

	ts := time.Unix(1700000000, 0)
	err := sender.Send(domain.NotificationEventSyncConnected, domain.NotificationPayload{
		Subject:   "Connected",
		Message:   "notion sync is ready",
		Timestamp: ts,
	})
	require.NoError(t, err)

	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "good", got.Attachments[0].Color)
	assert.Equal(t, "Connected", got.Attachments[0].Title)
	assert.Equal(t, ts.Unix(), got.Attachments[0].Ts)
}

func TestWebhookSenderRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}))
	defer srv.Close()

	sender := NewWebhookSender(logger.Mock().With().Logger(), domain.Notification{
		Type:    domain.NotificationTypeWebhook,
		Webhook: srv.URL,
	})

	err := sender.Send(domain.NotificationEventTest, domain.NotificationPayload{})
	assert.ErrorContains(t, err, "status 418")
}
