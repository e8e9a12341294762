package domain

import (
	"context"
	"time"

	"github.com/driftworks/syncbridge/pkg/errors"
)

var ErrUnsupportedNotificationType = errors.New("unsupported notification type")

type NotificationRepo interface {
	List(ctx context.Context) ([]Notification, error)
	Find(ctx context.Context, params NotificationQueryParams) ([]Notification, int, error)
	FindByID(ctx context.Context, id int) (*Notification, error)
	Store(ctx context.Context, notification Notification) (*Notification, error)
	Update(ctx context.Context, notification Notification) (*Notification, error)
	Delete(ctx context.Context, notificationID int) error
}

type NotificationSender interface {
	Send(event NotificationEvent, payload NotificationPayload) error
	CanSend(event NotificationEvent) bool
}

// Notification represents a configured notification channel.
type Notification struct {
	ID        int              `json:"id" gorm:"primaryKey;autoIncrement;column:id"`
	Name      string           `json:"name" gorm:"column:name"`
	Type      NotificationType `json:"type" gorm:"column:type"`
	Enabled   bool             `json:"enabled" gorm:"column:enabled"`
	Events    []string         `json:"events" gorm:"column:events;type:text;serializer:json"`
	Token     string           `json:"token" gorm:"column:token"`
	Webhook   string           `json:"webhook" gorm:"column:webhook"`
	Title     string           `json:"title" gorm:"column:title"`
	Icon      string           `json:"icon" gorm:"column:icon"`
	Username  string           `json:"username" gorm:"column:username"`
	Host      string           `json:"host" gorm:"column:host"`
	Password  string           `json:"password" gorm:"column:password"`
	Channel   string           `json:"channel" gorm:"column:channel"`
	Targets   string           `json:"targets" gorm:"column:targets"`
	CreatedAt time.Time        `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

type NotificationPayload struct {
	Subject   string
	Message   string
	Event     NotificationEvent
	Provider  Provider
	Timestamp time.Time
}

type NotificationType string

const (
	NotificationTypeDiscord  NotificationType = "DISCORD"
	NotificationTypeSlack    NotificationType = "SLACK"
	NotificationTypeTelegram NotificationType = "TELEGRAM"
	NotificationTypeWebhook  NotificationType = "WEBHOOK"
)

type NotificationEvent string

const (
	NotificationEventAppUpdateAvailable NotificationEvent = "SERVER_UPDATE_AVAILABLE"
	NotificationEventSyncConnected      NotificationEvent = "SYNC_CONNECTED"
	NotificationEventSyncRemoved        NotificationEvent = "SYNC_REMOVED"
	NotificationEventSyncBroken         NotificationEvent = "SYNC_BROKEN"
	NotificationEventTest               NotificationEvent = "TEST"
)

type NotificationEventArr []NotificationEvent

type NotificationQueryParams struct {
	Limit   uint64
	Offset  uint64
	Sort    map[string]string
	Filters struct {
		Types  []NotificationType
		Events []string
	}
	Search string
}
