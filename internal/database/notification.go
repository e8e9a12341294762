package database

import (
	"context"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/driftworks/syncbridge/pkg/errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type NotificationRepo struct {
	log zerolog.Logger
	db  *DB
}

func NewNotificationRepo(log logger.Logger, db *DB) domain.NotificationRepo {
	return &NotificationRepo{
		log: log.With().Str("repo", "notification").Logger(),
		db:  db,
	}
}

// Find retrieves notifications matching the query parameters together with
// the total count before pagination.
func (r *NotificationRepo) Find(ctx context.Context, params domain.NotificationQueryParams) ([]domain.Notification, int, error) {
	var notifications []domain.Notification
	var totalCount int64

	db := r.db.Get().WithContext(ctx).Model(&domain.Notification{})

	if params.Search != "" {
		db = db.Where("name LIKE ?", likePattern(params.Search))
	}
	if len(params.Filters.Types) > 0 {
		db = db.Where("type IN ?", params.Filters.Types)
	}

	if err := db.Count(&totalCount).Error; err != nil {
		r.log.Error().Err(err).Msg("Failed to count notifications")
		return nil, 0, errors.Wrap(err, "failed to count notifications")
	}

	db = db.Order("name asc")

	if params.Limit > 0 {
		db = db.Limit(int(params.Limit))
	}
	if params.Offset > 0 {
		db = db.Offset(int(params.Offset))
	}

	if err := db.Find(&notifications).Error; err != nil {
		r.log.Error().Err(err).Msg("Failed to find notifications")
		return nil, 0, errors.Wrap(err, "failed to find notifications")
	}

	return notifications, int(totalCount), nil
}

// List retrieves all notifications, ordered by name.
func (r *NotificationRepo) List(ctx context.Context) ([]domain.Notification, error) {
	var notifications []domain.Notification
	result := r.db.Get().WithContext(ctx).Order("name asc").Find(&notifications)

	if result.Error != nil {
		r.log.Error().Err(result.Error).Msg("Failed to list notifications")
		return nil, errors.Wrap(result.Error, "failed to list notifications")
	}

	return notifications, nil
}

// FindByID retrieves a specific notification by its ID.
func (r *NotificationRepo) FindByID(ctx context.Context, id int) (*domain.Notification, error) {
	var notification domain.Notification
	result := r.db.Get().WithContext(ctx).First(&notification, id)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(gorm.ErrRecordNotFound, "notification with id %d not found", id)
		}
		r.log.Error().Err(result.Error).Int("id", id).Msg("Failed to find notification by ID")
		return nil, errors.Wrap(result.Error, "failed to find notification by ID")
	}

	return &notification, nil
}

// Store creates a new notification record.
func (r *NotificationRepo) Store(ctx context.Context, notification domain.Notification) (*domain.Notification, error) {
	result := r.db.Get().WithContext(ctx).Create(&notification)

	if result.Error != nil {
		r.log.Error().Err(result.Error).Msg("Failed to store notification")
		return nil, errors.Wrap(result.Error, "failed to store notification")
	}

	r.log.Debug().Int("id", notification.ID).Msg("Successfully stored notification")
	return &notification, nil
}

// Update modifies an existing notification record. Save updates every field
// of the row matching the primary key, inserting when no such row exists.
func (r *NotificationRepo) Update(ctx context.Context, notification domain.Notification) (*domain.Notification, error) {
	if notification.ID == 0 {
		return nil, errors.New("cannot update notification with zero ID")
	}

	result := r.db.Get().WithContext(ctx).Save(&notification)

	if result.Error != nil {
		r.log.Error().Err(result.Error).Int("id", notification.ID).Msg("Failed to update notification")
		return nil, errors.Wrap(result.Error, "failed to update notification")
	}

	if result.RowsAffected == 0 {
		r.log.Warn().Int("id", notification.ID).Msg("Update operation affected 0 rows, notification might not exist")
	}

	r.log.Debug().Int("id", notification.ID).Msg("Successfully updated notification")
	return &notification, nil
}

// Delete removes a notification record by its ID.
func (r *NotificationRepo) Delete(ctx context.Context, notificationID int) error {
	result := r.db.Get().WithContext(ctx).Delete(&domain.Notification{}, notificationID)

	if result.Error != nil {
		r.log.Error().Err(result.Error).Int("id", notificationID).Msg("Failed to delete notification")
		return errors.Wrap(result.Error, "failed to delete notification")
	}

	if result.RowsAffected == 0 {
		r.log.Warn().Int("id", notificationID).Msg("Attempted to delete non-existent notification")
		return errors.Wrap(gorm.ErrRecordNotFound, "notification with id %d not found for deletion", notificationID)
	}

	r.log.Info().Int("id", notificationID).Msg("Successfully deleted notification")
	return nil
}
