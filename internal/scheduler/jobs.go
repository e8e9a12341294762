package scheduler

import (
	"context"
	"time"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/notification"
	"github.com/driftworks/syncbridge/internal/update"
	"github.com/rs/zerolog"
)

// BatchSize caps how many sync users a single sweep run deletes.
const BatchSize = 1000

type CheckUpdatesJob struct {
	Name          string
	Log           zerolog.Logger
	NotifSvc      notification.Service
	updateService *update.Service

	lastCheckVersion string
}

func (j *CheckUpdatesJob) Run() {
	newRelease, err := j.updateService.CheckUpdateAvailable(context.TODO())
	if err != nil {
		j.Log.Error().Err(err).Msg("could not check for new release")
		return
	}

	if newRelease != nil {
		// this is not persisted so this can trigger more than once
		// lets check if we have different versions between runs
		if newRelease.TagName != j.lastCheckVersion {
			j.Log.Info().Msgf("a new release has been found: %v Consider updating.", newRelease.TagName)

			j.NotifSvc.Send(domain.NotificationEventAppUpdateAvailable, domain.NotificationPayload{
				Subject:   "New update available!",
				Message:   newRelease.TagName,
				Event:     domain.NotificationEventAppUpdateAvailable,
				Timestamp: time.Now(),
			})
		}

		j.lastCheckVersion = newRelease.TagName
	}
}

// AbandonedSyncSweepJob deletes pending sync users whose connect flow was
// never completed. A record counts as abandoned when it still has no
// credentials after the configured age.
type AbandonedSyncSweepJob struct {
	Name   string
	Log    zerolog.Logger
	Repo   domain.SyncUserRepo
	Config *domain.SyncSweepConfig
}

func (j *AbandonedSyncSweepJob) Run() {
	if !j.Config.Enabled {
		j.Log.Info().Msg("Abandoned sync sweep is disabled in configuration")
		return
	}

	j.Log.Info().Msg("Starting abandoned sync sweep")
	ctx := context.Background()

	maxAge := time.Duration(j.Config.MaxAgeHours) * time.Hour
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	cutoff := time.Now().Add(-maxAge)

	batchSize := j.Config.BatchSize
	if batchSize <= 0 {
		batchSize = BatchSize
	}

	ids, err := j.Repo.FindAbandonedIDs(ctx, cutoff, batchSize)
	if err != nil {
		j.Log.Error().Err(err).Msg("Failed to find abandoned sync users")
		return
	}

	if len(ids) == 0 {
		j.Log.Debug().Msg("No abandoned sync users found")
		return
	}

	deleted, err := j.Repo.DeleteBatch(ctx, ids)
	if err != nil {
		j.Log.Error().Err(err).Msg("Failed to delete abandoned sync users")
		return
	}

	j.Log.Info().
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Msg("Abandoned sync sweep completed")
}
