// Package janitor prunes old read notifications on a cron schedule. Unread
// notifications are never touched regardless of age.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"campusgig/internal/errors"
	"campusgig/internal/storage"
)

// Janitor wraps robfig/cron around the purge cycle.
type Janitor struct {
	cron      *cron.Cron
	store     storage.NotificationStore
	retention time.Duration
	spec      string
	log       *zap.Logger
}

// New creates a Janitor that purges read notifications older than retention,
// firing every intervalHours hours.
func New(store storage.NotificationStore, retention time.Duration, intervalHours int, log *zap.Logger) *Janitor {
	return &Janitor{
		cron:      cron.New(),
		store:     store,
		retention: retention,
		spec:      fmt.Sprintf("@every %dh", intervalHours),
		log:       log,
	}
}

// Start registers the purge job and starts the scheduler. One purge runs
// immediately so a long-idle deployment does not wait a full interval.
func (j *Janitor) Start(ctx context.Context) error {
	_, err := j.cron.AddFunc(j.spec, func() {
		j.runPurge(ctx)
	})
	if err != nil {
		return errors.Wrap(err, "cron.AddFunc")
	}

	j.cron.Start()
	j.log.Info("janitor started",
		zap.String("spec", j.spec),
		zap.Duration("retention", j.retention))

	go j.runPurge(ctx)
	return nil
}

// Stop shuts the scheduler down and waits for a running purge to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	j.log.Info("janitor stopped")
}

func (j *Janitor) runPurge(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-j.retention)
	purged, err := j.store.PurgeReadNotifications(ctx, cutoff)
	if err != nil {
		j.log.Error("notification purge failed", zap.Error(err))
		return
	}
	if purged > 0 {
		j.log.Info("purged read notifications",
			zap.Int64("count", purged),
			zap.Time("cutoff", cutoff))
	}
}
