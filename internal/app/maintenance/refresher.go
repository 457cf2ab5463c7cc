package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/scolarix/scolarix/internal/services"
	"github.com/scolarix/scolarix/pkg/logger"
)

const (
	defaultSnapshotSpec          = "0 3 * * *"
	defaultSnapshotRetentionDays = 30
)

// Refresher recomputes the statistics snapshot on a schedule and prunes
// snapshots that have aged out of the retention window.
type Refresher struct {
	results   *services.ResultService
	cron      *cron.Cron
	log       *zap.Logger
	schedule  string
	retention int
}

// Option customises the Refresher.
type Option func(*Refresher)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Refresher) {
		if c != nil {
			r.cron = c
		}
	}
}

// WithSnapshotSchedule overrides the cron specification for snapshot refreshes.
func WithSnapshotSchedule(spec string) Option {
	return func(r *Refresher) {
		if spec != "" {
			r.schedule = spec
		}
	}
}

// WithRetentionDays adjusts how long snapshots are kept before pruning.
func WithRetentionDays(days int) Option {
	return func(r *Refresher) {
		if days > 0 {
			r.retention = days
		}
	}
}

// NewRefresher constructs a Refresher with sensible defaults.
func NewRefresher(results *services.ResultService, opts ...Option) *Refresher {
	refresher := &Refresher{
		results:   results,
		schedule:  defaultSnapshotSpec,
		retention: defaultSnapshotRetentionDays,
		log:       logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(refresher)
	}

	if refresher.cron == nil {
		refresher.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return refresher
}

// Start registers the snapshot job with the cron scheduler and launches it.
func (r *Refresher) Start() error {
	if r.results == nil {
		return nil
	}

	if _, err := r.cron.AddFunc(r.schedule, func() {
		if err := r.RunOnce(context.Background()); err != nil {
			r.log.Warn("snapshot refresh failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	r.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (r *Refresher) Stop() context.Context {
	if r.cron == nil {
		return context.Background()
	}
	return r.cron.Stop()
}

// RunOnce computes one snapshot and prunes expired ones. Also used during
// graceful shutdown so the cache is fresh on the next boot.
func (r *Refresher) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.results == nil {
		return nil
	}

	var errs error

	started := time.Now()
	if _, err := r.results.Snapshot(ctx); err != nil {
		errs = multierr.Append(errs, err)
	} else {
		r.log.Info("statistics snapshot refreshed", zap.Duration("took", time.Since(started)))
	}

	if pruned, err := r.results.PruneSnapshots(ctx, r.retention); err != nil {
		errs = multierr.Append(errs, err)
	} else if pruned > 0 {
		r.log.Info("stale snapshots pruned", zap.Int64("count", pruned))
	}

	return errs
}
