package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RezaEskandarii/pgqueue/internal/constants"
	"github.com/RezaEskandarii/pgqueue/internal/lock"
	"github.com/RezaEskandarii/pgqueue/internal/store"
	"github.com/robfig/cron/v3"
)

// AccessKeyPurger drops temporary access keys that expired unused.
type AccessKeyPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Reaper periodically resolves jobs whose lease expired. Ticks that find the
// reaper lock taken by another process are skipped.
type Reaper struct {
	jobs     store.JobStore
	lock     lock.DistributedLockManager
	purger   AccessKeyPurger
	schedule string
	logger   *slog.Logger
}

func NewReaper(jobs store.JobStore, lockManager lock.DistributedLockManager, schedule string, logger *slog.Logger) (*Reaper, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid reaper schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		jobs:     jobs,
		lock:     lockManager,
		schedule: schedule,
		logger:   logger,
	}, nil
}

// WithAccessKeyPurger makes each tick also purge expired access keys.
func (r *Reaper) WithAccessKeyPurger(p AccessKeyPurger) *Reaper {
	r.purger = p
	return r
}

// RunOnce runs a single pass and returns how many jobs it released.
func (r *Reaper) RunOnce(ctx context.Context) (int, error) {
	acquired, err := r.lock.TryAcquire(ctx, constants.ReaperLock)
	if err != nil {
		return 0, err
	}
	if !acquired {
		r.logger.Debug("reaper lock held elsewhere, skipping")
		return 0, nil
	}
	defer func() {
		if err := r.lock.Release(context.WithoutCancel(ctx), constants.ReaperLock); err != nil {
			r.logger.Warn("failed to release reaper lock", "error", err)
		}
	}()

	released, err := r.jobs.CheckAndReleaseTimedOutJobs(ctx)
	if err != nil {
		return 0, err
	}
	if released > 0 {
		r.logger.Info("released timed out jobs", "count", released)
	}

	if r.purger != nil {
		if purged, err := r.purger.PurgeExpired(ctx); err != nil {
			r.logger.Warn("failed to purge access keys", "error", err)
		} else if purged > 0 {
			r.logger.Debug("purged expired access keys", "count", purged)
		}
	}

	return released, nil
}

// Start runs the reaper on its schedule until ctx is done.
func (r *Reaper) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("reaper pass failed", "error", err)
		}
	}); err != nil {
		return err
	}

	r.logger.Info("reaper started", "schedule", r.schedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	r.logger.Info("reaper stopped")
	return nil
}
