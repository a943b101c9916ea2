// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// BatchSweeper expires import batches left pending review for too long.
type BatchSweeper interface {
	ExpireStaleBatches(ctx context.Context, ttl time.Duration) (int64, error)
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  BatchSweeper
	schedule string
	ttl      time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a new job scheduler. schedule is a standard 5-field
// cron expression; ttl is how long a batch may stay pending review.
func NewScheduler(sweeper BatchSweeper, schedule string, ttl time.Duration, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:     c,
		sweeper:  sweeper,
		schedule: schedule,
		ttl:      ttl,
		timeout:  10 * time.Minute,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweepStaleBatches); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("sweep_schedule", s.schedule),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs. The returned context is done
// once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow triggers the stale batch sweep outside the schedule.
func (s *Scheduler) RunNow() {
	go s.sweepStaleBatches()
}

func (s *Scheduler) sweepStaleBatches() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, _ = s.sweep(ctx)
}

func (s *Scheduler) sweep(ctx context.Context) (int64, error) {
	s.logger.Info("starting stale import batch sweep", slog.Duration("ttl", s.ttl))

	n, err := s.sweeper.ExpireStaleBatches(ctx, s.ttl)
	if err != nil {
		s.logger.Error("failed to expire stale import batches", slog.Any("error", err))
		return 0, err
	}

	s.logger.Info("stale import batch sweep completed", slog.Int64("batches_expired", n))
	return n, nil
}
