package sweeper

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron"
	"go.uber.org/zap"

	"github.com/wildcard-labs/deck-indexer/internal/jobs"
	"github.com/wildcard-labs/deck-indexer/internal/logger"
)

// RefreshConfig holds the cron schedules of the refresh sweeper. Both specs
// use the six-field form with a leading seconds field.
type RefreshConfig struct {
	DailyStatsSpec    string
	WeeklyHoldersSpec string
}

// RefreshSweeper drives the scheduled stats and holder refreshes. One job
// runs at a time; a schedule firing while the previous run is still going
// is skipped.
type RefreshSweeper struct {
	config RefreshConfig
	runner *jobs.Runner

	cron    *cron.Cron
	running sync.Mutex
	wg      sync.WaitGroup
}

// NewRefreshSweeper creates a new refresh sweeper
func NewRefreshSweeper(config RefreshConfig, runner *jobs.Runner) *RefreshSweeper {
	return &RefreshSweeper{
		config: config,
		runner: runner,
	}
}

// Name returns the sweeper's name
func (s *RefreshSweeper) Name() string {
	return "refresh-sweeper"
}

// Start registers the cron schedules and blocks until the context is
// canceled
func (s *RefreshSweeper) Start(ctx context.Context) error {
	s.cron = cron.New()

	if err := s.cron.AddFunc(s.config.DailyStatsSpec, func() {
		s.runGuarded(ctx, "daily-stats", s.runner.RunDailyStats)
	}); err != nil {
		return fmt.Errorf("invalid daily stats schedule %q: %w", s.config.DailyStatsSpec, err)
	}

	if err := s.cron.AddFunc(s.config.WeeklyHoldersSpec, func() {
		s.runGuarded(ctx, "weekly-holders", s.runner.RunWeeklyHolders)
	}); err != nil {
		return fmt.Errorf("invalid weekly holders schedule %q: %w", s.config.WeeklyHoldersSpec, err)
	}

	logger.InfoCtx(ctx, "refresh sweeper started",
		zap.String("daily_stats", s.config.DailyStatsSpec),
		zap.String("weekly_holders", s.config.WeeklyHoldersSpec),
	)

	s.cron.Start()
	<-ctx.Done()
	return ctx.Err()
}

// Stop stops the schedules and waits for an in-progress run to finish
func (s *RefreshSweeper) Stop(ctx context.Context) error {
	if s.cron != nil {
		s.cron.Stop()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runGuarded runs a job unless another one is already in progress
func (s *RefreshSweeper) runGuarded(ctx context.Context, name string, run func(context.Context) jobs.Result) {
	if !s.running.TryLock() {
		logger.WarnCtx(ctx, "skipping scheduled run, previous run still in progress",
			zap.String("job", name),
		)
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	defer s.running.Unlock()

	result := run(ctx)
	if result.Success {
		logger.InfoCtx(ctx, "scheduled run complete",
			zap.String("job", result.Job),
			zap.Duration("duration", result.Duration),
			zap.Int("refreshed", result.Refreshed),
		)
	} else {
		logger.WarnCtx(ctx, "scheduled run failed",
			zap.String("job", result.Job),
			zap.Duration("duration", result.Duration),
			zap.Int("refreshed", result.Refreshed),
			zap.String("error", result.Error),
		)
	}
}
