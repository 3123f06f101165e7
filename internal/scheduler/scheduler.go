// Package scheduler runs the reminder sweep on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"taskboard/internal/reminder"
	"taskboard/pkg/logger"
	"taskboard/pkg/trace"
)

type Sweeper interface {
	RunPeriodicSweep(ctx context.Context) (reminder.SweepResult, error)
}

// Scheduler triggers sweeps. A tick is skipped while the previous sweep is
// still running.
type Scheduler struct {
	sweeper Sweeper
	cron    *cron.Cron
	timeout time.Duration
	logger  *zap.Logger
}

// New registers the sweep under schedule, a standard five-field cron expression or
// a descriptor such as "@every 1h". Each sweep is bounded by timeout.
func New(sweeper Sweeper, schedule string, timeout time.Duration, log *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		sweeper: sweeper,
		timeout: timeout,
		logger:  logger.OrNop(log),
	}

	cl := cronLogger{s.logger.Sugar()}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if _, err := s.cron.AddFunc(schedule, func() {
		_, _ = s.RunOnce(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Reminder scheduler started")
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("Reminder scheduler stopped")
}

// RunOnce performs a single sweep and logs its result.
func (s *Scheduler) RunOnce(ctx context.Context) (reminder.SweepResult, error) {
	ctx, _ = trace.Ensure(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	log := logger.WithTrace(ctx, s.logger)

	start := time.Now()
	result, err := s.sweeper.RunPeriodicSweep(ctx)
	if err != nil {
		log.Error("Reminder sweep failed", zap.Error(err))
		return result, err
	}

	log.Debug("Reminder sweep finished", zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
