package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"spendwise/internal/logger"
)

// Names of the sweeps run by the worker and the pipeline endpoints.
const (
	Recurring      = "recurring"
	BudgetAlerts   = "budget-alerts"
	MonthlyReports = "monthly-reports"
)

// JobFunc is a scheduled sweep.
type JobFunc func(ctx context.Context) error

// Scheduler fires registered jobs on cron schedules.
type Scheduler interface {
	Register(name, spec string, fn JobFunc) error
	Start()
	Stop(ctx context.Context) error
}

// CronScheduler runs jobs with standard five-field cron expressions. A job
// still running when its next tick fires is skipped for that tick.
type CronScheduler struct {
	cron *cron.Cron
	ctx  context.Context
	log  *zap.SugaredLogger
}

// NewCronScheduler creates a scheduler whose jobs run with ctx. Schedules are
// evaluated in loc.
func NewCronScheduler(ctx context.Context, loc *time.Location) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	log := logger.Named("scheduler")
	cl := cronLogger{log: log}

	return &CronScheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx: ctx,
		log: log,
	}
}

// Register adds fn under name on the cron spec.
func (s *CronScheduler) Register(name, spec string, fn JobFunc) error {
	_, err := s.cron.AddFunc(spec, func() {
		_ = RunNow(s.ctx, name, fn)
	})
	if err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}
	s.log.Infow("registered job", "job", name, "schedule", spec)
	return nil
}

// Jobs returns the number of registered jobs.
func (s *CronScheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start begins firing jobs in the background.
func (s *CronScheduler) Start() {
	s.cron.Start()
}

// Stop stops new ticks and waits for running jobs until ctx is done.
func (s *CronScheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs fn once, logging its duration and outcome.
func RunNow(ctx context.Context, name string, fn JobFunc) error {
	log := logger.Named("scheduler")
	start := time.Now()
	log.Infow("job started", "job", name)

	err := fn(ctx)
	if err != nil {
		log.Errorw("job failed", "job", name, "duration", time.Since(start), "error", err)
		return err
	}
	log.Infow("job finished", "job", name, "duration", time.Since(start))
	return nil
}

type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
