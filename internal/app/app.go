// Package app wires configuration, storage, the work queue and the services
// shared by the API server and the worker.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"spendwise/internal/config"
	"spendwise/internal/database"
	"spendwise/internal/insights"
	"spendwise/internal/jobs"
	"spendwise/internal/logger"
	"spendwise/internal/notify"
	"spendwise/internal/services"
)

// maxAttempts bounds redelivery of a failing work item.
const maxAttempts = 5

// App holds the long-lived dependencies of a process.
type App struct {
	Config *config.Config
	DB     *database.Manager
	Queue  jobs.WorkQueue

	Users        services.UserServicer
	Accounts     services.AccountServicer
	Transactions services.TransactionServicer
	Budgets      services.BudgetServicer
	Audit        services.AuditServicer
	Recurring    services.RecurringServicer
	BudgetAlerts services.BudgetAlertServicer
	Reports      services.ReportServicer

	log *zap.SugaredLogger
}

// New connects to the database, applies migrations, opens the work queue and
// builds every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Named("app")

	dbConfig, err := database.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load database configuration: %w", err)
	}
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := dbManager.RunMigrations(); err != nil {
		dbManager.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	queue, err := openQueue(cfg)
	if err != nil {
		dbManager.Close()
		return nil, err
	}

	var generator insights.Generator
	if cfg.GeminiAPIKey != "" {
		gemini, err := insights.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Warnw("insight generator unavailable, using fallback insights", "error", err)
		} else {
			generator = gemini
		}
	}
	sender := notify.NewSender(cfg.ResendAPIKey, cfg.ResendURL, cfg.EmailFrom)

	db := dbManager.DB()
	accounts := services.NewAccountService(db)
	a := &App{
		Config:       cfg,
		DB:           dbManager,
		Queue:        queue,
		Users:        services.NewUserService(db),
		Accounts:     accounts,
		Transactions: services.NewTransactionService(db, accounts),
		Budgets:      services.NewBudgetService(db),
		Audit:        services.NewAuditService(db),
		Recurring:    services.NewRecurringService(db, queue),
		BudgetAlerts: services.NewBudgetAlertService(db, sender),
		Reports:      services.NewReportService(db, sender, generator),
		log:          log,
	}
	return a, nil
}

// openQueue uses RabbitMQ when AMQP_URL is set and an in-process queue
// otherwise.
func openQueue(cfg *config.Config) (jobs.WorkQueue, error) {
	if cfg.AMQPURL == "" {
		return jobs.NewMemoryQueue(0, cfg.WorkerConcurrency, maxAttempts), nil
	}
	q, err := jobs.NewAMQPQueue(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.WorkerConcurrency, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to open work queue: %w", err)
	}
	return q, nil
}

// InProcessQueue reports whether work items live in this process, in which
// case the process must consume them itself.
func (a *App) InProcessQueue() bool {
	_, ok := a.Queue.(*jobs.MemoryQueue)
	return ok
}

// ConsumeRecurring processes recurring work items until ctx is cancelled.
// Completions are throttled per user.
func (a *App) ConsumeRecurring(ctx context.Context) error {
	a.log.Infow("consuming recurring work items", "per_minute", a.Config.RecurringPerMinute)
	return a.Queue.Consume(ctx, a.recurringHandler())
}

// SweepRecurring dispatches due recurring transactions once. On an
// in-process queue it also processes them before returning, since no other
// consumer exists.
func (a *App) SweepRecurring(ctx context.Context) error {
	q, ok := a.Queue.(*jobs.MemoryQueue)
	if !ok {
		return jobs.RunNow(ctx, jobs.Recurring, a.RunRecurring)
	}

	producing := make(chan struct{})
	drained := make(chan error, 1)
	go func() { drained <- q.Drain(ctx, a.recurringHandler(), producing) }()

	err := jobs.RunNow(ctx, jobs.Recurring, a.RunRecurring)
	close(producing)
	return errors.Join(err, <-drained)
}

func (a *App) recurringHandler() jobs.Handler {
	handler := func(ctx context.Context, item jobs.WorkItem) error {
		_, err := a.Recurring.ProcessWorkItem(ctx, item)
		return err
	}
	return jobs.Throttled(jobs.PerMinute(a.Config.RecurringPerMinute), handler)
}

// RegisterJobs schedules the three sweeps on s.
func (a *App) RegisterJobs(s jobs.Scheduler) error {
	schedules := map[string]string{
		jobs.Recurring:      a.Config.RecurringCron,
		jobs.BudgetAlerts:   a.Config.BudgetAlertCron,
		jobs.MonthlyReports: a.Config.MonthlyReportCron,
	}
	for name, spec := range schedules {
		fn, err := a.Sweep(name)
		if err != nil {
			return err
		}
		if err := s.Register(name, spec, fn); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the queue and the database.
func (a *App) Close() {
	if err := a.Queue.Close(); err != nil {
		a.log.Warnw("failed to close work queue", "error", err)
	}
	if err := a.DB.Close(); err != nil {
		a.log.Warnw("failed to close database", "error", err)
	}
}
