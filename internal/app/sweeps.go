package app

import (
	"context"
	"fmt"

	"spendwise/internal/jobs"
)

// RunRecurring enqueues every due recurring transaction.
func (a *App) RunRecurring(ctx context.Context) error {
	result, err := a.Recurring.DispatchDue(ctx)
	a.log.Infow("recurring sweep", "enqueued", result.Enqueued)
	return err
}

// RunBudgetAlerts checks every budget.
func (a *App) RunBudgetAlerts(ctx context.Context) error {
	result, err := a.BudgetAlerts.CheckBudgets(ctx)
	a.log.Infow("budget alert sweep", "checked", result.Checked, "alerted", result.Alerted, "failed", result.Failed)
	return err
}

// RunMonthlyReports emails last month's report to every user.
func (a *App) RunMonthlyReports(ctx context.Context) error {
	result, err := a.Reports.GenerateMonthlyReports(ctx)
	a.log.Infow("monthly report sweep", "users", result.Users, "sent", result.Sent, "failed", result.Failed)
	return err
}

// Sweep returns the sweep registered under name.
func (a *App) Sweep(name string) (jobs.JobFunc, error) {
	switch name {
	case jobs.Recurring:
		return a.RunRecurring, nil
	case jobs.BudgetAlerts:
		return a.RunBudgetAlerts, nil
	case jobs.MonthlyReports:
		return a.RunMonthlyReports, nil
	default:
		return nil, fmt.Errorf("unknown job %q (use %s, %s or %s)", name, jobs.Recurring, jobs.BudgetAlerts, jobs.MonthlyReports)
	}
}
