package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spendwise/internal/app"
	"spendwise/internal/config"
	"spendwise/internal/jobs"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "sweep <job>",
		Short:     "Run one sweep now",
		Long:      fmt.Sprintf("Runs a single sweep and exits. Jobs: %s, %s, %s.", jobs.Recurring, jobs.BudgetAlerts, jobs.MonthlyReports),
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.Recurring, jobs.BudgetAlerts, jobs.MonthlyReports},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			name := args[0]
			if name == jobs.Recurring {
				return a.SweepRecurring(ctx)
			}
			fn, err := a.Sweep(name)
			if err != nil {
				return err
			}
			return jobs.RunNow(ctx, name, fn)
		},
	}
}
