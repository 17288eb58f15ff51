package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"spendwise/internal/app"
	"spendwise/internal/config"
	"spendwise/internal/jobs"
	"spendwise/internal/logger"
)

const stopTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	var noConsume bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sweeps on their schedules",
		Long: `Registers the three sweeps with the cron scheduler and consumes
recurring work items until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logger.Named("worker")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			scheduler := jobs.NewCronScheduler(ctx, time.UTC)
			if err := a.RegisterJobs(scheduler); err != nil {
				return err
			}
			scheduler.Start()
			log.Infow("scheduler started", "jobs", scheduler.Jobs())

			if noConsume {
				<-ctx.Done()
			} else if err := a.ConsumeRecurring(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorw("recurring consumer stopped", "error", err)
			}

			log.Info("stopping scheduler")
			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			return scheduler.Stop(stopCtx)
		},
	}

	cmd.Flags().BoolVar(&noConsume, "no-consume", false, "only schedule sweeps; leave work items to other consumers")
	return cmd
}
