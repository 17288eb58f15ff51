package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"spendwise/internal/database"
	"spendwise/internal/logger"
)

var source string

var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Apply or roll back the PostgreSQL schema",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&source, "source", "file://migrations", "migration source URL")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrate(func(m *migrate.Migrate, _ []string) error {
			if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration up failed: %w", err)
			}
			logger.Get().Info("Migrations applied successfully")
			return nil
		}),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "down [N]",
		Short: "Roll back N migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withMigrate(func(m *migrate.Migrate, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				steps = n
			}
			if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration down failed: %w", err)
			}
			logger.Get().Infof("Rolled back %d migration(s)", steps)
			return nil
		}),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: withMigrate(func(m *migrate.Migrate, _ []string) error {
			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				logger.Get().Info("No migrations applied")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to get version: %w", err)
			}
			logger.Get().Infof("Version: %d, Dirty: %v", version, dirty)
			return nil
		}),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "force V",
		Short: "Mark version V as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrate(func(m *migrate.Migrate, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			if err := m.Force(v); err != nil {
				return fmt.Errorf("force failed: %w", err)
			}
			logger.Get().Infof("Forced version %d", v)
			return nil
		}),
	})
}

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		logger.Get().Errorf("Migration error: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}

// withMigrate opens a migrate instance against the configured database for
// the duration of fn.
func withMigrate(fn func(m *migrate.Migrate, args []string) error) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, args []string) error {
		cfg, err := database.NewConfig()
		if err != nil {
			return fmt.Errorf("failed to load database config: %w", err)
		}
		if cfg.Driver != database.DriverPostgres {
			return fmt.Errorf("SQL migrations target postgres; %s schemas are migrated by the server on startup", cfg.Driver)
		}

		m, err := migrate.New(source, cfg.MigrateURL())
		if err != nil {
			return fmt.Errorf("failed to create migrate instance: %w", err)
		}
		defer func() {
			srcErr, dbErr := m.Close()
			if srcErr != nil {
				logger.Get().Warnf("migrate source close error: %v", srcErr)
			}
			if dbErr != nil {
				logger.Get().Warnf("migrate database close error: %v", dbErr)
			}
		}()

		return fn(m, args)
	}
}
