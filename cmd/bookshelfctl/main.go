package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/bookshelf/cmd/bookshelfctl/ui"
	"github.com/redmonkez12/bookshelf/internal/config"
	"github.com/redmonkez12/bookshelf/internal/database"
	"github.com/redmonkez12/bookshelf/internal/logging"
	"github.com/redmonkez12/bookshelf/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bookshelfctl",
		Short:         "Operate a Bookshelf deployment",
		Long:          "Maintenance commands for Bookshelf: schema migrations and environment checks. Configuration is read from the environment and .env like the server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE:  withDB(runMigrateUp),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE:  withDB(runMigrateDown),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the current schema version",
			RunE:  withDB(runMigrateStatus),
		},
	)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Verify configuration and connectivity to the database, Redis and S3",
		RunE:  runCheck,
	}
	checkCmd.Flags().Duration("timeout", 5*time.Second, "Timeout for each connectivity check")

	rootCmd.AddCommand(migrateCmd, checkCmd)
	return rootCmd
}

type dbCommand func(cmd *cobra.Command, db *bun.DB, logger *logging.Logger) error

// withDB loads configuration and opens the database before running fn
func withDB(fn dbCommand) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			ui.PrintError(cmd.ErrOrStderr(), err.Error())
			return err
		}

		db, err := database.Open(cfg.Database)
		if err != nil {
			ui.PrintError(cmd.ErrOrStderr(), err.Error())
			return err
		}
		defer db.Close()

		logger := logging.NewLogger(cfg.Server.IsDevelopment())
		if err := fn(cmd, db, logger); err != nil {
			ui.PrintError(cmd.ErrOrStderr(), err.Error())
			return err
		}
		return nil
	}
}

func runMigrateUp(cmd *cobra.Command, db *bun.DB, logger *logging.Logger) error {
	if err := database.Migrate(cmd.Context(), db, logger); err != nil {
		return err
	}
	return printVersion(cmd, db, "Migrations applied")
}

func runMigrateDown(cmd *cobra.Command, db *bun.DB, logger *logging.Logger) error {
	if err := database.MigrateDown(cmd.Context(), db, logger); err != nil {
		return err
	}
	return printVersion(cmd, db, "Rolled back one migration")
}

func runMigrateStatus(cmd *cobra.Command, db *bun.DB, _ *logging.Logger) error {
	return printVersion(cmd, db, "Schema status")
}

func printVersion(cmd *cobra.Command, db *bun.DB, title string) error {
	version, err := database.MigrationVersion(cmd.Context(), db)
	if err != nil {
		return err
	}
	ui.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("%s: schema version %d", title, version))
	return nil
}

func runCheck(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	timeout, _ := cmd.Flags().GetDuration("timeout")

	cfg, err := config.Load()
	if err != nil {
		ui.PrintError(cmd.ErrOrStderr(), err.Error())
		return err
	}

	ui.PrintTitle(out, "Bookshelf environment")
	checks := []ui.Check{
		{Name: "config", OK: true, Detail: fmt.Sprintf("env=%s tokens=%s", cfg.Server.Env, cfg.Auth.TokenFormat)},
		checkDatabase(cmd.Context(), cfg.Database, timeout),
		checkRedis(cmd.Context(), cfg.Redis, timeout),
		checkStorage(cmd.Context(), cfg.Storage, timeout),
		checkEmail(cfg.Email),
	}

	if !ui.PrintChecks(out, checks) {
		return errors.New("one or more checks failed")
	}
	return nil
}

func checkDatabase(ctx context.Context, cfg config.DatabaseConfig, timeout time.Duration) ui.Check {
	c := ui.Check{Name: "database", Detail: cfg.Driver}

	db, err := database.Open(cfg)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	version, err := database.MigrationVersion(ctx, db)
	if err != nil {
		c.Detail = err.Error()
		return c
	}

	c.OK = true
	c.Detail = fmt.Sprintf("%s, schema version %d", cfg.Driver, version)
	return c
}

func checkRedis(ctx context.Context, cfg config.RedisConfig, timeout time.Duration) ui.Check {
	c := ui.Check{Name: "redis", Detail: cfg.Address()}
	if !cfg.Enabled {
		c.Skipped = true
		c.Detail = "disabled, rate limiting is off"
		return c
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		c.Detail = err.Error()
		return c
	}

	c.OK = true
	return c
}

func checkStorage(ctx context.Context, cfg config.StorageConfig, timeout time.Duration) ui.Check {
	c := ui.Check{Name: "storage", Detail: cfg.Bucket}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	store, err := storage.NewS3Store(ctx, cfg)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		c.Skipped = true
		c.Detail = "S3_BUCKET not set, profile picture uploads are disabled"
		return c
	case err != nil:
		c.Detail = err.Error()
		return c
	}

	if err := store.Ping(ctx); err != nil {
		c.Detail = err.Error()
		return c
	}

	c.OK = true
	return c
}

func checkEmail(cfg config.EmailConfig) ui.Check {
	c := ui.Check{Name: "email", Detail: cfg.Address()}
	if cfg.SMTPHost == "" {
		c.Detail = "SMTP_HOST not set, reset emails cannot be delivered"
		return c
	}
	c.OK = true
	return c
}
