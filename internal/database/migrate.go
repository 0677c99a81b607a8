package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/redmonkez12/bookshelf/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// gooseLogger routes goose output through the application logger
type gooseLogger struct {
	logger *logging.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...), "component", "migrations")
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...), "component", "migrations")
}

func setupGoose(db *bun.DB, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.Discard()
	}

	gooseDialect := "postgres"
	if db.Dialect().Name() == dialect.SQLite {
		gooseDialect = "sqlite3"
	}

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{logger: logger})
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	return nil
}

// Migrate applies all pending embedded migrations
func Migrate(ctx context.Context, db *bun.DB, logger *logging.Logger) error {
	if err := setupGoose(db, logger); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db.DB, migrationsDir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// MigrateDown rolls back the most recently applied migration
func MigrateDown(ctx context.Context, db *bun.DB, logger *logging.Logger) error {
	if err := setupGoose(db, logger); err != nil {
		return err
	}

	if err := goose.DownContext(ctx, db.DB, migrationsDir); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}

	return nil
}

// MigrationVersion returns the version of the last applied migration, 0 for none
func MigrationVersion(ctx context.Context, db *bun.DB) (int64, error) {
	if err := setupGoose(db, nil); err != nil {
		return 0, err
	}

	version, err := goose.GetDBVersionContext(ctx, db.DB)
	if err != nil {
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}

	return version, nil
}
