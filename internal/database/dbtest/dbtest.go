// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/bookshelf/internal/config"
	"github.com/redmonkez12/bookshelf/internal/database"
	"github.com/redmonkez12/bookshelf/internal/logging"
)

// New returns an empty, fully migrated database closed at test cleanup
func New(t testing.TB) *bun.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file::memory:?_pragma=foreign_keys(1)",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db, logging.Discard()))

	return db
}
