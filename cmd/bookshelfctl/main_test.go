package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/bookshelf/cmd/bookshelfctl/ui"
)

func setSQLiteEnv(t *testing.T) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "ctl.db") + "?_pragma=foreign_keys(1)"
	t.Setenv("PASETO_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", dsn)
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("S3_BUCKET", "")
	t.Setenv("SMTP_HOST", "smtp.example.com")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateCommands(t *testing.T) {
	setSQLiteEnv(t)

	out, err := execute(t, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 0")

	out, err = execute(t, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 1")

	out, err = execute(t, "migrate", "down")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 0")
}

func TestCheckCommand(t *testing.T) {
	setSQLiteEnv(t)

	out, err := execute(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "database")
	assert.Contains(t, out, "rate limiting is off")
	assert.Contains(t, out, "uploads are disabled")
}

func TestCheckCommand_FailsWithoutSMTP(t *testing.T) {
	setSQLiteEnv(t)
	t.Setenv("SMTP_HOST", "")

	_, err := execute(t, "check")
	assert.Error(t, err)
}

func TestPrintChecks(t *testing.T) {
	var buf bytes.Buffer

	ok := ui.PrintChecks(&buf, []ui.Check{
		{Name: "a", OK: true},
		{Name: "b", Skipped: true},
	})
	assert.True(t, ok)

	ok = ui.PrintChecks(&buf, []ui.Check{{Name: "c", Detail: "boom"}})
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "boom")
}
