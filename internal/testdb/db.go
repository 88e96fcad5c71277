package testdb

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/phrazzld/quizforge/internal/platform/postgres"
	"github.com/stretchr/testify/require"
)

// Environment variables consulted for the test database URL, in order.
const (
	EnvTestDBURL   = "QUIZFORGE_TEST_DB_URL"
	EnvDatabaseURL = "DATABASE_URL"
)

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 10 * time.Second

// tables are cleared between tests, children first.
var tables = []string{"item_tags", "items", "rejections"}

// GetTestDatabaseURL returns the first non-empty database URL variable.
func GetTestDatabaseURL() string {
	for _, name := range []string{EnvTestDBURL, EnvDatabaseURL} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// IsCI reports whether the tests run on a CI provider.
func IsCI() bool {
	for _, name := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI"} {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}

// GetTestDBWithT opens the test database and brings its schema up to date.
// Without a configured URL the test is skipped, or fails when running in CI.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		if IsCI() {
			t.Fatalf("%s or %s must be set in CI", EnvTestDBURL, EnvDatabaseURL)
		}
		t.Skipf("%s not set - skipping integration test", EnvTestDBURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := postgres.Open(ctx, dbURL, logger)
	require.NoError(t, err, "failed to open test database %s", postgres.MaskDatabaseURL(dbURL))
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	})

	require.NoError(t, postgres.Migrate(ctx, db, postgres.MigrateUp, logger), "failed to apply migrations")
	return db
}

// ResetTables empties every table the sink writes to, now and after the test.
func ResetTables(t *testing.T, db *sql.DB) {
	t.Helper()

	reset := func() {
		ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
		defer cancel()
		for _, table := range tables {
			if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				t.Errorf("failed to clear table %s: %v", table, err)
			}
		}
	}
	reset()
	t.Cleanup(reset)
}

// WithTx executes fn in a transaction that is always rolled back.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.Begin()
	require.NoError(t, err, "failed to begin transaction")
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("failed to roll back transaction: %v", err)
		}
	}()

	fn(t, tx)
}
