// Package testdb provides utilities specifically for database testing.
// Tests using it are skipped unless DATABASE_URL points at a disposable
// PostgreSQL database.
package testdb

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/stretchr/testify/require"
	"github.com/tasktrack/attachments/internal/platform/logger"
	"github.com/tasktrack/attachments/internal/platform/postgres"
)

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 10 * time.Second

var migrateOnce sync.Once

// IsIntegrationTestEnvironment returns true if the DATABASE_URL environment
// variable is set, indicating that integration tests can be run.
func IsIntegrationTestEnvironment() bool {
	return len(os.Getenv("DATABASE_URL")) > 0
}

// GetTestDBWithT opens the test database and applies the embedded migrations
// once per test binary. The connection is closed when the test ends.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()

	if !IsIntegrationTestEnvironment() {
		t.Skip("DATABASE_URL not set; skipping database test")
	}

	db, err := sql.Open("pgx", os.Getenv("DATABASE_URL"))
	require.NoError(t, err, "Failed to open database connection")
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "Failed to ping database")

	var migrateErr error
	migrateOnce.Do(func() {
		_, l := logger.NewTestLogger(t)
		migrateErr = postgres.Migrate(ctx, db, "up", l)
	})
	require.NoError(t, migrateErr, "Failed to run migrations")

	return db
}

// WithTx executes a test function within a transaction, automatically rolling back
// after the test completes. This ensures test isolation and prevents side effects.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.Begin()
	require.NoError(t, err, "Failed to begin transaction")

	defer func() {
		err := tx.Rollback()
		if err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("Warning: failed to rollback transaction: %v", err)
		}
	}()

	fn(t, tx)
}

// CleanupTask deletes every attachment of the given tasks. Tests that need
// committed data (concurrency tests) use it instead of WithTx.
func CleanupTask(t *testing.T, db *sql.DB, taskIDs ...int64) {
	t.Helper()
	for _, id := range taskIDs {
		_, err := db.Exec("DELETE FROM task_attachments WHERE task_id = $1", id)
		if err != nil {
			t.Logf("Warning: failed to clean up task %d: %v", id, err)
		}
	}
}
