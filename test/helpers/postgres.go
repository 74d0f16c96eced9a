// Package helpers holds shared fixtures for integration tests.
package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
	"github.com/sigauth/sigauth/engine/infra/postgres"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const postgresImage = "postgres:16-alpine"

// PostgresDB is a migrated throwaway database.
type PostgresDB struct {
	Pool *pgxpool.Pool
	DSN  string
}

// NewPostgresDB starts a container, applies migrations and registers cleanup.
// Container start is retried because Docker occasionally races port binding.
func NewPostgresDB(t *testing.T) *PostgresDB {
	t.Helper()
	ctx := t.Context()
	var container *tcpostgres.PostgresContainer
	backoff := retry.WithMaxRetries(2, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, err := tcpostgres.Run(ctx,
			postgresImage,
			tcpostgres.WithDatabase("sigauth"),
			tcpostgres.WithUsername("sigauth"),
			tcpostgres.WithPassword("sigauth"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		if err != nil {
			t.Logf("Failed to start postgres container: %v", err)
			return retry.RetryableError(err)
		}
		container = c
		return nil
	})
	require.NoError(t, err, "postgres container")
	t.Cleanup(func() {
		terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := container.Terminate(terminateCtx); err != nil {
			t.Logf("Warning: failed to terminate container: %s", err)
		}
	})
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.ApplyMigrationsWithLock(ctx, dsn))
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return &PostgresDB{Pool: pool, DSN: dsn}
}

// Truncate empties every auth table. The audit trigger fires on DELETE, not TRUNCATE.
func (db *PostgresDB) Truncate(t *testing.T) {
	t.Helper()
	_, err := db.Pool.Exec(t.Context(), "TRUNCATE audit_logs, refresh_tokens, challenges, user_keys, users")
	require.NoError(t, err)
}
