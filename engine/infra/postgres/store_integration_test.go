//go:build integration

package postgres_test

import (
	"sync"
	"testing"

	"github.com/sigauth/sigauth/engine/infra/postgres"
	"github.com/sigauth/sigauth/pkg/logger"
	"github.com/sigauth/sigauth/test/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Integration(t *testing.T) {
	db := helpers.NewPostgresDB(t)
	ctx := logger.ContextWithLogger(t.Context(), logger.NewForTests())

	t.Run("Should open a pool and pass health checks", func(t *testing.T) {
		store, err := postgres.NewStore(ctx, &postgres.Config{ConnString: db.DSN, MaxOpenConns: 4})
		require.NoError(t, err)
		defer store.Close(ctx)
		require.NoError(t, store.HealthCheck(ctx))
		assert.Equal(t, int32(4), store.Pool().Config().MaxConns)
	})

	t.Run("Should create every auth table", func(t *testing.T) {
		for _, table := range []string{"users", "user_keys", "challenges", "refresh_tokens", "audit_logs"} {
			var exists bool
			err := db.Pool.QueryRow(ctx,
				"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)", table,
			).Scan(&exists)
			require.NoError(t, err)
			assert.True(t, exists, table)
		}
	})

	t.Run("Should tolerate concurrent migration runners", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = postgres.ApplyMigrationsWithLock(ctx, db.DSN)
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			assert.NoError(t, err)
		}
	})

	t.Run("Should reject updates to the audit log", func(t *testing.T) {
		db.Truncate(t)
		_, err := db.Pool.Exec(ctx,
			`INSERT INTO users (id, username, created_at) VALUES ('7f1f1d3e-4c55-4d0c-9a4c-6f3f2a1b0c01', 'alice', now())`)
		require.NoError(t, err)
		_, err = db.Pool.Exec(ctx, `INSERT INTO audit_logs (id, user_id, action, created_at)
			VALUES ('8e2e2d3e-4c55-4d0c-9a4c-6f3f2a1b0c02', '7f1f1d3e-4c55-4d0c-9a4c-6f3f2a1b0c01', 'LOGIN', now())`)
		require.NoError(t, err)
		_, err = db.Pool.Exec(ctx, `UPDATE audit_logs SET action = 'LOGOUT'`)
		require.ErrorContains(t, err, "append-only")
		_, err = db.Pool.Exec(ctx, `DELETE FROM audit_logs`)
		require.ErrorContains(t, err, "append-only")
	})

	t.Run("Should fail fast when the server is unreachable", func(t *testing.T) {
		_, err := postgres.NewStore(ctx, &postgres.Config{
			ConnString: "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1",
		})
		require.Error(t, err)
	})
}
