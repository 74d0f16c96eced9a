package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var authTables = []string{"users", "user_keys", "challenges", "refresh_tokens", "audit_logs"}

func TestMigrations(t *testing.T) {
	t.Run("Should create all required tables", func(t *testing.T) {
		ctx := t.Context()
		dbPath := filepath.Join(t.TempDir(), "tables.db")
		require.NoError(t, ApplyMigrations(ctx, dbPath))
		db := openTestSQLite(ctx, t, dbPath)

		expected := make(map[string]bool)
		for _, name := range authTables {
			expected[name] = true
		}
		rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table'")
		require.NoError(t, err)
		defer rows.Close()
		for rows.Next() {
			var name string
			require.NoError(t, rows.Scan(&name))
			delete(expected, name)
		}
		require.NoError(t, rows.Err())
		assert.Empty(t, expected)
	})

	t.Run("Should create all indexes", func(t *testing.T) {
		ctx := t.Context()
		dbPath := filepath.Join(t.TempDir(), "indexes.db")
		require.NoError(t, ApplyMigrations(ctx, dbPath))
		db := openTestSQLite(ctx, t, dbPath)

		indexes := make(map[string]bool)
		rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'index'")
		require.NoError(t, err)
		defer rows.Close()
		for rows.Next() {
			var name string
			require.NoError(t, rows.Scan(&name))
			indexes[name] = true
		}
		require.NoError(t, rows.Err())
		for _, idx := range []string{
			"idx_users_username",
			"idx_user_keys_user_id",
			"idx_challenges_user_id",
			"idx_challenges_expires_at",
			"idx_refresh_tokens_secret_hash",
			"idx_refresh_tokens_user_id",
			"idx_audit_logs_user_id",
		} {
			assert.Truef(t, indexes[idx], "expected index %s to exist", idx)
		}
	})

	t.Run("Should enforce check constraints", func(t *testing.T) {
		ctx := t.Context()
		dbPath := filepath.Join(t.TempDir(), "constraints.db")
		require.NoError(t, ApplyMigrations(ctx, dbPath))
		db := openTestSQLite(ctx, t, dbPath)

		_, err := db.ExecContext(ctx, "INSERT INTO users (id, username, created_at) VALUES ('u1', 'alice', '2025-01-01 00:00:00')")
		require.NoError(t, err)
		_, err = db.ExecContext(ctx,
			`INSERT INTO challenges (id, user_id, value, created_at, expires_at)
			 VALUES ('c1', 'u1', zeroblob(32), '2025-01-01 00:05:00', '2025-01-01 00:00:00')`)
		require.Error(t, err)
		_, err = db.ExecContext(ctx,
			`INSERT INTO user_keys (id, user_id, public_key, created_at) VALUES ('k1', 'u1', zeroblob(16), '2025-01-01 00:00:00')`)
		require.Error(t, err)
		_, err = db.ExecContext(ctx,
			`INSERT INTO refresh_tokens (id, user_id, secret_hash, created_at, expires_at, revoked)
			 VALUES ('r1', 'u1', x'01', '2025-01-01 00:00:00', '2025-02-01 00:00:00', 1)`)
		require.Error(t, err)
		_, err = db.ExecContext(ctx,
			`INSERT INTO audit_logs (id, user_id, action, created_at) VALUES ('a1', 'u1', 'LOGIN_FAILED', '2025-01-01 00:00:00')`)
		require.Error(t, err)
	})

	t.Run("Should rollback migrations", func(t *testing.T) {
		ctx := t.Context()
		dbPath := filepath.Join(t.TempDir(), "rollback.db")
		require.NoError(t, ApplyMigrations(ctx, dbPath))
		db := openTestSQLite(ctx, t, dbPath)

		gooseInitMu.Lock()
		goose.SetBaseFS(migrationsFS)
		require.NoError(t, goose.SetDialect("sqlite3"))
		err := goose.DownToContext(ctx, db, "migrations", 0)
		goose.SetBaseFS(nil)
		gooseInitMu.Unlock()
		require.NoError(t, err)

		var count int
		err = db.QueryRowContext(
			ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN "+
				"('users', 'user_keys', 'challenges', 'refresh_tokens', 'audit_logs')",
		).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("Should be idempotent", func(t *testing.T) {
		ctx := t.Context()
		dbPath := filepath.Join(t.TempDir(), "idempotent.db")
		require.NoError(t, ApplyMigrations(ctx, dbPath))
		require.NoError(t, ApplyMigrations(ctx, dbPath))
	})
}

func openTestSQLite(ctx context.Context, t *testing.T, dbPath string) *sql.DB {
	t.Helper()
	settings := (&Config{Path: dbPath}).resolved()
	db, err := sql.Open("sqlite", buildDSN(&settings))
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx))
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}
