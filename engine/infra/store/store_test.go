package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/engine/infra/postgres"
	"github.com/sigauth/sigauth/engine/infra/sqlite"
	"github.com/sigauth/sigauth/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	return logger.ContextWithLogger(t.Context(), logger.NewForTests())
}

func TestConfig_Validate(t *testing.T) {
	t.Run("Should reject unknown drivers", func(t *testing.T) {
		assert.ErrorContains(t, (&Config{Driver: "mysql"}).Validate(), "unsupported driver")
	})

	t.Run("Should require a sqlite path", func(t *testing.T) {
		assert.Error(t, (&Config{Driver: DriverSQLite}).Validate())
	})

	t.Run("Should delegate postgres validation", func(t *testing.T) {
		assert.Error(t, (&Config{Driver: DriverPostgres}).Validate())
		assert.NoError(t, (&Config{Driver: DriverPostgres, Postgres: postgres.Config{DBName: "sigauth"}}).Validate())
	})
}

func TestOpen(t *testing.T) {
	t.Run("Should open sqlite and migrate when asked", func(t *testing.T) {
		ctx := testCtx(t)
		s, err := Open(ctx, &Config{
			Driver:      DriverSQLite,
			SQLite:      sqlite.Config{Path: filepath.Join(t.TempDir(), "auth.db")},
			AutoMigrate: true,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close(ctx) })
		assert.Equal(t, DriverSQLite, s.Driver())
		require.NoError(t, s.HealthCheck(ctx))

		user := &model.User{ID: core.MustNewID(), Username: "alice", CreatedAt: time.Now().UTC()}
		require.NoError(t, s.Repository().CreateUser(ctx, user))
		got, err := s.Repository().GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("Should tolerate repeated migrations", func(t *testing.T) {
		ctx := testCtx(t)
		s, err := Open(ctx, &Config{
			Driver:      DriverSQLite,
			SQLite:      sqlite.Config{Path: filepath.Join(t.TempDir(), "auth.db")},
			AutoMigrate: true,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close(ctx) })
		assert.NoError(t, s.Migrate(ctx))
	})

	t.Run("Should give up after the configured retries", func(t *testing.T) {
		ctx := testCtx(t)
		_, err := Open(ctx, &Config{
			Driver: DriverPostgres,
			Postgres: postgres.Config{
				ConnString:     "postgres://nobody@127.0.0.1:1/none?sslmode=disable",
				ConnectTimeout: 200 * time.Millisecond,
				PingTimeout:    200 * time.Millisecond,
			},
			ConnectRetries: 2,
			RetryBaseDelay: 10 * time.Millisecond,
		})
		require.ErrorContains(t, err, "giving up after 3 attempts")
	})

	t.Run("Should stop retrying when the context ends", func(t *testing.T) {
		ctx, cancel := context.WithCancel(testCtx(t))
		cancel()
		_, err := Open(ctx, &Config{
			Driver:         DriverPostgres,
			Postgres:       postgres.Config{ConnString: "postgres://nobody@127.0.0.1:1/none?sslmode=disable"},
			ConnectRetries: 100,
			RetryBaseDelay: time.Hour,
		})
		require.Error(t, err)
	})
}
