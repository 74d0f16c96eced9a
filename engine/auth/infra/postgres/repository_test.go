package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/sigauth/sigauth/engine/auth/infra/postgres"
	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/auth/uc"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *postgres.Repository) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return mockPool, postgres.NewRepository(mockPool)
}

func q(sql string) string { return regexp.QuoteMeta(sql) }

func TestRepository_CreateUser(t *testing.T) {
	user := &model.User{ID: core.MustNewID(), Username: "alice", CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}

	t.Run("Should insert the user", func(t *testing.T) {
		mockPool, repo := newMock(t)
		mockPool.ExpectExec(q("INSERT INTO users (id,username,created_at) VALUES ($1,$2,$3)")).
			WithArgs(user.ID.String(), "alice", user.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		require.NoError(t, repo.CreateUser(context.Background(), user))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should map unique violations to ErrUsernameTaken", func(t *testing.T) {
		mockPool, repo := newMock(t)
		mockPool.ExpectExec("INSERT INTO users").
			WithArgs(user.ID.String(), "alice", user.CreatedAt).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_users_username"})
		err := repo.CreateUser(context.Background(), user)
		assert.ErrorIs(t, err, uc.ErrUsernameTaken)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should wrap other driver errors", func(t *testing.T) {
		mockPool, repo := newMock(t)
		mockPool.ExpectExec("INSERT INTO users").
			WithArgs(user.ID.String(), "alice", user.CreatedAt).
			WillReturnError(errors.New("connection reset"))
		err := repo.CreateUser(context.Background(), user)
		require.ErrorContains(t, err, "connection reset")
		assert.NotErrorIs(t, err, uc.ErrUsernameTaken)
	})
}

func TestRepository_GetUserByUsername(t *testing.T) {
	t.Run("Should scan the user", func(t *testing.T) {
		mockPool, repo := newMock(t)
		id := core.MustNewID()
		now := time.Now().UTC()
		rows := mockPool.NewRows([]string{"id", "username", "created_at"}).AddRow(id, "alice", now)
		mockPool.ExpectQuery(q("SELECT id, username, created_at FROM users WHERE username = $1")).
			WithArgs("alice").
			WillReturnRows(rows)
		user, err := repo.GetUserByUsername(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		assert.Equal(t, "alice", user.Username)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should return ErrUserNotFound for no rows", func(t *testing.T) {
		mockPool, repo := newMock(t)
		mockPool.ExpectQuery("SELECT (.+) FROM users").
			WithArgs("Alice").
			WillReturnRows(mockPool.NewRows([]string{"id", "username", "created_at"}))
		_, err := repo.GetUserByUsername(context.Background(), "Alice")
		assert.ErrorIs(t, err, uc.ErrUserNotFound)
	})
}

func TestRepository_ListActiveKeys(t *testing.T) {
	t.Run("Should filter revoked keys and order by creation", func(t *testing.T) {
		mockPool, repo := newMock(t)
		userID := core.MustNewID()
		k1, k2 := core.MustNewID(), core.MustNewID()
		now := time.Now().UTC()
		var noTime *time.Time
		rows := mockPool.NewRows([]string{"id", "user_id", "public_key", "created_at", "revoked", "revoked_at"}).
			AddRow(k1, userID, make([]byte, 32), now, false, noTime).
			AddRow(k2, userID, make([]byte, 32), now.Add(time.Second), false, noTime)
		mockPool.ExpectQuery(q("FROM user_keys WHERE revoked = $1 AND user_id = $2 ORDER BY created_at, id")).
			WithArgs(false, userID.String()).
			WillReturnRows(rows)
		keys, err := repo.ListActiveKeys(context.Background(), userID)
		require.NoError(t, err)
		require.Len(t, keys, 2)
		assert.Equal(t, k1, keys[0].ID)
		assert.Equal(t, k2, keys[1].ID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestRepository_MarkChallengeConsumed(t *testing.T) {
	id := core.MustNewID()
	update := q("UPDATE challenges SET consumed = $1 WHERE consumed = $2 AND id = $3")
	existsQuery := q("SELECT 1 FROM challenges WHERE id = $1 LIMIT 1")

	t.Run("Should claim an unconsumed challenge", func(t *testing.T) {
		mockPool, repo := newMock(t)
		mockPool.ExpectExec(update).WithArgs(true, false, id.String()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		res, err := repo.MarkChallengeConsumed(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, model.ConsumeOK, res)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should report an already consumed challenge", func(t *testing.T) {
		mockPool, repo := newMock(t)
		mockPool.ExpectExec(update).WithArgs(true, false, id.String()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mockPool.ExpectQuery(existsQuery).WithArgs(id.String()).
			WillReturnRows(mockPool.NewRows([]string{"?column?"}).AddRow(1))
		res, err := repo.MarkChallengeConsumed(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, model.ConsumeAlreadyConsumed, res)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should report a missing challenge", func(t *testing.T) {
		mockPool, repo := newMock(t)
		mockPool.ExpectExec(update).WithArgs(true, false, id.String()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mockPool.ExpectQuery(existsQuery).WithArgs(id.String()).
			WillReturnRows(mockPool.NewRows([]string{"?column?"}))
		res, err := repo.MarkChallengeConsumed(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, model.ConsumeNotFound, res)
	})
}

func TestRepository_RevokeRefreshTokenBySecret(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	hash := model.HashRefreshSecret("secret")
	update := q("UPDATE refresh_tokens SET revoked = $1, revoked_at = COALESCE(revoked_at, $2) WHERE secret_hash = $3 AND revoked = $4")

	t.Run("Should revoke an active token once", func(t *testing.T) {
		mockPool, repo := newMock(t)
		mockPool.ExpectExec(update).WithArgs(true, at, hash, false).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		changed, err := repo.RevokeRefreshTokenBySecret(context.Background(), "secret", at)
		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("Should return ErrRefreshTokenNotFound for unknown secrets", func(t *testing.T) {
		mockPool, repo := newMock(t)
		mockPool.ExpectExec(update).WithArgs(true, at, hash, false).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mockPool.ExpectQuery(q("SELECT 1 FROM refresh_tokens WHERE secret_hash = $1 LIMIT 1")).
			WithArgs(hash).
			WillReturnRows(mockPool.NewRows([]string{"?column?"}))
		_, err := repo.RevokeRefreshTokenBySecret(context.Background(), "secret", at)
		assert.ErrorIs(t, err, uc.ErrRefreshTokenNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestRepository_WithTx(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	userID := core.MustNewID()

	t.Run("Should commit when the callback succeeds", func(t *testing.T) {
		mockPool, repo := newMock(t)
		mockPool.ExpectBegin()
		mockPool.ExpectExec("UPDATE refresh_tokens").
			WithArgs(true, at, false, userID.String()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 2))
		mockPool.ExpectCommit()
		var revoked int64
		err := repo.WithTx(context.Background(), func(tx uc.Repository) error {
			var err error
			revoked, err = tx.RevokeAllRefreshTokens(context.Background(), userID, at)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), revoked)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should roll back when the callback fails", func(t *testing.T) {
		mockPool, repo := newMock(t)
		mockPool.ExpectBegin()
		mockPool.ExpectRollback()
		boom := errors.New("boom")
		err := repo.WithTx(context.Background(), func(uc.Repository) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should reuse the open transaction when nested", func(t *testing.T) {
		mockPool, repo := newMock(t)
		mockPool.ExpectBegin()
		mockPool.ExpectCommit()
		err := repo.WithTx(context.Background(), func(tx uc.Repository) error {
			return tx.WithTx(context.Background(), func(inner uc.Repository) error {
				assert.Same(t, tx, inner)
				return nil
			})
		})
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
