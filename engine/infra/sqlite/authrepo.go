package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/auth/uc"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/pkg/logger"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AuthRepo implements uc.Repository on top of a SQLite *sql.DB.
type AuthRepo struct {
	db *sql.DB
	q  querier
	tx *sql.Tx
}

var _ uc.Repository = (*AuthRepo)(nil)

// NewAuthRepo creates a new SQLite-backed auth repository.
func NewAuthRepo(db *sql.DB) *AuthRepo { return &AuthRepo{db: db, q: db} }

func isUniqueViolation(err error) bool {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		if sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// --- Transactions ---

// WithTx runs fn inside a write transaction. The DSN begins transactions
// IMMEDIATE, so the write lock is held from the first statement.
func (r *AuthRepo) WithTx(ctx context.Context, fn func(uc.Repository) error) (err error) {
	if r.tx != nil {
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	log := logger.FromContext(ctx)
	defer func() {
		if p := recover(); p != nil {
			if rb := tx.Rollback(); rb != nil {
				log.Error("sqlite: rollback failed", "error", rb)
			}
			panic(p)
		}
		if err != nil {
			if rb := tx.Rollback(); rb != nil && !errors.Is(rb, sql.ErrTxDone) {
				log.Warn("sqlite: rollback failed", "error", rb)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("sqlite: commit tx: %w", cErr)
		}
	}()
	return fn(&AuthRepo{db: r.db, q: tx, tx: tx})
}

// --- Users ---

func (r *AuthRepo) CreateUser(ctx context.Context, user *model.User) error {
	const q = `INSERT INTO users (id, username, created_at) VALUES (?, ?, ?)`
	if _, err := r.q.ExecContext(ctx, q, user.ID, user.Username, user.CreatedAt.UTC()); err != nil {
		if isUniqueViolation(err) {
			return uc.ErrUsernameTaken
		}
		return fmt.Errorf("sqlite: create user: %w", err)
	}
	return nil
}

func (r *AuthRepo) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	q := `SELECT id, username, created_at FROM users WHERE ` + where
	var u model.User
	if err := r.q.QueryRowContext(ctx, q, arg).Scan(&u.ID, &u.Username, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, uc.ErrUserNotFound
		}
		return nil, fmt.Errorf("sqlite: get user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (r *AuthRepo) GetUserByID(ctx context.Context, id core.ID) (*model.User, error) {
	return r.getUser(ctx, "id = ?", id)
}

// GetUserByUsername matches byte for byte.
func (r *AuthRepo) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getUser(ctx, "username = ?", username)
}

// --- Keys ---

const keyColumns = `id, user_id, public_key, created_at, revoked, revoked_at`

func scanKey(row interface{ Scan(...any) error }) (*model.UserKey, error) {
	var k model.UserKey
	var revokedAt sql.NullTime
	if err := row.Scan(&k.ID, &k.UserID, &k.PublicKey, &k.CreatedAt, &k.Revoked, &revokedAt); err != nil {
		return nil, err
	}
	k.CreatedAt = k.CreatedAt.UTC()
	k.RevokedAt = nullableTime(revokedAt)
	return &k, nil
}

func (r *AuthRepo) CreateKey(ctx context.Context, key *model.UserKey) error {
	const q = `INSERT INTO user_keys (id, user_id, public_key, created_at, revoked) VALUES (?, ?, ?, ?, 0)`
	if _, err := r.q.ExecContext(ctx, q, key.ID, key.UserID, key.PublicKey, key.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("sqlite: create key: %w", err)
	}
	return nil
}

func (r *AuthRepo) GetKeyByID(ctx context.Context, id core.ID) (*model.UserKey, error) {
	q := `SELECT ` + keyColumns + ` FROM user_keys WHERE id = ?`
	k, err := scanKey(r.q.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, uc.ErrKeyNotFound
		}
		return nil, fmt.Errorf("sqlite: get key: %w", err)
	}
	return k, nil
}

func (r *AuthRepo) ListActiveKeys(ctx context.Context, userID core.ID) ([]model.UserKey, error) {
	q := `SELECT ` + keyColumns + ` FROM user_keys WHERE user_id = ? AND revoked = 0 ORDER BY created_at, id`
	rows, err := r.q.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list keys: %w", err)
	}
	defer rows.Close()
	var out []model.UserKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan key: %w", err)
		}
		out = append(out, *k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter keys: %w", err)
	}
	return out, nil
}

func (r *AuthRepo) CountActiveKeys(ctx context.Context, userID core.ID) (int, error) {
	var n int
	const q = `SELECT COUNT(*) FROM user_keys WHERE user_id = ? AND revoked = 0`
	if err := r.q.QueryRowContext(ctx, q, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count keys: %w", err)
	}
	return n, nil
}

func (r *AuthRepo) RevokeKey(ctx context.Context, id core.ID, at time.Time) (bool, error) {
	const q = `UPDATE user_keys SET revoked = 1, revoked_at = ? WHERE id = ? AND revoked = 0`
	changed, err := r.execChanged(ctx, q, at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("sqlite: revoke key: %w", err)
	}
	if changed {
		return true, nil
	}
	found, err := r.exists(ctx, `SELECT 1 FROM user_keys WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	if !found {
		return false, uc.ErrKeyNotFound
	}
	return false, nil
}

// --- Challenges ---

func (r *AuthRepo) CreateChallenge(ctx context.Context, ch *model.Challenge) error {
	const q = `INSERT INTO challenges (id, user_id, value, created_at, expires_at, consumed) VALUES (?, ?, ?, ?, ?, 0)`
	if _, err := r.q.ExecContext(ctx, q, ch.ID, ch.UserID, ch.Value, ch.CreatedAt.UTC(), ch.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("sqlite: create challenge: %w", err)
	}
	return nil
}

func (r *AuthRepo) GetChallenge(ctx context.Context, id core.ID) (*model.Challenge, error) {
	const q = `SELECT id, user_id, value, created_at, expires_at, consumed FROM challenges WHERE id = ?`
	var c model.Challenge
	err := r.q.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.UserID, &c.Value, &c.CreatedAt, &c.ExpiresAt, &c.Consumed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, uc.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("sqlite: get challenge: %w", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.ExpiresAt = c.ExpiresAt.UTC()
	return &c, nil
}

func (r *AuthRepo) MarkChallengeConsumed(ctx context.Context, id core.ID) (model.ConsumeResult, error) {
	changed, err := r.execChanged(ctx, `UPDATE challenges SET consumed = 1 WHERE id = ? AND consumed = 0`, id)
	if err != nil {
		return model.ConsumeNotFound, fmt.Errorf("sqlite: consume challenge: %w", err)
	}
	if changed {
		return model.ConsumeOK, nil
	}
	found, err := r.exists(ctx, `SELECT 1 FROM challenges WHERE id = ?`, id)
	if err != nil {
		return model.ConsumeNotFound, err
	}
	if !found {
		return model.ConsumeNotFound, nil
	}
	return model.ConsumeAlreadyConsumed, nil
}

func (r *AuthRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM challenges WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete expired challenges: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected (delete challenges): %w", err)
	}
	return n, nil
}

// --- Refresh tokens ---

func (r *AuthRepo) CreateRefreshToken(ctx context.Context, t *model.RefreshToken) error {
	const q = `INSERT INTO refresh_tokens (id, user_id, secret_hash, created_at, expires_at, revoked)
		VALUES (?, ?, ?, ?, ?, 0)`
	if _, err := r.q.ExecContext(ctx, q, t.ID, t.UserID, t.SecretHash, t.CreatedAt.UTC(), t.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("sqlite: create refresh token: %w", err)
	}
	return nil
}

func (r *AuthRepo) GetRefreshTokenBySecret(ctx context.Context, secret string) (*model.RefreshToken, error) {
	const q = `SELECT id, user_id, secret_hash, created_at, expires_at, revoked, revoked_at
		FROM refresh_tokens WHERE secret_hash = ?`
	var t model.RefreshToken
	var revokedAt sql.NullTime
	err := r.q.QueryRowContext(ctx, q, model.HashRefreshSecret(secret)).
		Scan(&t.ID, &t.UserID, &t.SecretHash, &t.CreatedAt, &t.ExpiresAt, &t.Revoked, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, uc.ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("sqlite: get refresh token: %w", err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.ExpiresAt = t.ExpiresAt.UTC()
	t.RevokedAt = nullableTime(revokedAt)
	return &t, nil
}

func (r *AuthRepo) RevokeRefreshTokenBySecret(ctx context.Context, secret string, at time.Time) (bool, error) {
	hash := model.HashRefreshSecret(secret)
	const q = `UPDATE refresh_tokens SET revoked = 1, revoked_at = COALESCE(revoked_at, ?)
		WHERE secret_hash = ? AND revoked = 0`
	changed, err := r.execChanged(ctx, q, at.UTC(), hash)
	if err != nil {
		return false, fmt.Errorf("sqlite: revoke refresh token: %w", err)
	}
	if changed {
		return true, nil
	}
	found, err := r.exists(ctx, `SELECT 1 FROM refresh_tokens WHERE secret_hash = ?`, hash)
	if err != nil {
		return false, err
	}
	if !found {
		return false, uc.ErrRefreshTokenNotFound
	}
	return false, nil
}

func (r *AuthRepo) RevokeAllRefreshTokens(ctx context.Context, userID core.ID, at time.Time) (int64, error) {
	const q = `UPDATE refresh_tokens SET revoked = 1, revoked_at = COALESCE(revoked_at, ?)
		WHERE user_id = ? AND revoked = 0`
	res, err := r.q.ExecContext(ctx, q, at.UTC(), userID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: revoke refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected (revoke refresh tokens): %w", err)
	}
	return n, nil
}

// --- Audit ---

func (r *AuthRepo) AppendAudit(ctx context.Context, entry *model.AuditLog) error {
	const q = `INSERT INTO audit_logs (id, user_id, action, created_at, ip_address) VALUES (?, ?, ?, ?, ?)`
	_, err := r.q.ExecContext(ctx, q, entry.ID, entry.UserID, string(entry.Action), entry.CreatedAt.UTC(), entry.IPAddress)
	if err != nil {
		return fmt.Errorf("sqlite: append audit: %w", err)
	}
	return nil
}

func (r *AuthRepo) ListAudit(ctx context.Context, userID core.ID) ([]model.AuditLog, error) {
	const q = `SELECT id, user_id, action, created_at, ip_address FROM audit_logs
		WHERE user_id = ? ORDER BY created_at, id`
	rows, err := r.q.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list audit: %w", err)
	}
	defer rows.Close()
	var out []model.AuditLog
	for rows.Next() {
		var e model.AuditLog
		var action string
		if err := rows.Scan(&e.ID, &e.UserID, &action, &e.CreatedAt, &e.IPAddress); err != nil {
			return nil, fmt.Errorf("sqlite: scan audit: %w", err)
		}
		e.Action = model.AuditAction(action)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter audit: %w", err)
	}
	return out, nil
}

// --- helpers ---

func (r *AuthRepo) execChanged(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := r.q.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *AuthRepo) exists(ctx context.Context, q string, args ...any) (bool, error) {
	var one int
	if err := r.q.QueryRowContext(ctx, q, args...).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("sqlite: existence check: %w", err)
	}
	return true, nil
}
