package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/auth/uc"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/pkg/logger"
)

const uniqueViolation = "23505"

// Repository implements the auth repository interface using PostgreSQL
type Repository struct {
	db DBInterface
	tx pgx.Tx
}

// DBInterface defines the minimal interface needed by the repository
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ uc.Repository = (*Repository)(nil)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// NewRepository creates a new auth repository
func NewRepository(db DBInterface) *Repository {
	return &Repository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// WithTx runs fn in a transaction. Nested calls reuse the open transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(uc.Repository) error) (err error) {
	if r.tx != nil {
		return fn(r)
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	log := logger.FromContext(ctx)
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error("Failed to rollback transaction after panic", "error", rbErr)
			}
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Warn("Failed to rollback transaction", "error", rbErr)
			}
			return
		}
		if cErr := tx.Commit(ctx); cErr != nil {
			err = fmt.Errorf("committing transaction: %w", cErr)
		}
	}()
	return fn(&Repository{db: tx, tx: tx})
}

// exec runs a built statement and returns the affected row count.
func (r *Repository) exec(ctx context.Context, b squirrel.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) get(ctx context.Context, dst any, b squirrel.Sqlizer, notFound error) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}
	if err := pgxscan.Get(ctx, r.db, dst, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return notFound
		}
		return err
	}
	return nil
}

func (r *Repository) exists(ctx context.Context, table string, where squirrel.Sqlizer) (bool, error) {
	query, args, err := psql.Select("1").From(table).Where(where).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("building query: %w", err)
	}
	var one int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("checking %s: %w", table, err)
	}
	return true, nil
}

// CreateUser creates a new user
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	_, err := r.exec(ctx, psql.Insert("users").
		Columns("id", "username", "created_at").
		Values(user.ID.String(), user.Username, user.CreatedAt.UTC()))
	if err != nil {
		if isUniqueViolation(err) {
			return uc.ErrUsernameTaken
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (r *Repository) getUser(ctx context.Context, where squirrel.Eq) (*model.User, error) {
	var user model.User
	err := r.get(ctx, &user, psql.Select("id", "username", "created_at").From("users").Where(where), uc.ErrUserNotFound)
	if err != nil {
		if errors.Is(err, uc.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, id core.ID) (*model.User, error) {
	return r.getUser(ctx, squirrel.Eq{"id": id.String()})
}

// GetUserByUsername matches byte for byte.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getUser(ctx, squirrel.Eq{"username": username})
}

var keyColumns = []string{"id", "user_id", "public_key", "created_at", "revoked", "revoked_at"}

func (r *Repository) CreateKey(ctx context.Context, key *model.UserKey) error {
	_, err := r.exec(ctx, psql.Insert("user_keys").
		Columns("id", "user_id", "public_key", "created_at", "revoked").
		Values(key.ID.String(), key.UserID.String(), key.PublicKey, key.CreatedAt.UTC(), false))
	if err != nil {
		return fmt.Errorf("inserting key: %w", err)
	}
	return nil
}

func (r *Repository) GetKeyByID(ctx context.Context, id core.ID) (*model.UserKey, error) {
	var key model.UserKey
	err := r.get(ctx, &key, psql.Select(keyColumns...).From("user_keys").Where(squirrel.Eq{"id": id.String()}), uc.ErrKeyNotFound)
	if err != nil {
		if errors.Is(err, uc.ErrKeyNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning key: %w", err)
	}
	return &key, nil
}

func (r *Repository) ListActiveKeys(ctx context.Context, userID core.ID) ([]model.UserKey, error) {
	query, args, err := psql.Select(keyColumns...).
		From("user_keys").
		Where(squirrel.Eq{"user_id": userID.String(), "revoked": false}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var keys []model.UserKey
	if err := pgxscan.Select(ctx, r.db, &keys, query, args...); err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	return keys, nil
}

func (r *Repository) CountActiveKeys(ctx context.Context, userID core.ID) (int, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("user_keys").
		Where(squirrel.Eq{"user_id": userID.String(), "revoked": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building query: %w", err)
	}
	var n int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting keys: %w", err)
	}
	return n, nil
}

func (r *Repository) RevokeKey(ctx context.Context, id core.ID, at time.Time) (bool, error) {
	n, err := r.exec(ctx, psql.Update("user_keys").
		Set("revoked", true).
		Set("revoked_at", at.UTC()).
		Where(squirrel.Eq{"id": id.String(), "revoked": false}))
	if err != nil {
		return false, fmt.Errorf("revoking key: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	found, err := r.exists(ctx, "user_keys", squirrel.Eq{"id": id.String()})
	if err != nil {
		return false, err
	}
	if !found {
		return false, uc.ErrKeyNotFound
	}
	return false, nil
}

func (r *Repository) CreateChallenge(ctx context.Context, ch *model.Challenge) error {
	_, err := r.exec(ctx, psql.Insert("challenges").
		Columns("id", "user_id", "value", "created_at", "expires_at", "consumed").
		Values(ch.ID.String(), ch.UserID.String(), ch.Value, ch.CreatedAt.UTC(), ch.ExpiresAt.UTC(), false))
	if err != nil {
		return fmt.Errorf("inserting challenge: %w", err)
	}
	return nil
}

func (r *Repository) GetChallenge(ctx context.Context, id core.ID) (*model.Challenge, error) {
	var ch model.Challenge
	err := r.get(ctx, &ch,
		psql.Select("id", "user_id", "value", "created_at", "expires_at", "consumed").
			From("challenges").
			Where(squirrel.Eq{"id": id.String()}),
		uc.ErrChallengeNotFound,
	)
	if err != nil {
		if errors.Is(err, uc.ErrChallengeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning challenge: %w", err)
	}
	return &ch, nil
}

// MarkChallengeConsumed relies on the row lock taken by UPDATE: of two
// concurrent claims exactly one sees consumed = false.
func (r *Repository) MarkChallengeConsumed(ctx context.Context, id core.ID) (model.ConsumeResult, error) {
	n, err := r.exec(ctx, psql.Update("challenges").
		Set("consumed", true).
		Where(squirrel.Eq{"id": id.String(), "consumed": false}))
	if err != nil {
		return model.ConsumeNotFound, fmt.Errorf("consuming challenge: %w", err)
	}
	if n > 0 {
		return model.ConsumeOK, nil
	}
	found, err := r.exists(ctx, "challenges", squirrel.Eq{"id": id.String()})
	if err != nil {
		return model.ConsumeNotFound, err
	}
	if !found {
		return model.ConsumeNotFound, nil
	}
	return model.ConsumeAlreadyConsumed, nil
}

func (r *Repository) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	n, err := r.exec(ctx, psql.Delete("challenges").Where(squirrel.LtOrEq{"expires_at": now.UTC()}))
	if err != nil {
		return 0, fmt.Errorf("deleting expired challenges: %w", err)
	}
	return n, nil
}

func (r *Repository) CreateRefreshToken(ctx context.Context, t *model.RefreshToken) error {
	_, err := r.exec(ctx, psql.Insert("refresh_tokens").
		Columns("id", "user_id", "secret_hash", "created_at", "expires_at", "revoked").
		Values(t.ID.String(), t.UserID.String(), t.SecretHash, t.CreatedAt.UTC(), t.ExpiresAt.UTC(), false))
	if err != nil {
		return fmt.Errorf("inserting refresh token: %w", err)
	}
	return nil
}

func (r *Repository) GetRefreshTokenBySecret(ctx context.Context, secret string) (*model.RefreshToken, error) {
	var t model.RefreshToken
	err := r.get(ctx, &t,
		psql.Select("id", "user_id", "secret_hash", "created_at", "expires_at", "revoked", "revoked_at").
			From("refresh_tokens").
			Where("secret_hash = ?", model.HashRefreshSecret(secret)),
		uc.ErrRefreshTokenNotFound,
	)
	if err != nil {
		if errors.Is(err, uc.ErrRefreshTokenNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning refresh token: %w", err)
	}
	return &t, nil
}

func (r *Repository) RevokeRefreshTokenBySecret(ctx context.Context, secret string, at time.Time) (bool, error) {
	hash := model.HashRefreshSecret(secret)
	n, err := r.exec(ctx, psql.Update("refresh_tokens").
		Set("revoked", true).
		Set("revoked_at", squirrel.Expr("COALESCE(revoked_at, ?)", at.UTC())).
		Where("secret_hash = ?", hash).
		Where(squirrel.Eq{"revoked": false}))
	if err != nil {
		return false, fmt.Errorf("revoking refresh token: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	// Eq would expand a []byte into an IN list.
	found, err := r.exists(ctx, "refresh_tokens", squirrel.Expr("secret_hash = ?", hash))
	if err != nil {
		return false, err
	}
	if !found {
		return false, uc.ErrRefreshTokenNotFound
	}
	return false, nil
}

func (r *Repository) RevokeAllRefreshTokens(ctx context.Context, userID core.ID, at time.Time) (int64, error) {
	n, err := r.exec(ctx, psql.Update("refresh_tokens").
		Set("revoked", true).
		Set("revoked_at", squirrel.Expr("COALESCE(revoked_at, ?)", at.UTC())).
		Where(squirrel.Eq{"user_id": userID.String(), "revoked": false}))
	if err != nil {
		return 0, fmt.Errorf("revoking refresh tokens: %w", err)
	}
	return n, nil
}

func (r *Repository) AppendAudit(ctx context.Context, entry *model.AuditLog) error {
	_, err := r.exec(ctx, psql.Insert("audit_logs").
		Columns("id", "user_id", "action", "created_at", "ip_address").
		Values(entry.ID.String(), entry.UserID.String(), string(entry.Action), entry.CreatedAt.UTC(), entry.IPAddress))
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

func (r *Repository) ListAudit(ctx context.Context, userID core.ID) ([]model.AuditLog, error) {
	query, args, err := psql.Select("id", "user_id", "action", "created_at", "ip_address").
		From("audit_logs").
		Where(squirrel.Eq{"user_id": userID.String()}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var entries []model.AuditLog
	if err := pgxscan.Select(ctx, r.db, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	return entries, nil
}
