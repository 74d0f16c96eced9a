package uc

import (
	"context"
	"time"

	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/core"
)

// Repository defines all data access operations for the auth domain.
// Implementations translate driver errors into the sentinels in errors.go.
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id core.ID) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)

	// Key operations
	CreateKey(ctx context.Context, key *model.UserKey) error
	GetKeyByID(ctx context.Context, id core.ID) (*model.UserKey, error)
	// ListActiveKeys returns unrevoked keys ordered by creation time, then id.
	ListActiveKeys(ctx context.Context, userID core.ID) ([]model.UserKey, error)
	CountActiveKeys(ctx context.Context, userID core.ID) (int, error)
	// RevokeKey reports whether the key transitioned to revoked.
	RevokeKey(ctx context.Context, id core.ID, at time.Time) (bool, error)

	// Challenge operations
	CreateChallenge(ctx context.Context, challenge *model.Challenge) error
	GetChallenge(ctx context.Context, id core.ID) (*model.Challenge, error)
	// MarkChallengeConsumed atomically flips consumed from false to true.
	MarkChallengeConsumed(ctx context.Context, id core.ID) (model.ConsumeResult, error)
	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)

	// Refresh token operations. Secrets are matched through model.HashRefreshSecret.
	CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error
	GetRefreshTokenBySecret(ctx context.Context, secret string) (*model.RefreshToken, error)
	// RevokeRefreshTokenBySecret keeps the first revoked_at and reports whether
	// this call changed state. Returns ErrRefreshTokenNotFound when absent.
	RevokeRefreshTokenBySecret(ctx context.Context, secret string, at time.Time) (bool, error)
	RevokeAllRefreshTokens(ctx context.Context, userID core.ID, at time.Time) (int64, error)

	// Audit operations
	AppendAudit(ctx context.Context, entry *model.AuditLog) error
	ListAudit(ctx context.Context, userID core.ID) ([]model.AuditLog, error)

	// WithTx runs fn inside a single transaction. A Repository already bound to
	// a transaction runs fn on itself.
	WithTx(ctx context.Context, fn func(Repository) error) error
}
