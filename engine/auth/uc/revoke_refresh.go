package uc

import (
	"context"
	"fmt"

	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/pkg/logger"
)

// RevokeRefresh use case for revoking a single refresh token by its secret.
// Possession of the secret is the only authorization required.
type RevokeRefresh struct {
	repo     Repository
	clock    core.Clock
	random   core.Random
	secret   string
	clientIP string
}

// NewRevokeRefresh creates a new revoke refresh use case
func NewRevokeRefresh(repo Repository, clock core.Clock, random core.Random, secret, clientIP string) *RevokeRefresh {
	return &RevokeRefresh{repo: repo, clock: clock, random: random, secret: secret, clientIP: clientIP}
}

// Execute revokes the token. Repeated calls keep the original revoked_at and
// write no further audit entries.
func (uc *RevokeRefresh) Execute(ctx context.Context) error {
	if uc.secret == "" {
		return ErrRefreshTokenNotFound
	}
	var changed bool
	var userID core.ID
	err := uc.repo.WithTx(ctx, func(tx Repository) error {
		token, err := tx.GetRefreshTokenBySecret(ctx, uc.secret)
		if err != nil {
			return err
		}
		userID = token.UserID
		changed, err = tx.RevokeRefreshTokenBySecret(ctx, uc.secret, uc.clock.Now())
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return appendAudit(ctx, tx, uc.clock, uc.random, token.UserID, model.AuditRefreshRevoked, uc.clientIP)
	})
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	logger.FromContext(ctx).Info("Refresh token revoked", "user_id", userID, "changed", changed)
	return nil
}
