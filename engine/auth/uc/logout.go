package uc

import (
	"context"
	"errors"
	"fmt"

	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/pkg/logger"
)

// Logout use case for revoking every refresh token of the subject.
// Bearer tokens already issued stay valid until they expire.
type Logout struct {
	repo     Repository
	clock    core.Clock
	random   core.Random
	subject  model.Subject
	clientIP string
}

// NewLogout creates a new logout use case
func NewLogout(repo Repository, clock core.Clock, random core.Random, subject model.Subject, clientIP string) *Logout {
	return &Logout{repo: repo, clock: clock, random: random, subject: subject, clientIP: clientIP}
}

// Execute revokes the tokens and records LOGOUT. A logout that revokes nothing
// writes no audit entry, so repeating it leaves no further trace.
func (uc *Logout) Execute(ctx context.Context) error {
	var revoked int64
	err := uc.repo.WithTx(ctx, func(tx Repository) error {
		if _, err := tx.GetUserByID(ctx, uc.subject.UserID); err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return reportInvariant(ctx, "subject_user_exists", "user_id", uc.subject.UserID)
			}
			return fmt.Errorf("failed to load subject: %w", err)
		}
		var err error
		revoked, err = tx.RevokeAllRefreshTokens(ctx, uc.subject.UserID, uc.clock.Now())
		if err != nil {
			return fmt.Errorf("failed to revoke refresh tokens: %w", err)
		}
		if revoked == 0 {
			return nil
		}
		return appendAudit(ctx, tx, uc.clock, uc.random, uc.subject.UserID, model.AuditLogout, uc.clientIP)
	})
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("User logged out", "user_id", uc.subject.UserID, "revoked", revoked)
	return nil
}
