package uc

import (
	"context"
	"fmt"

	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/pkg/logger"
)

// RevokeKey use case for revoking one of the subject's keys
type RevokeKey struct {
	repo     Repository
	clock    core.Clock
	random   core.Random
	subject  model.Subject
	keyID    core.ID
	clientIP string
}

// NewRevokeKey creates a new revoke key use case
func NewRevokeKey(
	repo Repository,
	clock core.Clock,
	random core.Random,
	subject model.Subject,
	keyID core.ID,
	clientIP string,
) *RevokeKey {
	return &RevokeKey{repo: repo, clock: clock, random: random, subject: subject, keyID: keyID, clientIP: clientIP}
}

// Execute revokes the key. Revoking an already revoked key succeeds without
// a second audit entry.
func (uc *RevokeKey) Execute(ctx context.Context) error {
	log := logger.FromContext(ctx)
	var changed bool
	err := uc.repo.WithTx(ctx, func(tx Repository) error {
		key, err := tx.GetKeyByID(ctx, uc.keyID)
		if err != nil {
			return err
		}
		if key.UserID != uc.subject.UserID {
			return ErrNotKeyOwner
		}
		changed, err = tx.RevokeKey(ctx, uc.keyID, uc.clock.Now())
		if err != nil {
			return fmt.Errorf("failed to revoke key: %w", err)
		}
		if !changed {
			return nil
		}
		return appendAudit(ctx, tx, uc.clock, uc.random, uc.subject.UserID, model.AuditKeyRevoked, uc.clientIP)
	})
	if err != nil {
		return err
	}
	log.Info("Key revoked", "user_id", uc.subject.UserID, "key_id", uc.keyID, "changed", changed)
	return nil
}
