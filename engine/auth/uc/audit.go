package uc

import (
	"context"
	"fmt"

	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/pkg/logger"
)

func appendAudit(
	ctx context.Context,
	repo Repository,
	clock core.Clock,
	random core.Random,
	userID core.ID,
	action model.AuditAction,
	clientIP string,
) error {
	id, err := core.NewIDFrom(random)
	if err != nil {
		return fmt.Errorf("failed to generate audit ID: %w", err)
	}
	entry := &model.AuditLog{
		ID:        id,
		UserID:    userID,
		Action:    action,
		CreatedAt: clock.Now(),
		IPAddress: clientIP,
	}
	if err := repo.AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("failed to append %s audit: %w", action, err)
	}
	return nil
}

// reportInvariant logs an impossible state on the audit stream and returns
// an internal error for the caller.
func reportInvariant(ctx context.Context, name string, keyvals ...any) error {
	args := append([]any{"audit", true, "invariant", name}, keyvals...)
	logger.FromContext(ctx).Error("Invariant violation", args...)
	return fmt.Errorf("%w: %s", ErrInvariantViolation, name)
}
