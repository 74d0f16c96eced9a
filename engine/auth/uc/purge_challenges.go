package uc

import (
	"context"
	"fmt"

	"github.com/sigauth/sigauth/engine/auth"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/pkg/logger"
)

// PurgeChallenges use case for deleting expired challenges
type PurgeChallenges struct {
	repo  Repository
	clock core.Clock
}

// NewPurgeChallenges creates a new purge challenges use case
func NewPurgeChallenges(repo Repository, clock core.Clock) *PurgeChallenges {
	return &PurgeChallenges{repo: repo, clock: clock}
}

// Execute removes every challenge whose expires_at is not after now
func (uc *PurgeChallenges) Execute(ctx context.Context) (int64, error) {
	n, err := uc.repo.DeleteExpiredChallenges(ctx, uc.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired challenges: %w", err)
	}
	auth.RecordChallengesPurged(ctx, n)
	if n > 0 {
		logger.FromContext(ctx).Debug("Purged expired challenges", "count", n)
	}
	return n, nil
}
