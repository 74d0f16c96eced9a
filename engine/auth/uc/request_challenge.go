package uc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sigauth/sigauth/engine/auth"
	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/pkg/logger"
)

// IssuedChallenge is what the client signs
type IssuedChallenge struct {
	ID        core.ID
	Value     []byte
	ExpiresAt time.Time
}

// RequestChallenge use case for issuing a single-use challenge
type RequestChallenge struct {
	repo     Repository
	clock    core.Clock
	random   core.Random
	cfg      *auth.Config
	username string
}

// NewRequestChallenge creates a new request challenge use case
func NewRequestChallenge(
	repo Repository,
	clock core.Clock,
	random core.Random,
	cfg *auth.Config,
	username string,
) *RequestChallenge {
	return &RequestChallenge{repo: repo, clock: clock, random: random, cfg: cfg, username: username}
}

// Execute issues a challenge for the user. Unknown users receive an unpersisted
// challenge of identical shape when enumeration protection is enabled, which
// later fails verification as unknown.
func (uc *RequestChallenge) Execute(ctx context.Context) (*IssuedChallenge, error) {
	log := logger.FromContext(ctx)
	user, err := uc.repo.GetUserByUsername(ctx, uc.username)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	if user == nil && !uc.cfg.EnumerationProtection {
		return nil, ErrUserNotFound
	}
	id, err := core.NewIDFrom(uc.random)
	if err != nil {
		return nil, fmt.Errorf("failed to generate challenge ID: %w", err)
	}
	value, err := core.RandomBytes(uc.random, model.ChallengeSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate challenge value: %w", err)
	}
	now := uc.clock.Now()
	issued := &IssuedChallenge{ID: id, Value: value, ExpiresAt: now.Add(uc.cfg.ChallengeTTL)}
	if user == nil {
		auth.RecordChallengeIssued(ctx, true)
		log.Debug("Issued synthetic challenge for unknown user")
		return issued, nil
	}
	challenge := &model.Challenge{
		ID:        id,
		UserID:    user.ID,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: issued.ExpiresAt,
	}
	if err := uc.repo.CreateChallenge(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}
	auth.RecordChallengeIssued(ctx, false)
	log.Debug("Challenge issued", "user_id", user.ID, "challenge_id", id)
	return issued, nil
}
