package uc

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sigauth/sigauth/engine/auth"
	"github.com/sigauth/sigauth/engine/auth/bearer"
	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/auth/signature"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/pkg/logger"
)

// RefreshSecretSize is the entropy of a refresh secret in bytes.
const RefreshSecretSize = 32

// VerifyChallengeInput carries the client's proof. ChallengeID is kept raw so
// that malformed ids fail the same way unknown ones do.
type VerifyChallengeInput struct {
	ChallengeID string
	Signature   []byte
	ClientIP    string
}

// TokenPair is the credential set minted by a successful login
type TokenPair struct {
	Token            string
	ExpiresAt        time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// VerifyChallenge use case for completing the challenge-response login
type VerifyChallenge struct {
	repo     Repository
	clock    core.Clock
	random   core.Random
	verifier signature.Verifier
	issuer   *bearer.Issuer
	cfg      *auth.Config
	input    *VerifyChallengeInput
}

// NewVerifyChallenge creates a new verify challenge use case
func NewVerifyChallenge(
	repo Repository,
	clock core.Clock,
	random core.Random,
	verifier signature.Verifier,
	issuer *bearer.Issuer,
	cfg *auth.Config,
	input *VerifyChallengeInput,
) *VerifyChallenge {
	return &VerifyChallenge{
		repo:     repo,
		clock:    clock,
		random:   random,
		verifier: verifier,
		issuer:   issuer,
		cfg:      cfg,
		input:    input,
	}
}

// Execute claims the challenge before looking at the signature, so every
// challenge is spent by its first verification attempt whatever the outcome.
// Only internal failures roll the claim back.
func (uc *VerifyChallenge) Execute(ctx context.Context) (*TokenPair, error) {
	log := logger.FromContext(ctx)
	challengeID, err := core.ParseID(uc.input.ChallengeID)
	if err != nil {
		return nil, uc.reject(ctx, "malformed_challenge_id")
	}
	var pair *TokenPair
	var reason string
	err = uc.repo.WithTx(ctx, func(tx Repository) error {
		result, err := tx.MarkChallengeConsumed(ctx, challengeID)
		if err != nil {
			return fmt.Errorf("failed to claim challenge: %w", err)
		}
		if result != model.ConsumeOK {
			reason = result.String()
			return nil
		}
		challenge, err := tx.GetChallenge(ctx, challengeID)
		if err != nil {
			return fmt.Errorf("failed to load claimed challenge: %w", err)
		}
		now := uc.clock.Now()
		if challenge.Expired(now) {
			reason = "expired"
			return nil
		}
		keys, err := tx.ListActiveKeys(ctx, challenge.UserID)
		if err != nil {
			return fmt.Errorf("failed to load active keys: %w", err)
		}
		if !signature.VerifyAny(uc.verifier, model.PublicKeys(keys), challenge.Value, uc.input.Signature) {
			reason = "bad_signature"
			return nil
		}
		pair, err = uc.mint(ctx, tx, challenge.UserID, now)
		return err
	})
	if err != nil {
		log.Error("Challenge verification failed internally", "error", err, "challenge_id", challengeID)
		return nil, err
	}
	if pair == nil {
		return nil, uc.reject(ctx, reason)
	}
	auth.RecordLoginAttempt(ctx, auth.ResultSuccess)
	log.Info("Login succeeded", "challenge_id", challengeID)
	return pair, nil
}

func (uc *VerifyChallenge) mint(ctx context.Context, tx Repository, userID core.ID, now time.Time) (*TokenPair, error) {
	token, expiresAt, err := uc.issuer.Issue(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue bearer token: %w", err)
	}
	raw, err := core.RandomBytes(uc.random, RefreshSecretSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)
	tokenID, err := core.NewIDFrom(uc.random)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token ID: %w", err)
	}
	refresh := &model.RefreshToken{
		ID:         tokenID,
		UserID:     userID,
		SecretHash: model.HashRefreshSecret(secret),
		CreatedAt:  now,
		ExpiresAt:  now.Add(uc.cfg.RefreshTTL),
	}
	if err := tx.CreateRefreshToken(ctx, refresh); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	if err := appendAudit(ctx, tx, uc.clock, uc.random, userID, model.AuditLogin, uc.input.ClientIP); err != nil {
		return nil, err
	}
	return &TokenPair{
		Token:            token,
		ExpiresAt:        expiresAt,
		RefreshToken:     secret,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

func (uc *VerifyChallenge) reject(ctx context.Context, reason string) error {
	auth.RecordLoginAttempt(ctx, auth.ResultFailure)
	logger.FromContext(ctx).Debug("Login rejected", "reason", reason)
	return ErrUnauthorized
}
