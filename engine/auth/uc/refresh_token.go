package uc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sigauth/sigauth/engine/auth"
	"github.com/sigauth/sigauth/engine/auth/bearer"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/pkg/logger"
)

// BearerToken is a freshly minted bearer
type BearerToken struct {
	Token     string
	ExpiresAt time.Time
}

// RefreshToken use case for exchanging a refresh secret for a new bearer.
// The refresh token itself is not rotated.
type RefreshToken struct {
	repo   Repository
	clock  core.Clock
	issuer *bearer.Issuer
	secret string
}

// NewRefreshToken creates a new refresh token use case
func NewRefreshToken(repo Repository, clock core.Clock, issuer *bearer.Issuer, secret string) *RefreshToken {
	return &RefreshToken{repo: repo, clock: clock, issuer: issuer, secret: secret}
}

// Execute validates the refresh secret and mints a bearer
func (uc *RefreshToken) Execute(ctx context.Context) (*BearerToken, error) {
	log := logger.FromContext(ctx)
	if uc.secret == "" {
		auth.RecordRefreshAttempt(ctx, auth.ResultFailure)
		return nil, ErrUnauthorized
	}
	token, err := uc.repo.GetRefreshTokenBySecret(ctx, uc.secret)
	if err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) {
			auth.RecordRefreshAttempt(ctx, auth.ResultFailure)
			log.Debug("Unknown refresh token")
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load refresh token: %w", err)
	}
	if !token.Usable(uc.clock.Now()) {
		auth.RecordRefreshAttempt(ctx, auth.ResultFailure)
		log.Debug("Refresh token no longer usable", "token_id", token.ID, "revoked", token.Revoked)
		return nil, ErrUnauthorized
	}
	if _, err := uc.repo.GetUserByID(ctx, token.UserID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, reportInvariant(ctx, "refresh_token_user_exists", "token_id", token.ID, "user_id", token.UserID)
		}
		return nil, fmt.Errorf("failed to load refresh token owner: %w", err)
	}
	bearerToken, expiresAt, err := uc.issuer.Issue(token.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue bearer token: %w", err)
	}
	auth.RecordRefreshAttempt(ctx, auth.ResultSuccess)
	log.Debug("Bearer refreshed", "user_id", token.UserID)
	return &BearerToken{Token: bearerToken, ExpiresAt: expiresAt}, nil
}
