package uc

import (
	"context"
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/sigauth/sigauth/engine/auth"
	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/pkg/logger"
)

// ValidateUsername rejects empty, oversized, non UTF-8 and control-character names.
// Usernames are compared byte for byte, so no normalization happens here.
func ValidateUsername(username string, maxBytes int) error {
	switch {
	case username == "":
		return fmt.Errorf("%w: username is required", ErrInvalidUsername)
	case len(username) > maxBytes:
		return fmt.Errorf("%w: username exceeds %d bytes", ErrInvalidUsername, maxBytes)
	case !utf8.ValidString(username):
		return fmt.Errorf("%w: username must be valid UTF-8", ErrInvalidUsername)
	}
	for _, r := range username {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: username contains control characters", ErrInvalidUsername)
		}
	}
	return nil
}

// RegisterUser use case for enrolling a new user
type RegisterUser struct {
	repo     Repository
	clock    core.Clock
	random   core.Random
	cfg      *auth.Config
	username string
}

// NewRegisterUser creates a new register user use case
func NewRegisterUser(
	repo Repository,
	clock core.Clock,
	random core.Random,
	cfg *auth.Config,
	username string,
) *RegisterUser {
	return &RegisterUser{repo: repo, clock: clock, random: random, cfg: cfg, username: username}
}

// Execute creates the user. Uniqueness is left to the store's unique index.
func (uc *RegisterUser) Execute(ctx context.Context) (*model.User, error) {
	log := logger.FromContext(ctx)
	if err := ValidateUsername(uc.username, uc.cfg.MaxUsernameBytes); err != nil {
		return nil, err
	}
	userID, err := core.NewIDFrom(uc.random)
	if err != nil {
		return nil, fmt.Errorf("failed to generate user ID: %w", err)
	}
	user := &model.User{
		ID:        userID,
		Username:  uc.username,
		CreatedAt: uc.clock.Now(),
	}
	if err := uc.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			log.Debug("Username already taken", "username", uc.username)
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	log.Info("User registered", "user_id", user.ID)
	return user, nil
}
