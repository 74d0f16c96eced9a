package uc

import (
	"context"
	"fmt"

	"github.com/sigauth/sigauth/engine/auth"
	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/auth/signature"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/pkg/logger"
)

// insertKey must run inside a transaction so the cap check and insert agree.
func insertKey(
	ctx context.Context,
	repo Repository,
	clock core.Clock,
	random core.Random,
	cfg *auth.Config,
	userID core.ID,
	publicKey []byte,
) (*model.UserKey, error) {
	if _, err := repo.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	if err := signature.ValidatePublicKey(publicKey); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPublicKey, err.Error())
	}
	if cfg.MaxKeysPerUser > 0 {
		count, err := repo.CountActiveKeys(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to count active keys: %w", err)
		}
		if count >= cfg.MaxKeysPerUser {
			return nil, fmt.Errorf("%w: at most %d active keys", ErrKeyLimitReached, cfg.MaxKeysPerUser)
		}
	}
	keyID, err := core.NewIDFrom(random)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key ID: %w", err)
	}
	key := &model.UserKey{
		ID:        keyID,
		UserID:    userID,
		PublicKey: append([]byte(nil), publicKey...),
		CreatedAt: clock.Now(),
	}
	if err := repo.CreateKey(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to create key: %w", err)
	}
	return key, nil
}

// RegisterKey use case for attaching a public key to an existing user
type RegisterKey struct {
	repo      Repository
	clock     core.Clock
	random    core.Random
	cfg       *auth.Config
	userID    core.ID
	publicKey []byte
}

// NewRegisterKey creates a new register key use case
func NewRegisterKey(
	repo Repository,
	clock core.Clock,
	random core.Random,
	cfg *auth.Config,
	userID core.ID,
	publicKey []byte,
) *RegisterKey {
	return &RegisterKey{repo: repo, clock: clock, random: random, cfg: cfg, userID: userID, publicKey: publicKey}
}

// Execute registers the key
func (uc *RegisterKey) Execute(ctx context.Context) (*model.UserKey, error) {
	var key *model.UserKey
	err := uc.repo.WithTx(ctx, func(tx Repository) error {
		var err error
		key, err = insertKey(ctx, tx, uc.clock, uc.random, uc.cfg, uc.userID, uc.publicKey)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Key registered", "user_id", uc.userID, "key_id", key.ID)
	return key, nil
}
