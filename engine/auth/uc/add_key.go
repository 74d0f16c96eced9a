package uc

import (
	"context"
	"errors"

	"github.com/sigauth/sigauth/engine/auth"
	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/pkg/logger"
)

// AddKey use case for key rotation by an authenticated user
type AddKey struct {
	repo      Repository
	clock     core.Clock
	random    core.Random
	cfg       *auth.Config
	subject   model.Subject
	publicKey []byte
	clientIP  string
}

// NewAddKey creates a new add key use case
func NewAddKey(
	repo Repository,
	clock core.Clock,
	random core.Random,
	cfg *auth.Config,
	subject model.Subject,
	publicKey []byte,
	clientIP string,
) *AddKey {
	return &AddKey{
		repo:      repo,
		clock:     clock,
		random:    random,
		cfg:       cfg,
		subject:   subject,
		publicKey: publicKey,
		clientIP:  clientIP,
	}
}

// Execute inserts the key and its KEY_ADDED audit entry in one transaction
func (uc *AddKey) Execute(ctx context.Context) (*model.UserKey, error) {
	log := logger.FromContext(ctx)
	var key *model.UserKey
	err := uc.repo.WithTx(ctx, func(tx Repository) error {
		var err error
		key, err = insertKey(ctx, tx, uc.clock, uc.random, uc.cfg, uc.subject.UserID, uc.publicKey)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				// A valid bearer for a user that no longer exists.
				return reportInvariant(ctx, "subject_user_exists", "user_id", uc.subject.UserID)
			}
			return err
		}
		return appendAudit(ctx, tx, uc.clock, uc.random, uc.subject.UserID, model.AuditKeyAdded, uc.clientIP)
	})
	if err != nil {
		return nil, err
	}
	log.Info("Key added", "user_id", uc.subject.UserID, "key_id", key.ID)
	return key, nil
}
