package uc

import (
	"context"
	"fmt"

	"github.com/sigauth/sigauth/engine/auth/model"
)

// ListKeys use case for listing the subject's active keys
type ListKeys struct {
	repo    Repository
	subject model.Subject
}

// NewListKeys creates a new list keys use case
func NewListKeys(repo Repository, subject model.Subject) *ListKeys {
	return &ListKeys{repo: repo, subject: subject}
}

// Execute lists the keys
func (uc *ListKeys) Execute(ctx context.Context) ([]model.UserKey, error) {
	keys, err := uc.repo.ListActiveKeys(ctx, uc.subject.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}
