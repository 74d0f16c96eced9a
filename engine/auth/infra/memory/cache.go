// Package memory provides an in-process user cache for single-node deployments.
package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/auth/uc"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/pkg/logger"
)

// CachedRepository fronts user lookups with a bounded LRU. Users are immutable
// and never deleted, so expiry is the only eviction needed besides size.
type CachedRepository struct {
	uc.Repository
	byID   *expirable.LRU[core.ID, model.User]
	byName *expirable.LRU[string, model.User]
}

// NewCachedRepository wraps repo with caches holding up to size users each.
func NewCachedRepository(repo uc.Repository, size int, ttl time.Duration) *CachedRepository {
	return &CachedRepository{
		Repository: repo,
		byID:       expirable.NewLRU[core.ID, model.User](size, nil, ttl),
		byName:     expirable.NewLRU[string, model.User](size, nil, ttl),
	}
}

func (c *CachedRepository) GetUserByID(ctx context.Context, id core.ID) (*model.User, error) {
	if user, ok := c.byID.Get(id); ok {
		logger.FromContext(ctx).Debug("User cache hit", "user_id", id)
		return &user, nil
	}
	user, err := c.Repository.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(user)
	return user, nil
}

// GetUserByUsername never caches misses: a free name may be registered later.
func (c *CachedRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	if user, ok := c.byName.Get(username); ok {
		logger.FromContext(ctx).Debug("User cache hit", "username", username)
		return &user, nil
	}
	user, err := c.Repository.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	c.store(user)
	return user, nil
}

// Len reports the number of cached users.
func (c *CachedRepository) Len() int { return c.byID.Len() }

func (c *CachedRepository) store(user *model.User) {
	c.byID.Add(user.ID, *user)
	c.byName.Add(user.Username, *user)
}
