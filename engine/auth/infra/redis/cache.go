package redis

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/auth/uc"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/pkg/logger"
)

const DefaultUserTTL = 5 * time.Minute

// CachedRepository fronts user lookups with Redis. Users are immutable once
// created and are never deleted, so entries need no invalidation. Every other
// operation, including anything run inside WithTx, goes straight to the store.
type CachedRepository struct {
	uc.Repository
	client Interface
	ttl    time.Duration
}

// Interface defines the minimal Redis interface needed for caching
type Interface interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// cachedUser carries the fields model.User hides from JSON.
type cachedUser struct {
	ID        core.ID   `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCachedRepository wraps repo. A zero ttl selects DefaultUserTTL.
func NewCachedRepository(repo uc.Repository, client Interface, ttl time.Duration) *CachedRepository {
	if ttl <= 0 {
		ttl = DefaultUserTTL
	}
	return &CachedRepository{Repository: repo, client: client, ttl: ttl}
}

func userIDKey(id core.ID) string { return "sigauth:user:id:" + id.String() }

// Usernames are hex encoded so arbitrary bytes cannot collide with the key layout.
func usernameKey(username string) string {
	return "sigauth:user:name:" + hex.EncodeToString([]byte(username))
}

func (c *CachedRepository) GetUserByID(ctx context.Context, id core.ID) (*model.User, error) {
	return c.lookup(ctx, userIDKey(id), func() (*model.User, error) {
		return c.Repository.GetUserByID(ctx, id)
	})
}

func (c *CachedRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return c.lookup(ctx, usernameKey(username), func() (*model.User, error) {
		return c.Repository.GetUserByUsername(ctx, username)
	})
}

// lookup never caches misses: a name that is free now may be registered later.
func (c *CachedRepository) lookup(
	ctx context.Context,
	key string,
	load func() (*model.User, error),
) (*model.User, error) {
	log := logger.FromContext(ctx)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cu cachedUser
		if uErr := json.Unmarshal(raw, &cu); uErr == nil {
			log.Debug("User cache hit", "cache_key", key)
			return &model.User{ID: cu.ID, Username: cu.Username, CreatedAt: cu.CreatedAt}, nil
		}
		log.Debug("Failed to decode cached user", "cache_key", key)
	case !errors.Is(err, redis.Nil):
		log.Warn("User cache unavailable", "error", err)
	}
	user, err := load()
	if err != nil {
		return nil, err
	}
	c.store(ctx, user)
	return user, nil
}

func (c *CachedRepository) store(ctx context.Context, user *model.User) {
	payload, err := json.Marshal(cachedUser{ID: user.ID, Username: user.Username, CreatedAt: user.CreatedAt})
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to encode user for cache", "error", err)
		return
	}
	for _, key := range []string{userIDKey(user.ID), usernameKey(user.Username)} {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			logger.FromContext(ctx).Warn("Failed to cache user", "cache_key", key, "error", err)
			return
		}
	}
}
