package ratelimit

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sigauth/sigauth/pkg/logger"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const keyTypeIP = "ip"

// Manager builds rate limiting middleware over a shared store. With a Redis
// client the counters are shared across replicas; otherwise they live in
// process memory.
type Manager struct {
	config *Config
	store  limiter.Store
	driver string
}

// NewManager validates cfg and selects the store. client may be nil. The
// store adds its own separator after the prefix, so trailing colons are dropped.
func NewManager(cfg *Config, client *redis.Client) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rate limit config: %w", err)
	}
	opts := limiter.StoreOptions{
		Prefix:          strings.TrimRight(cfg.Prefix, ":"),
		MaxRetry:        cfg.MaxRetry,
		CleanUpInterval: time.Minute,
	}
	if client == nil {
		return &Manager{config: cfg, store: memory.NewStoreWithOptions(opts), driver: "memory"}, nil
	}
	store, err := sredis.NewStoreWithOptions(client, opts)
	if err != nil {
		return nil, fmt.Errorf("creating redis rate limit store: %w", err)
	}
	return &Manager{config: cfg, store: store, driver: "redis"}, nil
}

// Driver names the backing store.
func (m *Manager) Driver() string { return m.driver }

// ChallengeMiddleware limits challenge requests per client IP. Store errors
// let the request through so a Redis outage does not lock every user out.
func (m *Manager) ChallengeMiddleware() gin.HandlerFunc {
	if m.config.ChallengeRate.Disabled {
		return func(c *gin.Context) { c.Next() }
	}
	return m.middleware("challenge", m.config.ChallengeRate)
}

func (m *Manager) middleware(route string, rate RateConfig) gin.HandlerFunc {
	lim := limiter.New(m.store, rate.ToLimiterRate())
	excluded := m.config.ExcludedIPs
	return mgin.NewMiddleware(lim,
		mgin.WithKeyGetter(func(c *gin.Context) string {
			return route + ":" + c.ClientIP()
		}),
		mgin.WithExcludedKey(func(key string) bool {
			return slices.Contains(excluded, key[len(route)+1:])
		}),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			IncrementBlockedRequests(c.Request.Context(), route, keyTypeIP)
			logger.FromContext(c.Request.Context()).Debug("Rate limit reached", "route", route)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"details": "too many requests",
			})
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			logger.FromContext(c.Request.Context()).Warn("Rate limit store unavailable", "route", route, "error", err)
			c.Next()
		}),
	)
}
