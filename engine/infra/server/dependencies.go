package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sigauth/sigauth/engine/auth"
	"github.com/sigauth/sigauth/engine/auth/bearer"
	"github.com/sigauth/sigauth/engine/auth/cleanup"
	"github.com/sigauth/sigauth/engine/auth/infra/memory"
	authredis "github.com/sigauth/sigauth/engine/auth/infra/redis"
	"github.com/sigauth/sigauth/engine/auth/uc"
	"github.com/sigauth/sigauth/engine/infra/cache"
	"github.com/sigauth/sigauth/engine/infra/monitoring"
	"github.com/sigauth/sigauth/engine/infra/postgres"
	"github.com/sigauth/sigauth/engine/infra/server/middleware/ratelimit"
	"github.com/sigauth/sigauth/engine/infra/sqlite"
	"github.com/sigauth/sigauth/engine/infra/store"
	"github.com/sigauth/sigauth/pkg/config"
	"github.com/sigauth/sigauth/pkg/logger"
)

const (
	monitoringShutdownTimeout = 5 * time.Second
	storeCloseTimeout         = 10 * time.Second
)

var errMissingSecret = errors.New("auth.bearer_secret is required to start the server")

// StoreConfig translates database settings into the store's driver config.
func StoreConfig(cfg *config.Config) *store.Config {
	db := &cfg.Database
	retries := db.ConnectRetries
	if retries < 0 {
		retries = 0
	}
	return &store.Config{
		Driver: db.Driver,
		SQLite: sqlite.Config{
			Path:            db.Path,
			ConnMaxLifetime: db.ConnMaxLifetime,
			ConnMaxIdleTime: db.ConnMaxIdleTime,
		},
		Postgres: postgres.Config{
			ConnString:      db.ConnString,
			Host:            db.Host,
			Port:            db.Port,
			User:            db.User,
			Password:        db.Password.Value(),
			DBName:          db.DBName,
			SSLMode:         db.SSLMode,
			MaxOpenConns:    db.MaxOpenConns,
			MaxIdleConns:    db.MaxIdleConns,
			ConnMaxLifetime: db.ConnMaxLifetime,
			ConnMaxIdleTime: db.ConnMaxIdleTime,
		},
		ConnectRetries: uint64(retries),
		RetryBaseDelay: db.RetryBaseDelay,
		AutoMigrate:    db.AutoMigrate,
	}
}

func authConfig(cfg *config.Config) *auth.Config {
	return &auth.Config{
		BearerTTL:             cfg.Auth.BearerTTL,
		ChallengeTTL:          cfg.Auth.ChallengeTTL,
		RefreshTTL:            cfg.Auth.RefreshTTL,
		MaxUsernameBytes:      cfg.Auth.MaxUsernameBytes,
		MaxKeysPerUser:        cfg.Auth.MaxKeysPerUser,
		EnumerationProtection: cfg.Auth.EnumerationProtection,
	}
}

func cacheConfig(cfg *config.Config) *cache.Config {
	return &cache.Config{
		URL:      cfg.Redis.URL,
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password.Value(),
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
}

func rateLimitConfig(cfg *config.Config) *ratelimit.Config {
	rl := &cfg.RateLimit
	return &ratelimit.Config{
		ChallengeRate: ratelimit.RateConfig{
			Limit:    rl.ChallengeRate.Limit,
			Period:   rl.ChallengeRate.Period,
			Disabled: rl.ChallengeRate.Disabled,
		},
		Prefix:      rl.Prefix,
		MaxRetry:    rl.MaxRetry,
		ExcludedIPs: append([]string(nil), rl.ExcludedIPs...),
	}
}

func (s *Server) newIssuer() (*bearer.Issuer, error) {
	secret := s.cfg.Auth.BearerSecret.Value()
	if secret == "" {
		return nil, errMissingSecret
	}
	issuer, err := bearer.NewIssuer([]byte(secret), s.cfg.Auth.BearerTTL, s.clock)
	if err != nil {
		return nil, fmt.Errorf("bearer issuer: %w", err)
	}
	return issuer, nil
}

func (s *Server) setupMonitoring() {
	log := logger.FromContext(s.ctx)
	svc := monitoring.NewMonitoringServiceWithFallback(s.ctx, &monitoring.Config{
		Enabled: s.cfg.Monitoring.Enabled,
		Path:    s.cfg.Monitoring.Path,
	})
	s.monitoring = svc
	if !svc.IsInitialized() {
		return
	}
	svc.SetAsGlobal()
	if err := auth.InitMetrics(svc.Meter()); err != nil {
		log.Warn("Failed to register auth metrics", "error", err)
	}
	if err := ratelimit.InitMetrics(svc.Meter()); err != nil {
		log.Warn("Failed to register rate limit metrics", "error", err)
	}
	s.addCleanup(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), monitoringShutdownTimeout)
		defer cancel()
		if err := svc.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown monitoring service", "error", err)
		}
	})
}

func (s *Server) setupStore() error {
	start := time.Now()
	st, err := store.Open(s.ctx, StoreConfig(s.cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	s.store = st
	s.addCleanup(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), storeCloseTimeout)
		defer cancel()
		if err := st.Close(ctx); err != nil {
			logger.FromContext(s.ctx).Error("Failed to close store", "error", err)
		}
	})
	logger.FromContext(s.ctx).Info("Store ready",
		"store_driver", st.Driver(),
		"duration", time.Since(start),
	)
	return nil
}

// setupRedis connects the optional shared store. A configured but unreachable
// server is a startup error; failures after startup only degrade health.
func (s *Server) setupRedis() error {
	if !s.cfg.Redis.Enabled() {
		return nil
	}
	r, err := cache.NewRedis(s.ctx, cacheConfig(s.cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	s.redis = r
	s.addCleanup(func() { _ = r.Close() })
	return nil
}

func (s *Server) setupAuth(issuer *bearer.Issuer) error {
	repo := s.store.Repository()
	ttl := s.cfg.Auth.UserCacheTTL
	if ttl <= 0 {
		ttl = authredis.DefaultUserTTL
	}
	switch {
	case s.redis != nil:
		repo = authredis.NewCachedRepository(repo, s.redis.Client(), ttl)
		s.userCache = "redis"
	case s.cfg.Auth.UserCacheSize > 0:
		repo = memory.NewCachedRepository(repo, s.cfg.Auth.UserCacheSize, ttl)
		s.userCache = "memory"
	}
	s.factory = uc.NewFactory(repo, issuer,
		uc.WithClock(s.clock),
		uc.WithConfig(authConfig(s.cfg)),
	)
	scheduler, err := cleanup.NewScheduler(s.factory, s.cfg.Runtime.ChallengeGCSchedule)
	if err != nil {
		return err
	}
	s.scheduler = scheduler
	return nil
}

func (s *Server) setupRateLimit() error {
	var manager *ratelimit.Manager
	var err error
	if s.redis != nil {
		manager, err = ratelimit.NewManager(rateLimitConfig(s.cfg), s.redis.Client())
	} else {
		manager, err = ratelimit.NewManager(rateLimitConfig(s.cfg), nil)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize rate limiting: %w", err)
	}
	s.rateLimit = manager
	logger.FromContext(s.ctx).Info("Rate limiter initialized",
		"driver", manager.Driver(),
		"challenge_limit", s.cfg.RateLimit.ChallengeRate.Limit,
		"challenge_period", s.cfg.RateLimit.ChallengeRate.Period,
		"disabled", s.cfg.RateLimit.ChallengeRate.Disabled,
	)
	return nil
}

func (s *Server) recordDeployment() error {
	s.monitoring.RecordDeployment(s.ctx, monitoring.Deployment{
		StoreDriver:    s.store.Driver(),
		RateLimitStore: s.rateLimit.Driver(),
		UserCache:      s.userCache,
	})
	return nil
}
