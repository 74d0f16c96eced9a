// Package store opens the configured database driver and hands out the
// auth repository bound to it.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sigauth/sigauth/engine/auth/infra/postgres"
	"github.com/sigauth/sigauth/engine/auth/uc"
	"github.com/sigauth/sigauth/engine/core"
	pgdriver "github.com/sigauth/sigauth/engine/infra/postgres"
	"github.com/sigauth/sigauth/engine/infra/sqlite"
	"github.com/sigauth/sigauth/pkg/logger"
)

const defaultRetryBaseDelay = 500 * time.Millisecond

type driver interface {
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// Store is an open database together with its auth repository.
type Store struct {
	cfg     *Config
	driver  driver
	repo    uc.Repository
	migrate func(ctx context.Context) error
}

// Open connects to the configured driver, retrying with exponential backoff
// up to cfg.ConnectRetries extra attempts.
func Open(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With("store_driver", cfg.Driver)
	base := cfg.RetryBaseDelay
	if base <= 0 {
		base = defaultRetryBaseDelay
	}
	backoff := retry.WithMaxRetries(cfg.ConnectRetries, retry.NewExponential(base))
	attempt := 0
	var s *Store
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		opened, err := open(ctx, cfg)
		if err != nil {
			log.Warn("Store not reachable", "attempt", attempt, "error", core.RedactError(err))
			return retry.RetryableError(err)
		}
		s = opened
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: giving up after %d attempts: %w", attempt, err)
	}
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
	}
	return s, nil
}

func open(ctx context.Context, cfg *Config) (*Store, error) {
	switch cfg.Driver {
	case DriverSQLite:
		db, err := sqlite.NewStore(ctx, &cfg.SQLite)
		if err != nil {
			return nil, err
		}
		return &Store{
			cfg:     cfg,
			driver:  db,
			repo:    sqlite.NewAuthRepo(db.DB()),
			migrate: func(ctx context.Context) error { return sqlite.RunMigrationsForDB(ctx, db.DB()) },
		}, nil
	case DriverPostgres:
		db, err := pgdriver.NewStore(ctx, &cfg.Postgres)
		if err != nil {
			return nil, err
		}
		dsn := cfg.Postgres.DSN()
		return &Store{
			cfg:     cfg,
			driver:  db,
			repo:    postgres.NewRepository(db.Pool()),
			migrate: func(ctx context.Context) error { return pgdriver.ApplyMigrationsWithLock(ctx, dsn) },
		}, nil
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

// Driver names the active backend.
func (s *Store) Driver() string { return s.cfg.Driver }

// Repository returns the auth repository bound to this store.
func (s *Store) Repository() uc.Repository { return s.repo }

// Migrate applies the embedded migrations for the active driver.
func (s *Store) Migrate(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info("Running database migrations", "store_driver", s.cfg.Driver)
	if err := s.migrate(ctx); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	log.Info("Database migrations completed", "store_driver", s.cfg.Driver)
	return nil
}

func (s *Store) HealthCheck(ctx context.Context) error { return s.driver.HealthCheck(ctx) }

func (s *Store) Close(ctx context.Context) error { return s.driver.Close(ctx) }
