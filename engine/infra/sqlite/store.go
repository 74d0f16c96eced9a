package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/sigauth/sigauth/pkg/logger"
)

const defaultHealthCheckWait = time.Second

// Store owns the SQLite connection pool.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens the database, applies connection pragmas and verifies it answers.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("sqlite: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	settings := cfg.resolved()
	db, err := sql.Open("sqlite", buildDSN(&settings))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	configurePool(db, &settings)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if err := applyBusyTimeout(ctx, db, settings.BusyTimeout); err != nil {
		db.Close()
		return nil, err
	}
	logger.FromContext(ctx).With(
		"store_driver", "sqlite",
		"path", settings.Path,
		"in_memory", settings.InMemory(),
		"max_open_conns", settings.MaxOpenConns,
	).Info("Store initialized")
	return &Store{db: db, path: settings.Path}, nil
}

// DB exposes the underlying pool for driver-local usage.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the pool.
func (s *Store) Close(ctx context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sqlite: close: %w", err)
	}
	logger.FromContext(ctx).Info("SQLite store closed", "path", s.path)
	return nil
}

// HealthCheck verifies the database still answers queries.
func (s *Store) HealthCheck(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, defaultHealthCheckWait)
	defer cancel()
	if err := s.db.PingContext(hctx); err != nil {
		return fmt.Errorf("sqlite: health check failed: %w", err)
	}
	return nil
}

// buildDSN renders a modernc DSN for resolved settings. Write transactions
// take the database lock at BEGIN so concurrent writers queue on busy_timeout
// instead of failing mid-flight.
func buildDSN(cfg *Config) string {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	params.Set("_txlock", "immediate")
	params.Set("_time_format", "sqlite")
	if cfg.InMemory() {
		params.Set("mode", "memory")
		params.Set("cache", "shared")
		return "file::memory:?" + params.Encode()
	}
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "synchronous(NORMAL)")
	return "file:" + cfg.Path + "?" + params.Encode()
}

func configurePool(db *sql.DB, cfg *Config) {
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

func applyBusyTimeout(ctx context.Context, db *sql.DB, busy time.Duration) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds())); err != nil {
		return fmt.Errorf("sqlite: set busy timeout: %w", err)
	}
	return nil
}
