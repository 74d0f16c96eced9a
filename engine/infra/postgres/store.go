package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sigauth/sigauth/pkg/logger"
)

var ErrConfigRequired = errors.New("postgres: config is required")

// Store owns the pgx pool that backs the auth repository.
type Store struct {
	pool          *pgxpool.Pool
	metrics       *poolMetrics
	label         string
	healthTimeout time.Duration
}

// NewStore opens the pool and pings it once before returning. A failed ping
// closes the pool so retries start from a clean slate.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	settings := cfg.resolved()
	poolCfg, err := poolConfig(&settings)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	if err := ping(ctx, pool, settings.PingTimeout); err != nil {
		pool.Close()
		return nil, err
	}
	s := &Store{
		pool:          pool,
		label:         computePoolLabel(&settings),
		healthTimeout: settings.HealthCheckTimeout,
	}
	if s.metrics, err = trackPool(&settings, pool); err != nil {
		logger.FromContext(ctx).Warn("Postgres pool metrics unavailable", "error", err)
	}
	logger.FromContext(ctx).With(
		"store_driver", "postgres",
		"pool", s.label,
		"max_conns", poolCfg.MaxConns,
		"min_conns", poolCfg.MinConns,
	).Info("Store initialized")
	return s, nil
}

// Pool exposes the pool to the auth repository.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close stops pool metrics and closes every connection.
func (s *Store) Close(ctx context.Context) error {
	s.metrics.unregister()
	s.pool.Close()
	logger.FromContext(ctx).Info("Postgres store closed", "pool", s.label)
	return nil
}

// HealthCheck pings through the pool. An exhausted pool counts as unhealthy
// once the ping cannot acquire a connection within the timeout.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := ping(ctx, s.pool, s.healthTimeout); err != nil {
		stat := s.pool.Stat()
		return fmt.Errorf("postgres: health check failed (in use %d of %d): %w",
			stat.AcquiredConns(), stat.MaxConns(), err)
	}
	return nil
}

// poolConfig maps resolved settings onto pgx. Every connection identifies
// itself as the auth service unless the connection string names itself.
func poolConfig(cfg *Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
	if _, ok := poolCfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	return poolCfg, nil
}

func ping(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}
