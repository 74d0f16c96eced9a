package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	monitoringmetrics "github.com/sigauth/sigauth/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultPoolLabel  = "default"
	postgresMeterName = "sigauth.postgres"
)

var (
	postgresMetricsOnce sync.Once
	postgresMetricsErr  error
	postgresPools       sync.Map
)

// poolMetrics is the registration handle of one pool in the shared callback.
type poolMetrics struct {
	label string
	pool  *pgxpool.Pool
}

type poolInstruments struct {
	open         metric.Int64ObservableGauge
	inUse        metric.Int64ObservableGauge
	idle         metric.Int64ObservableGauge
	maxConns     metric.Int64ObservableGauge
	emptyAcquire metric.Int64ObservableCounter
	acquireWait  metric.Float64ObservableCounter
}

func ensurePostgresMetrics() error {
	postgresMetricsOnce.Do(func() {
		postgresMetricsErr = registerPoolInstruments(otel.GetMeterProvider().Meter(postgresMeterName))
	})
	return postgresMetricsErr
}

func registerPoolInstruments(meter metric.Meter) error {
	var (
		ins poolInstruments
		err error
	)
	name := func(n string) string { return monitoringmetrics.MetricNameWithSubsystem("postgres", n) }
	if ins.open, err = meter.Int64ObservableGauge(
		name("connections_open"),
		metric.WithDescription("Open Postgres connections"),
	); err != nil {
		return err
	}
	if ins.inUse, err = meter.Int64ObservableGauge(
		name("connections_in_use"),
		metric.WithDescription("Postgres connections checked out of the pool"),
	); err != nil {
		return err
	}
	if ins.idle, err = meter.Int64ObservableGauge(
		name("connections_idle"),
		metric.WithDescription("Idle Postgres connections"),
	); err != nil {
		return err
	}
	if ins.maxConns, err = meter.Int64ObservableGauge(
		name("max_open_connections"),
		metric.WithDescription("Configured Postgres pool size"),
	); err != nil {
		return err
	}
	if ins.emptyAcquire, err = meter.Int64ObservableCounter(
		name("empty_acquire_total"),
		metric.WithDescription("Acquires that had to wait for a connection"),
	); err != nil {
		return err
	}
	if ins.acquireWait, err = meter.Float64ObservableCounter(
		name("acquire_wait_seconds_total"),
		metric.WithDescription("Cumulative time spent waiting for a connection"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		postgresPools.Range(func(_, value any) bool {
			pm, ok := value.(*poolMetrics)
			if !ok || pm.pool == nil {
				return true
			}
			stats := pm.pool.Stat()
			attrs := metric.WithAttributes(attribute.String("pool", pm.label))
			o.ObserveInt64(ins.open, int64(stats.TotalConns()), attrs)
			o.ObserveInt64(ins.inUse, int64(stats.AcquiredConns()), attrs)
			o.ObserveInt64(ins.idle, int64(stats.IdleConns()), attrs)
			o.ObserveInt64(ins.maxConns, int64(stats.MaxConns()), attrs)
			o.ObserveInt64(ins.emptyAcquire, stats.EmptyAcquireCount(), attrs)
			o.ObserveFloat64(ins.acquireWait, stats.EmptyAcquireWaitTime().Seconds(), attrs)
			return true
		})
		return nil
	}, ins.open, ins.inUse, ins.idle, ins.maxConns, ins.emptyAcquire, ins.acquireWait)
	return err
}

// trackPool adds pool to the shared observation callback.
func trackPool(cfg *Config, pool *pgxpool.Pool) (*poolMetrics, error) {
	if err := ensurePostgresMetrics(); err != nil {
		return nil, fmt.Errorf("postgres: init metrics: %w", err)
	}
	pm := &poolMetrics{label: computePoolLabel(cfg), pool: pool}
	postgresPools.Store(pm, pm)
	return pm, nil
}

func (p *poolMetrics) unregister() {
	if p == nil {
		return
	}
	postgresPools.Delete(p)
}

// computePoolLabel derives a low-cardinality label without credentials.
func computePoolLabel(cfg *Config) string {
	if cfg == nil {
		return defaultPoolLabel
	}
	host, port, db := cfg.Host, cfg.Port, cfg.DBName
	if cfg.ConnString != "" {
		if u, err := url.Parse(cfg.ConnString); err == nil && u.Host != "" {
			host, port, db = u.Hostname(), u.Port(), strings.TrimPrefix(u.Path, "/")
		}
	}
	parts := make([]string, 0, 3)
	for _, c := range []string{host, port, db} {
		if s := sanitizeLabelComponent(c); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return defaultPoolLabel
	}
	return strings.Join(parts, "-")
}

func sanitizeLabelComponent(component string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(component)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
