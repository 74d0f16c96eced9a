package ratelimit

import (
	"context"
	"sync"

	monitoringmetrics "github.com/sigauth/sigauth/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	rateLimitBlocksTotal metric.Int64Counter
	metricsOnce          sync.Once
)

// InitMetrics initializes rate limiting metrics
func InitMetrics(meter metric.Meter) error {
	if meter == nil {
		return nil
	}
	var err error
	metricsOnce.Do(func() {
		rateLimitBlocksTotal, err = meter.Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("ratelimit", "blocks_total"),
			metric.WithDescription("Total number of requests blocked by rate limiting"),
			metric.WithUnit("1"),
		)
	})
	return err
}

// ResetMetricsForTesting drops the counter so a test can install its own meter.
func ResetMetricsForTesting() {
	rateLimitBlocksTotal = nil
	metricsOnce = sync.Once{}
}

// IncrementBlockedRequests increments the blocks counter
func IncrementBlockedRequests(ctx context.Context, route string, keyType string) {
	if rateLimitBlocksTotal != nil {
		rateLimitBlocksTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("route", route),
				attribute.String("key_type", keyType),
			),
		)
	}
}
