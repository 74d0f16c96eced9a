package auth

import (
	"context"
	"sync"

	monitoringmetrics "github.com/sigauth/sigauth/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	loginAttemptsTotal    metric.Int64Counter
	challengesIssuedTotal metric.Int64Counter
	challengesPurgedTotal metric.Int64Counter
	refreshAttemptsTotal  metric.Int64Counter
	bearerChecksTotal     metric.Int64Counter
	metricsOnce           sync.Once
	metricsMu             sync.Mutex
)

// InitMetrics initializes authentication metrics
func InitMetrics(meter metric.Meter) error {
	if meter == nil {
		return nil
	}
	var err error
	metricsOnce.Do(func() {
		metricsMu.Lock()
		defer metricsMu.Unlock()
		if loginAttemptsTotal, err = meter.Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("auth", "login_attempts_total"),
			metric.WithDescription("Challenge verifications by result"),
		); err != nil {
			return
		}
		if challengesIssuedTotal, err = meter.Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("auth", "challenges_issued_total"),
			metric.WithDescription("Challenges handed out, including synthetic ones"),
		); err != nil {
			return
		}
		if challengesPurgedTotal, err = meter.Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("auth", "challenges_purged_total"),
			metric.WithDescription("Expired challenges removed by the cleanup job"),
		); err != nil {
			return
		}
		if refreshAttemptsTotal, err = meter.Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("auth", "refresh_attempts_total"),
			metric.WithDescription("Refresh token exchanges by result"),
		); err != nil {
			return
		}
		bearerChecksTotal, err = meter.Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("auth", "bearer_checks_total"),
			metric.WithDescription("Bearer tokens presented to protected routes by result"),
		)
	})
	return err
}

// ResetMetricsForTesting clears instruments so a test can install its own meter.
func ResetMetricsForTesting() {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	loginAttemptsTotal = nil
	challengesIssuedTotal = nil
	challengesPurgedTotal = nil
	refreshAttemptsTotal = nil
	bearerChecksTotal = nil
	metricsOnce = sync.Once{}
}

func RecordLoginAttempt(ctx context.Context, result string) {
	if loginAttemptsTotal != nil {
		loginAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
}

func RecordChallengeIssued(ctx context.Context, synthetic bool) {
	if challengesIssuedTotal != nil {
		challengesIssuedTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("synthetic", synthetic)))
	}
}

func RecordChallengesPurged(ctx context.Context, n int64) {
	if challengesPurgedTotal != nil && n > 0 {
		challengesPurgedTotal.Add(ctx, n)
	}
}

func RecordRefreshAttempt(ctx context.Context, result string) {
	if refreshAttemptsTotal != nil {
		refreshAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
}

func RecordBearerCheck(ctx context.Context, result string) {
	if bearerChecksTotal != nil {
		bearerChecksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
}
