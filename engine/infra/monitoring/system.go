package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	monitoringmetrics "github.com/sigauth/sigauth/engine/infra/monitoring/metrics"
	"github.com/sigauth/sigauth/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Set at link time:
//
//	go build -ldflags "-X 'github.com/sigauth/sigauth/engine/infra/monitoring.Version=v1.0.0'"
var (
	Version    = "unknown"
	CommitHash = "unknown"
)

const (
	unknownValue = "unknown"
	noneValue    = "none"
)

// Deployment names the backends a server process was assembled with.
type Deployment struct {
	StoreDriver    string
	RateLimitStore string
	UserCache      string
}

func (d Deployment) attributes(version, commit string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("version", version),
		attribute.String("commit", commit),
		attribute.String("go_version", runtime.Version()),
		attribute.String("store_driver", orNone(d.StoreDriver)),
		attribute.String("ratelimit_store", orNone(d.RateLimitStore)),
		attribute.String("user_cache", orNone(d.UserCache)),
	}
}

func orNone(v string) string {
	if v == "" {
		return noneValue
	}
	return v
}

// buildIdentity prefers link-time values and falls back to what the go tool
// embedded in the binary.
func buildIdentity(version, commit string, read func() (*debug.BuildInfo, bool)) (string, string) {
	if version == "" {
		version = unknownValue
	}
	if commit == "" {
		commit = unknownValue
	}
	info, ok := read()
	if !ok || info == nil {
		return version, commit
	}
	if version == unknownValue && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	if commit == unknownValue {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				commit = setting.Value
				break
			}
		}
	}
	return version, commit
}

type systemMetrics struct {
	buildInfo    metric.Int64Gauge
	registration metric.Registration
	startedAt    time.Time
}

func newSystemMetrics(meter metric.Meter, startedAt time.Time) (*systemMetrics, error) {
	buildInfo, err := meter.Int64Gauge(
		monitoringmetrics.MetricName("build_info"),
		metric.WithDescription("Build and backend facts of the running server (value=1)"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create build info gauge: %w", err)
	}
	uptime, err := meter.Float64ObservableGauge(
		monitoringmetrics.MetricName("uptime_seconds"),
		metric.WithDescription("Seconds since the server started"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create uptime gauge: %w", err)
	}
	m := &systemMetrics{buildInfo: buildInfo, startedAt: startedAt}
	m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveFloat64(uptime, time.Since(m.startedAt).Seconds())
		return nil
	}, uptime)
	if err != nil {
		return nil, fmt.Errorf("failed to register uptime callback: %w", err)
	}
	return m, nil
}

func (m *systemMetrics) close() error {
	if m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}

// RecordDeployment publishes build_info for the assembled server. Call it once,
// after every backend is chosen.
func (s *Service) RecordDeployment(ctx context.Context, d Deployment) {
	if s.system == nil {
		return
	}
	version, commit := buildIdentity(Version, CommitHash, debug.ReadBuildInfo)
	s.system.buildInfo.Record(ctx, 1, metric.WithAttributes(d.attributes(version, commit)...))
	logger.FromContext(ctx).Info("Deployment recorded",
		"version", version,
		"commit", commit,
		"store_driver", orNone(d.StoreDriver),
		"ratelimit_store", orNone(d.RateLimitStore),
		"user_cache", orNone(d.UserCache),
	)
}
