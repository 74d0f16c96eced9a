package monitoring

import (
	"context"
	"runtime"
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestSystem(t *testing.T, startedAt time.Time) (*Service, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	system, err := newSystemMetrics(provider.Meter("test"), startedAt)
	require.NoError(t, err)
	return &Service{system: system, initialized: true}, reader
}

func collectMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) (metricdata.Metrics, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func attrMap(dp metricdata.DataPoint[int64]) map[string]string {
	out := make(map[string]string)
	for _, kv := range dp.Attributes.ToSlice() {
		out[string(kv.Key)] = kv.Value.AsString()
	}
	return out
}

func TestService_RecordDeployment(t *testing.T) {
	t.Run("Should label build_info with the chosen backends", func(t *testing.T) {
		svc, reader := newTestSystem(t, time.Now())
		svc.RecordDeployment(context.Background(), Deployment{
			StoreDriver:    "postgres",
			RateLimitStore: "redis",
			UserCache:      "redis",
		})
		m, ok := collectMetric(t, reader, "sigauth_build_info")
		require.True(t, ok)
		gauge, ok := m.Data.(metricdata.Gauge[int64])
		require.True(t, ok)
		require.Len(t, gauge.DataPoints, 1)
		assert.Equal(t, int64(1), gauge.DataPoints[0].Value)
		labels := attrMap(gauge.DataPoints[0])
		assert.Equal(t, "postgres", labels["store_driver"])
		assert.Equal(t, "redis", labels["ratelimit_store"])
		assert.Equal(t, "redis", labels["user_cache"])
		assert.Equal(t, runtime.Version(), labels["go_version"])
		assert.NotEmpty(t, labels["version"])
		assert.NotEmpty(t, labels["commit"])
	})

	t.Run("Should report missing backends as none", func(t *testing.T) {
		svc, reader := newTestSystem(t, time.Now())
		svc.RecordDeployment(context.Background(), Deployment{StoreDriver: "sqlite", RateLimitStore: "memory"})
		m, ok := collectMetric(t, reader, "sigauth_build_info")
		require.True(t, ok)
		gauge := m.Data.(metricdata.Gauge[int64])
		require.Len(t, gauge.DataPoints, 1)
		assert.Equal(t, "none", attrMap(gauge.DataPoints[0])["user_cache"])
	})

	t.Run("Should not publish build_info before the deployment is known", func(t *testing.T) {
		_, reader := newTestSystem(t, time.Now())
		_, ok := collectMetric(t, reader, "sigauth_build_info")
		assert.False(t, ok)
	})

	t.Run("Should be a no-op on a disabled service", func(t *testing.T) {
		svc := newDisabledService(DefaultConfig(), nil)
		assert.NotPanics(t, func() {
			svc.RecordDeployment(context.Background(), Deployment{StoreDriver: "sqlite"})
		})
	})
}

func TestSystemMetrics_Uptime(t *testing.T) {
	t.Run("Should measure from the service start", func(t *testing.T) {
		_, reader := newTestSystem(t, time.Now().Add(-90*time.Second))
		m, ok := collectMetric(t, reader, "sigauth_uptime_seconds")
		require.True(t, ok)
		gauge, ok := m.Data.(metricdata.Gauge[float64])
		require.True(t, ok)
		require.Len(t, gauge.DataPoints, 1)
		assert.GreaterOrEqual(t, gauge.DataPoints[0].Value, float64(90))
		assert.Less(t, gauge.DataPoints[0].Value, float64(120))
	})

	t.Run("Should stop observing once closed", func(t *testing.T) {
		svc, reader := newTestSystem(t, time.Now())
		require.NoError(t, svc.system.close())
		_, ok := collectMetric(t, reader, "sigauth_uptime_seconds")
		assert.False(t, ok)
	})
}

func TestBuildIdentity(t *testing.T) {
	embedded := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main: debug.Module{Version: "v0.4.1"},
			Settings: []debug.BuildSetting{
				{Key: "vcs", Value: "git"},
				{Key: "vcs.revision", Value: "9f2c1ab"},
			},
		}, true
	}
	missing := func() (*debug.BuildInfo, bool) { return nil, false }

	t.Run("Should prefer link-time values", func(t *testing.T) {
		version, commit := buildIdentity("v1.2.0", "abc123", embedded)
		assert.Equal(t, "v1.2.0", version)
		assert.Equal(t, "abc123", commit)
	})

	t.Run("Should fall back to the embedded module info", func(t *testing.T) {
		version, commit := buildIdentity("unknown", "", embedded)
		assert.Equal(t, "v0.4.1", version)
		assert.Equal(t, "9f2c1ab", commit)
	})

	t.Run("Should ignore development builds", func(t *testing.T) {
		devel := func() (*debug.BuildInfo, bool) {
			return &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, true
		}
		version, commit := buildIdentity("unknown", "unknown", devel)
		assert.Equal(t, "unknown", version)
		assert.Equal(t, "unknown", commit)
	})

	t.Run("Should stay unknown without build info", func(t *testing.T) {
		version, commit := buildIdentity("", "", missing)
		assert.Equal(t, "unknown", version)
		assert.Equal(t, "unknown", commit)
	})
}
