package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	monitoringmetrics "github.com/sigauth/sigauth/engine/infra/monitoring/metrics"
	"github.com/sigauth/sigauth/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	httpRequestsTotal    metric.Int64Counter
	httpRequestDuration  metric.Float64Histogram
	httpRequestsInFlight metric.Int64UpDownCounter
	initOnce             sync.Once
	initMutex            sync.Mutex
)

func initMetrics(meter metric.Meter) {
	if meter == nil {
		return
	}
	initOnce.Do(func() {
		var err error
		httpRequestsTotal, err = meter.Int64Counter(
			monitoringmetrics.MetricNameWithSubsystem("http", "requests_total"),
			metric.WithDescription("Total HTTP requests"),
		)
		if err != nil {
			logger.Error("Failed to create http requests total counter", "error", err)
		}
		httpRequestDuration, err = meter.Float64Histogram(
			monitoringmetrics.MetricNameWithSubsystem("http", "request_duration_seconds"),
			metric.WithDescription("HTTP request latency"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(monitoringmetrics.HTTPDurationBuckets...),
		)
		if err != nil {
			logger.Error("Failed to create http request duration histogram", "error", err)
		}
		httpRequestsInFlight, err = meter.Int64UpDownCounter(
			monitoringmetrics.MetricNameWithSubsystem("http", "requests_in_flight"),
			metric.WithDescription("Currently active HTTP requests"),
		)
		if err != nil {
			logger.Error("Failed to create http requests in flight counter", "error", err)
		}
	})
}

// ResetMetricsForTesting resets the metrics initialization state for testing
func ResetMetricsForTesting() {
	initMutex.Lock()
	defer initMutex.Unlock()
	httpRequestsTotal = nil
	httpRequestDuration = nil
	httpRequestsInFlight = nil
	initOnce = sync.Once{}
}

// HTTPMetrics returns a Gin middleware that collects HTTP metrics.
// Paths are labelled by route template so ids never become label values.
func HTTPMetrics(meter metric.Meter) gin.HandlerFunc {
	initMetrics(meter)
	return func(c *gin.Context) {
		if httpRequestsTotal == nil || httpRequestDuration == nil || httpRequestsInFlight == nil {
			c.Next()
			return
		}
		start := time.Now()
		ctx := c.Request.Context()
		httpRequestsInFlight.Add(ctx, 1)
		defer httpRequestsInFlight.Add(ctx, -1)
		c.Next()
		recordMetrics(c, start)
	}
}

func recordMetrics(c *gin.Context, start time.Time) {
	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	attrs := metric.WithAttributes(
		attribute.String("method", c.Request.Method),
		attribute.String("path", path),
		attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
	)
	httpRequestsTotal.Add(c.Request.Context(), 1, attrs)
	httpRequestDuration.Record(c.Request.Context(), time.Since(start).Seconds(), attrs)
}
