package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentalscope",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rentalscope",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10, 30},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rentalscope",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Viewport resolution
	ViewportResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentalscope",
		Subsystem: "viewport",
		Name:      "resolutions_total",
		Help:      "Successful viewport resolutions by winning tier",
	}, []string{"strategy"})

	ViewportTierErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentalscope",
		Subsystem: "viewport",
		Name:      "tier_errors_total",
		Help:      "Search errors per tier, including swallowed primary-tier errors",
	}, []string{"tier"})

	// Detail fetching
	DetailFetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentalscope",
		Subsystem: "detail",
		Name:      "fetch_attempts_total",
		Help:      "Listing detail fetch attempts by outcome",
	}, []string{"outcome"})

	DetailFetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rentalscope",
		Subsystem: "detail",
		Name:      "fetch_retries_total",
		Help:      "Listing detail fetches retried after a transient error",
	})

	BatchFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rentalscope",
		Subsystem: "detail",
		Name:      "batch_duration_seconds",
		Help:      "Duration of a full listing detail batch",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentalscope",
		Subsystem: "jobs",
		Name:      "runs_total",
		Help:      "Asynchronous listings jobs by terminal status",
	}, []string{"status"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rentalscope",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rentalscope",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rentalscope",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rentalscope",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// PoolStat is the subset of pgxpool.Stat read by UpdateDBPoolMetrics.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics copies pool gauges from a pgxpool.Stat.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
}
