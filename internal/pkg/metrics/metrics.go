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
		Namespace: "ridepass",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ridepass",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ridepass",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Rider session metrics
	AccessVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ridepass",
		Subsystem: "access",
		Name:      "verdicts_total",
		Help:      "Location gate verdicts by outcome",
	}, []string{"verdict"})

	GeolocationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ridepass",
		Subsystem: "access",
		Name:      "geolocation_duration_seconds",
		Help:      "Latency of rider geolocation lookups",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	ScreenTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ridepass",
		Subsystem: "screen",
		Name:      "transitions_total",
		Help:      "Screen transitions by destination screen",
	}, []string{"to"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ridepass",
		Subsystem: "session",
		Name:      "active",
		Help:      "Current number of rider sessions",
	})

	FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ridepass",
		Subsystem: "feed",
		Name:      "fetches_total",
		Help:      "Live feed snapshot fetches by collection and result",
	}, []string{"collection", "result"})

	FeedSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ridepass",
		Subsystem: "feed",
		Name:      "subscriptions_active",
		Help:      "Open provider change subscriptions",
	})

	SimulatorWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ridepass",
		Subsystem: "simulator",
		Name:      "writes_total",
		Help:      "Simulated provider location writes by result",
	}, []string{"result"})

	SimulatorsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ridepass",
		Subsystem: "simulator",
		Name:      "running",
		Help:      "Movement simulators currently ticking",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ridepass",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ridepass",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ridepass",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ridepass",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ridepass",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ridepass",
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

// PoolStat is the subset of pgxpool.Stat reported as metrics.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics updates database pool gauges from pgx pool stats.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
}
