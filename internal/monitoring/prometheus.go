// Package monitoring exposes Prometheus metrics for the HTTP surface, the
// stream sessions and the backing stores.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"tradestream/internal/database"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry prometheus.Gatherer

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec
	apiErrorsTotal       *prometheus.CounterVec

	activeConnections      prometheus.Gauge
	streamMessagesSent     prometheus.Counter
	streamMessagesDropped  prometheus.Counter
	streamSessionsRejected prometheus.Counter

	authFailures     *prometheus.CounterVec
	dependencyHealth *prometheus.GaugeVec
	dbPoolInUse      prometheus.Gauge
	dbPoolIdle       prometheus.Gauge
	dbPoolWaitCount  prometheus.Gauge
}

// NewMetrics creates metrics and registers them with reg. A nil reg gets a
// fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: reg,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
			[]string{"method", "endpoint"},
		),
		apiErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_errors_total",
				Help: "Total number of API errors",
			},
			[]string{"endpoint", "error_type"},
		),
		activeConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "websocket_connections_active",
				Help: "Number of active WebSocket stream sessions",
			},
		),
		streamMessagesSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stream_messages_sent_total",
				Help: "Total number of stream messages written to clients",
			},
		),
		streamMessagesDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stream_messages_dropped_total",
				Help: "Total number of stream messages evicted from full queues",
			},
		),
		streamSessionsRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stream_sessions_rejected_total",
				Help: "Total number of stream connections closed for failed authentication",
			},
		),
		authFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_failures_total",
				Help: "Total number of authentication failures by kind",
			},
			[]string{"kind"},
		),
		dependencyHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dependency_up",
				Help: "Whether a backing dependency answered its last health probe (1) or not (0)",
			},
			[]string{"dependency"},
		),
		dbPoolInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "db_pool_connections_in_use",
			Help: "Database connections currently in use",
		}),
		dbPoolIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "db_pool_connections_idle",
			Help: "Idle database connections",
		}),
		dbPoolWaitCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "db_pool_wait_count",
			Help: "Total number of connections waited for",
		}),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpRequestsInFlight,
		m.apiErrorsTotal,
		m.activeConnections,
		m.streamMessagesSent,
		m.streamMessagesDropped,
		m.streamSessionsRejected,
		m.authFailures,
		m.dependencyHealth,
		m.dbPoolInUse,
		m.dbPoolIdle,
		m.dbPoolWaitCount,
	)

	return m
}

// MetricsMiddleware creates a Prometheus metrics middleware
func (m *Metrics) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		m.httpRequestsInFlight.WithLabelValues(c.Request.Method, path).Inc()
		defer m.httpRequestsInFlight.WithLabelValues(c.Request.Method, path).Dec()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)

		if c.Writer.Status() >= 400 {
			errorType := "client_error"
			if c.Writer.Status() >= 500 {
				errorType = "server_error"
			}
			m.apiErrorsTotal.WithLabelValues(path, errorType).Inc()
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SessionOpened and SessionClosed track live stream sessions.
func (m *Metrics) SessionOpened() { m.activeConnections.Inc() }

// SessionClosed decrements the live session gauge.
func (m *Metrics) SessionClosed() { m.activeConnections.Dec() }

// SessionRejected counts a stream connection refused at authentication.
func (m *Metrics) SessionRejected() { m.streamSessionsRejected.Inc() }

// MessageSent counts one delivered stream message.
func (m *Metrics) MessageSent() { m.streamMessagesSent.Inc() }

// MessageDropped counts one evicted stream message.
func (m *Metrics) MessageDropped() { m.streamMessagesDropped.Inc() }

// RecordAuthFailure counts an authentication failure of the given kind.
func (m *Metrics) RecordAuthFailure(kind string) {
	m.authFailures.WithLabelValues(kind).Inc()
}

// SetDependencyHealth records the outcome of a health probe.
func (m *Metrics) SetDependencyHealth(name string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.dependencyHealth.WithLabelValues(name).Set(v)
}

// RecordPoolStats publishes database pool statistics.
func (m *Metrics) RecordPoolStats(stats *database.PoolStats) {
	m.dbPoolInUse.Set(float64(stats.InUse))
	m.dbPoolIdle.Set(float64(stats.Idle))
	m.dbPoolWaitCount.Set(float64(stats.WaitCount))
}
