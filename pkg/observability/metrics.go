// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the SSE MCP server.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the metrics provider
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Namespace is the Prometheus namespace (default: sse_mcp)
	Namespace string

	// DurationBuckets are the histogram buckets for request latency in
	// milliseconds
	DurationBuckets []float64
}

// Metrics holds the bridge's Prometheus collectors. All collectors live in
// a dedicated registry so independent instances never collide.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestDuration *prometheus.HistogramVec
	httpRequestTotal    *prometheus.CounterVec

	activeSessions  prometheus.Gauge
	sessionsCreated prometheus.Counter
	sessionsRemoved *prometheus.CounterVec

	messagesIngested  *prometheus.CounterVec
	messagesDelivered prometheus.Counter
	channelFullTotal  prometheus.Counter
	streamWriteErrors prometheus.Counter
	keepAlivesTotal   prometheus.Counter
}

// Session removal reasons reported by SessionClosed
const (
	RemoveReasonDisconnect   = "disconnect"
	RemoveReasonWriteFailure = "write_failure"
	RemoveReasonIdle         = "idle"
	RemoveReasonShutdown     = "shutdown"
)

// NewMetrics creates and registers the bridge's metric collectors
func NewMetrics(config MetricsConfig) *Metrics {
	if config.Namespace == "" {
		config.Namespace = "sse_mcp"
	}
	if config.DurationBuckets == nil {
		// Milliseconds
		config.DurationBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}
	}

	constLabels := prometheus.Labels{
		"service":     config.ServiceName,
		"version":     config.ServiceVersion,
		"environment": config.Environment,
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "http_request_duration_milliseconds",
			Help:        "Duration of HTTP requests in milliseconds",
			Buckets:     config.DurationBuckets,
			ConstLabels: constLabels,
		},
		[]string{"path", "method", "status"},
	)

	m.httpRequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "http_request_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: constLabels,
		},
		[]string{"path", "method", "status"},
	)

	m.activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   config.Namespace,
		Name:        "active_sessions",
		Help:        "Number of currently registered sessions",
		ConstLabels: constLabels,
	})

	m.sessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Name:        "sessions_created_total",
		Help:        "Total number of sessions created",
		ConstLabels: constLabels,
	})

	m.sessionsRemoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "sessions_removed_total",
			Help:        "Total number of sessions removed, by reason",
			ConstLabels: constLabels,
		},
		[]string{"reason"},
	)

	m.messagesIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "messages_ingested_total",
			Help:        "Total number of messages received on the ingestion endpoint, by outcome",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)

	m.messagesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Name:        "messages_delivered_total",
		Help:        "Total number of messages written to SSE streams",
		ConstLabels: constLabels,
	})

	m.channelFullTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Name:        "channel_full_total",
		Help:        "Total number of enqueue attempts rejected by a full outbound channel",
		ConstLabels: constLabels,
	})

	m.streamWriteErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Name:        "stream_write_failures_total",
		Help:        "Total number of failed writes to SSE streams",
		ConstLabels: constLabels,
	})

	m.keepAlivesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Name:        "keepalives_total",
		Help:        "Total number of keep-alive frames sent",
		ConstLabels: constLabels,
	})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestDuration,
		m.httpRequestTotal,
		m.activeSessions,
		m.sessionsCreated,
		m.sessionsRemoved,
		m.messagesIngested,
		m.messagesDelivered,
		m.channelFullTotal,
		m.streamWriteErrors,
		m.keepAlivesTotal,
	)

	return m
}

// Handler returns the HTTP handler serving this instance's metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records one completed HTTP request
func (m *Metrics) ObserveHTTPRequest(path, method, status string, duration time.Duration) {
	ms := float64(duration.Milliseconds())
	m.httpRequestDuration.WithLabelValues(path, method, status).Observe(ms)
	m.httpRequestTotal.WithLabelValues(path, method, status).Inc()
}

// SessionOpened records a new session
func (m *Metrics) SessionOpened() {
	m.sessionsCreated.Inc()
	m.activeSessions.Inc()
}

// SessionClosed records a removed session with the reason for removal
func (m *Metrics) SessionClosed(reason string) {
	m.sessionsRemoved.WithLabelValues(reason).Inc()
	m.activeSessions.Dec()
}

// MessageIngested records one POST to the ingestion endpoint by outcome
// ("accepted", "rejected", "not_found", "malformed")
func (m *Metrics) MessageIngested(status string) {
	m.messagesIngested.WithLabelValues(status).Inc()
}

// MessageDelivered records one payload written to a stream
func (m *Metrics) MessageDelivered() {
	m.messagesDelivered.Inc()
}

// ChannelFull records one rejected enqueue
func (m *Metrics) ChannelFull() {
	m.channelFullTotal.Inc()
}

// StreamWriteFailure records one failed stream write
func (m *Metrics) StreamWriteFailure() {
	m.streamWriteErrors.Inc()
}

// KeepAliveSent records one keep-alive frame
func (m *Metrics) KeepAliveSent() {
	m.keepAlivesTotal.Inc()
}
