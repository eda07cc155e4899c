package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Recording session metrics
	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsReaped  prometheus.Counter
	StepsCaptured   prometheus.Counter
	EventsTotal     *prometheus.CounterVec

	// Listener metrics
	ListenersActive prometheus.Gauge
	ListenerDrops   prometheus.Counter

	// Proxy metrics
	ProxyRequests    *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	RewrittenBytes   prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests  int64
	TotalErrors    int64
	ActiveSessions int64
	StepsCaptured  int64
	TotalDuration  float64 // sum of all request durations
	RequestCount   int64   // count for averaging
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otw_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "otw_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "otw_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "otw_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Recording session metrics
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "otw_sessions_active",
				Help: "Number of live recording sessions",
			},
		),
		SessionsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "otw_sessions_created_total",
				Help: "Total number of recording sessions created",
			},
		),
		SessionsReaped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "otw_sessions_reaped_total",
				Help: "Total number of idle sessions garbage-collected",
			},
		),
		StepsCaptured: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "otw_steps_captured_total",
				Help: "Total number of recorded steps across all sessions",
			},
		),
		EventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otw_events_total",
				Help: "Total number of recorder events received",
			},
			[]string{"type"},
		),

		// Listener metrics
		ListenersActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "otw_listeners_active",
				Help: "Number of open dashboard listener streams",
			},
		),
		ListenerDrops: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "otw_listener_drops_total",
				Help: "Total number of listeners evicted for falling behind",
			},
		),

		// Proxy metrics
		ProxyRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otw_proxy_requests_total",
				Help: "Total number of proxied requests",
			},
			[]string{"kind"},
		),
		UpstreamDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "otw_proxy_upstream_duration_seconds",
				Help:    "Upstream fetch duration in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
			},
			[]string{"kind"},
		),
		RewrittenBytes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "otw_proxy_rewritten_bytes_total",
				Help: "Total bytes of HTML rewritten and served",
			},
		),

		// WebSocket metrics
		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "otw_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "otw_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "otw_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordProxyRequest records one proxied request by outcome kind
// (html, passthrough, redirect, error).
func (m *Metrics) RecordProxyRequest(kind string, upstream time.Duration) {
	m.ProxyRequests.WithLabelValues(kind).Inc()
	m.UpstreamDuration.WithLabelValues(kind).Observe(upstream.Seconds())
}

// AddRewrittenBytes accounts for served rewritten HTML
func (m *Metrics) AddRewrittenBytes(n int) {
	m.RewrittenBytes.Add(float64(n))
}

// RecordEvent records one recorder event by type
func (m *Metrics) RecordEvent(eventType string) {
	m.EventsTotal.WithLabelValues(eventType).Inc()
}

// IncStepsCaptured increments the captured step counter
func (m *Metrics) IncStepsCaptured() {
	m.StepsCaptured.Inc()
	m.mu.Lock()
	m.snapshot.StepsCaptured++
	m.mu.Unlock()
}

// SetSessionsActive sets the number of live sessions
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveSessions = int64(count)
	m.mu.Unlock()
}

// IncSessionsCreated increments the sessions created counter
func (m *Metrics) IncSessionsCreated() {
	m.SessionsCreated.Inc()
}

// AddSessionsReaped adds to the reaped session counter
func (m *Metrics) AddSessionsReaped(n int) {
	m.SessionsReaped.Add(float64(n))
}

// IncListeners increments active listener streams
func (m *Metrics) IncListeners() {
	m.ListenersActive.Inc()
}

// DecListeners decrements active listener streams
func (m *Metrics) DecListeners() {
	m.ListenersActive.Dec()
}

// IncListenerDrops increments the evicted listener counter
func (m *Metrics) IncListenerDrops() {
	m.ListenerDrops.Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}
