package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the bot gateway
type Metrics struct {
	// Session metrics
	ActiveSessions  prometheus.Gauge
	SessionsCreated prometheus.Counter

	// Dispatch metrics
	MessagesSent   *prometheus.CounterVec
	SendFailures   *prometheus.CounterVec
	SendDuration   prometheus.Histogram
	UnknownTenants prometheus.Counter

	// Media metrics
	UploadsReceived    prometheus.Counter
	ConversionsTotal   prometheus.Counter
	ConversionFailures prometheus.Counter
	ConversionDuration prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wagw_active_sessions",
			Help: "Current number of registered bot sessions",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wagw_sessions_created_total",
			Help: "Total number of bot sessions created",
		}),

		// Dispatch metrics
		MessagesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wagw_messages_sent_total",
			Help: "Total number of outbound messages sent",
		}, []string{"bot", "kind"}),
		SendFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wagw_send_failures_total",
			Help: "Total number of failed outbound sends",
		}, []string{"bot", "kind"}),
		SendDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wagw_send_duration_seconds",
			Help:    "Duration of outbound send calls",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		}),
		UnknownTenants: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wagw_unknown_tenant_requests_total",
			Help: "Total number of requests naming an unregistered bot",
		}),

		// Media metrics
		UploadsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wagw_uploads_received_total",
			Help: "Total number of uploaded files",
		}),
		ConversionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wagw_conversions_total",
			Help: "Total number of audio conversions attempted",
		}),
		ConversionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wagw_conversion_failures_total",
			Help: "Total number of failed audio conversions",
		}),
		ConversionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wagw_conversion_duration_seconds",
			Help:    "Duration of audio conversions",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wagw_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wagw_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wagw_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordSessionCreated increments the sessions created counter and the gauge
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
	m.ActiveSessions.Inc()
}

// SetActiveSessions sets the current number of registered sessions
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordMessageSent records a successful outbound send
func (m *Metrics) RecordMessageSent(bot, kind string, durationSeconds float64) {
	m.MessagesSent.WithLabelValues(bot, kind).Inc()
	m.SendDuration.Observe(durationSeconds)
}

// RecordSendFailure records a failed outbound send
func (m *Metrics) RecordSendFailure(bot, kind string) {
	m.SendFailures.WithLabelValues(bot, kind).Inc()
}

// RecordUnknownTenant increments the unknown-tenant counter
func (m *Metrics) RecordUnknownTenant() {
	m.UnknownTenants.Inc()
}

// RecordUpload increments the uploads counter
func (m *Metrics) RecordUpload() {
	m.UploadsReceived.Inc()
}

// RecordConversion records an audio conversion attempt
func (m *Metrics) RecordConversion(durationSeconds float64, failed bool) {
	m.ConversionsTotal.Inc()
	m.ConversionDuration.Observe(durationSeconds)
	if failed {
		m.ConversionFailures.Inc()
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
