package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quakealert"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Gateway metrics
	RateLimited  *prometheus.CounterVec
	AuthFailures *prometheus.CounterVec

	// Dependency metrics
	DependencyCalls    *prometheus.CounterVec
	DependencyDuration *prometheus.HistogramVec

	// Notification metrics
	NotificationsDelivered *prometheus.CounterVec
	NotificationBatches    *prometheus.CounterVec

	// Audit metrics
	AuditWrites *prometheus.CounterVec
}

// NewRegistry creates a registry with the Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewMetrics creates the collectors and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	startTime := time.Now()

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Backend uptime in seconds",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_size_bytes",
				Help:      "HTTP request size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "route"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "route"},
		),

		RateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by a rate limit policy",
			},
			[]string{"policy"},
		),
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Requests blocked by the identity gate",
			},
			[]string{"reason"},
		),

		DependencyCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dependency_calls_total",
				Help:      "Calls to the identity provider and data store",
			},
			[]string{"dependency", "operation", "status"},
		),
		DependencyDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dependency_duration_seconds",
				Help:      "Dependency call duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"dependency", "operation"},
		),

		NotificationsDelivered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_delivered_total",
				Help:      "Notification rows inserted",
			},
			[]string{"target"},
		),
		NotificationBatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_batches_total",
				Help:      "Broadcast batch inserts by outcome",
			},
			[]string{"result"},
		),

		AuditWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_writes_total",
				Help:      "Request audit writes by outcome",
			},
			[]string{"result"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, route).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, route).Observe(float64(respSize))
}

// RecordRateLimited counts a rejection by the named policy
func (m *Metrics) RecordRateLimited(policy string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(policy).Inc()
}

// RecordAuthFailure counts a request blocked by the identity gate
func (m *Metrics) RecordAuthFailure(reason string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(reason).Inc()
}

// RecordDependencyCall records a call to an external dependency
func (m *Metrics) RecordDependencyCall(dependency, operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DependencyCalls.WithLabelValues(dependency, operation, status).Inc()
	m.DependencyDuration.WithLabelValues(dependency, operation).Observe(duration.Seconds())
}

// RecordNotifications counts inserted notification rows
func (m *Metrics) RecordNotifications(target string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.NotificationsDelivered.WithLabelValues(target).Add(float64(n))
}

// RecordNotificationBatch counts a broadcast batch insert
func (m *Metrics) RecordNotificationBatch(result string) {
	if m == nil {
		return
	}
	m.NotificationBatches.WithLabelValues(result).Inc()
}

// RecordAuditWrite counts an audit write outcome
func (m *Metrics) RecordAuditWrite(result string) {
	if m == nil {
		return
	}
	m.AuditWrites.WithLabelValues(result).Inc()
}
