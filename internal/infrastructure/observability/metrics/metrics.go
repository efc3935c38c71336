package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dreschagin/cleanroom-telemetry/internal/application/port"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

const namespace = "telemetry"

// Metrics bundles prometheus collectors used by the telemetry service.
// It implements port.TelemetryMetrics.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
	AuthFailures       prometheus.Counter
	RateLimitDropped   prometheus.Counter

	PollsTotal         *prometheus.CounterVec
	RefreshesTotal     *prometheus.CounterVec
	RefreshDurationSec prometheus.Histogram
	RefreshPoints      prometheus.Gauge
	AlertsTotal        *prometheus.CounterVec
	WindowSize         *prometheus.GaugeVec
	DroppedReadings    *prometheus.CounterVec
}

var _ port.TelemetryMetrics = (*Metrics)(nil)

// New registers all collectors in registry. A nil registry gets a fresh one
// with Go runtime and process collectors.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: registry,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Total number of auth failures.",
		}),
		RateLimitDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_dropped_total",
			Help:      "Total number of requests dropped by rate limiter.",
		}),
		PollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Total number of latest-reading polls by result.",
		}, []string{"result"}),
		RefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Total number of full history refreshes by result.",
		}, []string{"result"}),
		RefreshDurationSec: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Full history refresh duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		RefreshPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_points",
			Help:      "Number of points loaded by the last successful refresh.",
		}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Total number of threshold violations.",
		}, []string{"metric", "severity"}),
		WindowSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_size",
			Help:      "Current number of points in the metric window.",
		}, []string{"metric"}),
		DroppedReadings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_readings_total",
			Help:      "Total number of non-finite readings dropped before ingestion.",
		}, []string{"metric"}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDurationSec,
		m.AuthFailures,
		m.RateLimitDropped,
		m.PollsTotal,
		m.RefreshesTotal,
		m.RefreshDurationSec,
		m.RefreshPoints,
		m.AlertsTotal,
		m.WindowSize,
		m.DroppedReadings,
	)

	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObservePoll(accepted bool, err error) {
	switch {
	case err != nil:
		m.PollsTotal.WithLabelValues("error").Inc()
	case accepted:
		m.PollsTotal.WithLabelValues("accepted").Inc()
	default:
		m.PollsTotal.WithLabelValues("skipped").Inc()
	}
}

func (m *Metrics) ObserveRefresh(duration time.Duration, points int, err error) {
	m.RefreshDurationSec.Observe(duration.Seconds())
	if err != nil {
		m.RefreshesTotal.WithLabelValues("error").Inc()
		return
	}
	m.RefreshesTotal.WithLabelValues("ok").Inc()
	m.RefreshPoints.Set(float64(points))
}

func (m *Metrics) ObserveAlert(metric valueobject.MetricName, severity valueobject.Severity) {
	m.AlertsTotal.WithLabelValues(metric.String(), severity.String()).Inc()
}

func (m *Metrics) SetWindowSize(metric valueobject.MetricName, size int) {
	m.WindowSize.WithLabelValues(metric.String()).Set(float64(size))
}

func (m *Metrics) ObserveDroppedReading(metric valueobject.MetricName) {
	m.DroppedReadings.WithLabelValues(metric.String()).Inc()
}

func (m *Metrics) ObserveAuthFailure() {
	m.AuthFailures.Inc()
}

func (m *Metrics) ObserveRateLimited() {
	m.RateLimitDropped.Inc()
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := normalizeRoute(r.URL.Path)
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())
	})
}

// normalizeRoute keeps label cardinality bounded.
func normalizeRoute(path string) string {
	switch path {
	case "/ws", "/healthz", "/readyz", "/metrics",
		"/api/latest", "/api/recent", "/api/hourly-avg",
		"/api/v1/readings", "/api/v1/series", "/api/v1/settings",
		"/api/v1/realtime", "/api/v1/refresh":
		return path
	}

	switch {
	case strings.HasPrefix(path, "/api/v1/"):
		return "/api/v1/*"
	case strings.HasPrefix(path, "/api/"):
		return "/api/*"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Hijack passes websocket upgrades through wrapped ResponseWriter.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

// Flush keeps streaming behavior for handlers that require it.
func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
