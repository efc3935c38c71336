package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

func TestMetrics_TelemetryCollectors(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObservePoll(true, nil)
	m.ObservePoll(false, nil)
	m.ObservePoll(false, errors.New("db down"))
	m.ObserveRefresh(120*time.Millisecond, 200, nil)
	m.ObserveRefresh(time.Second, 0, errors.New("timeout"))
	m.ObserveAlert(valueobject.CO2, valueobject.SeverityWarning)
	m.SetWindowSize(valueobject.Humidity, 42)
	m.ObserveDroppedReading(valueobject.PM25)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollsTotal.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollsTotal.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollsTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshesTotal.WithLabelValues("error")))
	assert.Equal(t, 200.0, testutil.ToFloat64(m.RefreshPoints))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsTotal.WithLabelValues("co2", "warning")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.WindowSize.WithLabelValues("humidity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedReadings.WithLabelValues("pm25")))
}

func TestMetrics_Middleware(t *testing.T) {
	m := New(prometheus.NewRegistry())

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/series" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/api/latest", "/api/v1/series", "/api/v1/unknown/123", "/favicon.ico"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/latest", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/v1/series", "GET", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/v1/*", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("other", "GET", "200")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New(nil)
	m.ObserveAuthFailure()
	m.ObserveRateLimited()

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, "telemetry_auth_failures_total 1"))
	assert.True(t, strings.Contains(text, "telemetry_ratelimit_dropped_total 1"))
	assert.True(t, strings.Contains(text, "go_goroutines"))
}

func TestNormalizeRoute(t *testing.T) {
	tests := map[string]string{
		"/ws":              "/ws",
		"/api/hourly-avg":  "/api/hourly-avg",
		"/api/v1/settings": "/api/v1/settings",
		"/api/v1/other":    "/api/v1/*",
		"/api/foo":         "/api/*",
		"/index.html":      "other",
	}

	for path, want := range tests {
		assert.Equal(t, want, normalizeRoute(path), path)
	}
}
