package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/infrastructure/observability/metrics"
	"github.com/dreschagin/cleanroom-telemetry/internal/interfaces/http/handler"
	"github.com/dreschagin/cleanroom-telemetry/internal/interfaces/http/middleware"
	"github.com/dreschagin/cleanroom-telemetry/pkg/config"
	"github.com/dreschagin/cleanroom-telemetry/pkg/logger"
)

// readinessTimeout ограничение на все проверки /readyz
const readinessTimeout = 2 * time.Second

// ReadinessCheck проверка зависимости для /readyz (БД, Redis, источник)
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Router настраивает маршруты приложения
type Router struct {
	mux                 *http.ServeMux
	readingsAPIHandler  *handler.ReadingsAPIHandler
	telemetryAPIHandler *handler.TelemetryAPIHandler
	websocketHandler    *handler.WebSocketHandler
	metrics             *metrics.Metrics
	rateLimiter         *middleware.IPRateLimiter
	readiness           []ReadinessCheck
	security            config.SecurityConfig
	metricsPath         string
	logger              *logger.Logger
}

// NewRouter создает новый router; metrics и rateLimiter могут быть nil
func NewRouter(
	readingsAPIHandler *handler.ReadingsAPIHandler,
	telemetryAPIHandler *handler.TelemetryAPIHandler,
	websocketHandler *handler.WebSocketHandler,
	metrics *metrics.Metrics,
	rateLimiter *middleware.IPRateLimiter,
	readiness []ReadinessCheck,
	security config.SecurityConfig,
	metricsPath string,
	logger *logger.Logger,
) *Router {
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	return &Router{
		mux:                 http.NewServeMux(),
		readingsAPIHandler:  readingsAPIHandler,
		telemetryAPIHandler: telemetryAPIHandler,
		websocketHandler:    websocketHandler,
		metrics:             metrics,
		rateLimiter:         rateLimiter,
		readiness:           readiness,
		security:            security,
		metricsPath:         metricsPath,
		logger:              logger,
	}
}

// Setup настраивает все маршруты
func (rt *Router) Setup() http.Handler {
	// Health endpoints are intentionally unauthenticated for probes.
	rt.mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	rt.mux.HandleFunc("/readyz", rt.ready)

	if rt.metrics != nil {
		rt.mux.Handle(rt.metricsPath, rt.metrics.Handler())
	}

	var authObserver middleware.AuthObserver
	var rateObserver middleware.RateLimitObserver
	if rt.metrics != nil {
		authObserver = rt.metrics
		rateObserver = rt.metrics
	}

	authMiddleware := middleware.Auth(middleware.AuthConfig{
		Enabled:     rt.security.AuthEnabled,
		BearerToken: rt.security.AuthToken,
	}, authObserver, rt.logger)

	protect := func(h http.HandlerFunc) http.Handler {
		var wrapped http.Handler = authMiddleware(h)
		if rt.rateLimiter != nil {
			wrapped = middleware.RateLimit(rt.rateLimiter, rateObserver)(wrapped)
		}
		return wrapped
	}

	// WebSocket
	rt.mux.Handle("/ws", authMiddleware(http.HandlerFunc(rt.websocketHandler.HandleConnection)))

	// Наблюдения датчиков
	rt.mux.Handle("/api/latest", protect(rt.readingsAPIHandler.Latest))
	rt.mux.Handle("/api/recent", protect(rt.readingsAPIHandler.Recent))
	rt.mux.Handle("/api/hourly-avg", protect(rt.readingsAPIHandler.HourlyAverages))
	rt.mux.Handle("/api/v1/readings", protect(rt.readingsAPIHandler.Record))

	// Состояние сессии
	rt.mux.Handle("/api/v1/series", protect(rt.telemetryAPIHandler.Series))
	rt.mux.Handle("/api/v1/settings", protect(rt.telemetryAPIHandler.Settings))
	rt.mux.Handle("/api/v1/realtime", protect(rt.telemetryAPIHandler.Realtime))
	rt.mux.Handle("/api/v1/refresh", protect(rt.telemetryAPIHandler.Refresh))

	// Применяем middleware
	var handler http.Handler = rt.mux
	handler = middleware.Compression(handler)
	handler = middleware.Logger(rt.logger)(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = middleware.Recovery(rt.logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}

func (rt *Router) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	failed := make(map[string]string)
	for _, check := range rt.readiness {
		if err := check.Check(ctx); err != nil {
			failed[check.Name] = err.Error()
		}
	}

	if len(failed) > 0 {
		rt.logger.Warn("Readiness check failed", "failed", len(failed))
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not ready",
			"failed": failed,
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
