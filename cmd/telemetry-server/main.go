package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Application
	applicationPort "github.com/dreschagin/cleanroom-telemetry/internal/application/port"
	"github.com/dreschagin/cleanroom-telemetry/internal/application/usecase"

	// Domain
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/service"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"

	// Infrastructure
	redisCache "github.com/dreschagin/cleanroom-telemetry/internal/infrastructure/cache/redis"
	natsInfra "github.com/dreschagin/cleanroom-telemetry/internal/infrastructure/messaging/nats"
	wsInfra "github.com/dreschagin/cleanroom-telemetry/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/cleanroom-telemetry/internal/infrastructure/observability/cloudwatch"
	"github.com/dreschagin/cleanroom-telemetry/internal/infrastructure/observability/metrics"
	"github.com/dreschagin/cleanroom-telemetry/internal/infrastructure/persistence/sqlstore"
	"github.com/dreschagin/cleanroom-telemetry/internal/infrastructure/source/httpsource"

	// Interfaces
	httpInterface "github.com/dreschagin/cleanroom-telemetry/internal/interfaces/http"
	"github.com/dreschagin/cleanroom-telemetry/internal/interfaces/http/handler"
	"github.com/dreschagin/cleanroom-telemetry/internal/interfaces/http/middleware"

	// Shared
	"github.com/dreschagin/cleanroom-telemetry/pkg/config"
	"github.com/dreschagin/cleanroom-telemetry/pkg/logger"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

func main() {
	// 1. Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализируем logger (stdout и, при необходимости, CloudWatch Logs)
	var logsPublisher *cloudwatch.LogsPublisher
	if cfg.CloudWatch.LogsEnabled {
		logsPublisher, err = cloudwatch.NewLogsPublisher(context.Background(), cloudwatch.LogsPublisherConfig{
			LogGroupName:    cfg.CloudWatch.LogGroupName,
			LogStreamName:   cfg.CloudWatch.LogStreamName,
			Region:          cfg.CloudWatch.Region,
			Endpoint:        cfg.CloudWatch.Endpoint,
			AccessKeyID:     cfg.CloudWatch.AccessKeyID,
			SecretAccessKey: cfg.CloudWatch.SecretAccessKey,
			FlushInterval:   cfg.CloudWatch.FlushInterval,
			AutoCreate:      true,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize CloudWatch logs publisher: %v\n", err)
			os.Exit(1)
		}
	}

	var logOutput io.Writer = os.Stdout
	if logsPublisher != nil {
		logOutput = io.MultiWriter(os.Stdout, logsPublisher)
	}
	log := logger.NewWithWriter(cfg.LogLevel, logOutput)
	log.Info("Starting Cleanroom Telemetry")
	if logsPublisher == nil {
		log.Warn("CloudWatch logs publishing is disabled")
	}

	location, err := cfg.Telemetry.Location()
	if err != nil {
		log.Error("Invalid timezone", err, "timezone", cfg.Telemetry.Timezone)
		os.Exit(1)
	}

	// 3. Источник наблюдений
	var (
		db         *sql.DB
		sensorRepo *sqlstore.SensorRepository
		source     applicationPort.SensorSource
		readiness  []httpInterface.ReadinessCheck
	)

	switch cfg.Source.Kind {
	case config.SourceHTTP:
		client, initErr := httpsource.NewClient(cfg.Source.URL, cfg.Source.Timeout, location)
		if initErr != nil {
			log.Error("Failed to initialize HTTP source", initErr)
			os.Exit(1)
		}
		source = client
		readiness = append(readiness, httpInterface.ReadinessCheck{Name: "source", Check: client.Ping})
		log.Info("Using HTTP source", "url", cfg.Source.URL)
	default:
		db, err = sql.Open(cfg.Database.Driver, cfg.Database.DSN(location))
		if err != nil {
			log.Error("Failed to connect to database", err)
			os.Exit(1)
		}
		defer db.Close()

		// Настраиваем connection pool
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
		db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

		if err := db.Ping(); err != nil {
			log.Error("Failed to ping database", err)
			os.Exit(1)
		}

		dialect, initErr := sqlstore.DialectFor(cfg.Database.Driver)
		if initErr != nil {
			log.Error("Unsupported database driver", initErr)
			os.Exit(1)
		}
		sensorRepo = sqlstore.NewSensorRepository(db, dialect)

		if cfg.Database.AutoMigrate {
			if err := sensorRepo.EnsureSchema(context.Background()); err != nil {
				log.Error("Failed to ensure schema", err)
				os.Exit(1)
			}
		}

		source = sensorRepo
		readiness = append(readiness, httpInterface.ReadinessCheck{Name: "database", Check: sensorRepo.Ping})
		log.Info("Database connected successfully", "driver", cfg.Database.Driver)
	}

	// 4. Redis: кеш часовых средних и хранилище настроек
	var (
		cache         applicationPort.Cache
		settingsStore applicationPort.SettingsStore
	)
	if cfg.Redis.Enabled {
		client, initErr := redisCache.NewClient(redisCache.Options{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if initErr != nil {
			log.Warn("Failed to connect to Redis, continuing without cache", "error", initErr.Error())
		} else {
			defer client.Close()
			redisCacheImpl := redisCache.NewRedisCache(client, cfg.Redis.CacheTTL, cfg.Redis.KeyPrefix)
			cache = redisCacheImpl
			settingsStore = redisCache.NewSettingsStore(client, cfg.Redis.SettingsKey)
			readiness = append(readiness, httpInterface.ReadinessCheck{Name: "redis", Check: redisCacheImpl.Ping})
			log.Info("Redis connected", "host", cfg.Redis.Host)
		}
	} else {
		log.Warn("Redis is disabled, settings will not survive restarts")
	}

	// 5. NATS: alert'ы для внешних подписчиков
	var (
		eventPublisher applicationPort.EventPublisher
		natsPublisher  *natsInfra.NATSPublisher
	)
	if cfg.NATS.Enabled {
		publisherImpl, initErr := natsInfra.NewNATSPublisher(natsInfra.Options{
			URL:        cfg.NATS.URL,
			StreamName: cfg.NATS.StreamName,
			MaxAge:     cfg.NATS.MaxAge,
		}, log)
		if initErr != nil {
			log.Warn("Failed to connect to NATS, continuing without event publishing", "error", initErr.Error())
		} else {
			natsPublisher = publisherImpl
			eventPublisher = publisherImpl
			log.Info("NATS event publisher initialized", "url", cfg.NATS.URL)
		}
	} else {
		log.Warn("NATS event publishing is disabled")
	}

	// 6. CloudWatch: экспорт исходных и сглаженных показаний
	var (
		metricsPublisher  applicationPort.MetricsPublisher
		cloudwatchMetrics *cloudwatch.MetricsPublisher
	)
	if cfg.CloudWatch.Enabled {
		publisherImpl, initErr := cloudwatch.NewMetricsPublisher(context.Background(),
			cloudwatch.MetricsPublisherConfig{
				Namespace:         cfg.CloudWatch.Namespace,
				Region:            cfg.CloudWatch.Region,
				Endpoint:          cfg.CloudWatch.Endpoint,
				AccessKeyID:       cfg.CloudWatch.AccessKeyID,
				SecretAccessKey:   cfg.CloudWatch.SecretAccessKey,
				DefaultDimensions: map[string]string{"Room": cfg.CloudWatch.Room},
				FlushInterval:     cfg.CloudWatch.FlushInterval,
			}, log)
		if initErr != nil {
			log.Error("Failed to initialize CloudWatch metrics publisher", initErr)
			os.Exit(1)
		}
		cloudwatchMetrics = publisherImpl
		metricsPublisher = publisherImpl
		log.Info("CloudWatch metrics publisher initialized", "namespace", cfg.CloudWatch.Namespace)
	} else {
		log.Warn("CloudWatch metrics publishing is disabled")
	}

	// 7. Prometheus
	var (
		promMetrics      *metrics.Metrics
		telemetryMetrics applicationPort.TelemetryMetrics
	)
	if cfg.Prometheus.Enabled {
		promMetrics = metrics.New(nil)
		telemetryMetrics = promMetrics
	}

	// 8. Domain Layer: сессия телеметрии
	rules, err := ruleSetFromConfig(cfg.Telemetry.Rules)
	if err != nil {
		log.Error("Invalid threshold rules", err)
		os.Exit(1)
	}

	session, err := service.NewTelemetrySession(service.SessionConfig{
		Capacity: cfg.Telemetry.Capacity,
		Smoothing: valueobject.SmoothingConfig{
			Enabled: cfg.Telemetry.SmoothingEnabled,
			Alpha:   cfg.Telemetry.Alpha,
		},
		Rules:             rules,
		TruncateOnRefresh: cfg.Telemetry.TruncateOnRefresh,
		Location:          location,
	})
	if err != nil {
		log.Error("Failed to create telemetry session", err)
		os.Exit(1)
	}

	// WebSocket Hub
	hub := wsInfra.NewHub(log)

	// 9. Application Layer (Use Cases)

	pollLatestUC := usecase.NewPollLatestUseCase(usecase.PollLatestDeps{
		Source:    source,
		Session:   session,
		Notifier:  hub,
		Events:    eventPublisher,   // nil, если NATS выключен
		Publisher: metricsPublisher, // nil, если CloudWatch выключен
		Metrics:   telemetryMetrics,
		Location:  location,
		Logger:    log,
	})

	refreshHistoryUC := usecase.NewRefreshHistoryUseCase(usecase.RefreshHistoryDeps{
		Source:   source,
		Session:  session,
		Cache:    cache,
		Notifier: hub,
		Metrics:  telemetryMetrics,
		Logger:   log,
	}, usecase.RefreshHistoryConfig{
		RecentLimit:  cfg.Telemetry.RecentLimit,
		HourlyWindow: cfg.Telemetry.HourlyWindow,
		Location:     location,
	})

	getSeriesUC := usecase.NewGetSeriesUseCase(session, location)
	updateSettingsUC := usecase.NewUpdateSettingsUseCase(session, settingsStore, hub, location, log)
	loadSettingsUC := usecase.NewLoadSettingsUseCase(session, settingsStore, log)
	getReadingsUC := usecase.NewGetReadingsUseCase(source, location, log)

	var recordReadingUC *usecase.RecordReadingUseCase
	if sensorRepo != nil {
		recordReadingUC = usecase.NewRecordReadingUseCase(sensorRepo, nil, location, log)
	}

	// 10. Interfaces Layer (HTTP Handlers)

	readingsAPIHandler := handler.NewReadingsAPIHandler(getReadingsUC, recordReadingUC, log)
	telemetryAPIHandler := handler.NewTelemetryAPIHandler(getSeriesUC, updateSettingsUC, pollLatestUC, refreshHistoryUC, log)
	websocketHandler := handler.NewWebSocketHandler(hub, cfg.Security.AllowedOrigins, log)

	rateLimiter := middleware.NewIPRateLimiter(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst)
	defer rateLimiter.Stop()

	router := httpInterface.NewRouter(
		readingsAPIHandler,
		telemetryAPIHandler,
		websocketHandler,
		promMetrics,
		rateLimiter,
		readiness,
		cfg.Security,
		cfg.Prometheus.Path,
		log,
	)

	// 11. Запускаем фоновые процессы

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx)
	log.Info("WebSocket hub started")

	// Сохраненные настройки применяются до первой загрузки
	loadSettingsUC.Execute(ctx)
	if _, err := refreshHistoryUC.Execute(ctx); err != nil {
		log.Warn("Initial refresh failed, session stays empty", "error", err.Error())
	}

	go func() {
		pollTicker := time.NewTicker(cfg.Telemetry.PollInterval)
		defer pollTicker.Stop()
		refreshTicker := time.NewTicker(cfg.Telemetry.RefreshInterval)
		defer refreshTicker.Stop()

		log.Info("Telemetry scheduler started",
			"poll_interval", cfg.Telemetry.PollInterval.String(),
			"refresh_interval", cfg.Telemetry.RefreshInterval.String())

		for {
			select {
			case <-pollTicker.C:
				if _, err := pollLatestUC.Execute(ctx); err != nil {
					log.Error("Failed to poll latest reading", err)
				}
			case <-refreshTicker.C:
				if _, err := refreshHistoryUC.Execute(ctx); err != nil {
					log.Error("Failed to refresh history", err)
				}
			case <-ctx.Done():
				log.Info("Telemetry scheduler stopped")
				return
			}
		}
	}()

	// 12. Настраиваем HTTP сервер

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}()

	// 13. Ожидаем сигнал для graceful shutdown

	<-sigChan
	log.Info("Shutdown signal received, starting graceful shutdown...")

	// Останавливаем планировщик и hub
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", err)
	}

	if cloudwatchMetrics != nil {
		log.Info("Flushing CloudWatch metrics buffer...")
		if err := cloudwatchMetrics.Close(shutdownCtx); err != nil {
			log.Error("Failed to flush CloudWatch metrics", err)
		}
	}

	if natsPublisher != nil {
		if err := natsPublisher.Flush(shutdownCtx); err != nil {
			log.Error("Failed to flush NATS publisher", err)
		}
		if err := natsPublisher.Close(); err != nil {
			log.Error("Failed to close NATS connection", err)
		}
	}

	log.Info("Server stopped gracefully")

	// Логи отправляются последними, чтобы захватить сообщения остановки
	if logsPublisher != nil {
		if err := logsPublisher.Close(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to flush CloudWatch logs: %v\n", err)
		}
	}
}

// ruleSetFromConfig собирает правила из порогов конфигурации; уровни совпадают с правилами по умолчанию
func ruleSetFromConfig(cfg config.RulesConfig) (valueobject.RuleSet, error) {
	defaults := valueobject.DefaultRuleSet()
	severity := func(metric valueobject.MetricName) valueobject.Severity {
		if rule, ok := defaults.Rule(metric); ok {
			return rule.Severity()
		}
		return valueobject.SeverityWarning
	}

	co2, err := valueobject.NewUpperBoundRule(cfg.CO2Max, severity(valueobject.CO2))
	if err != nil {
		return valueobject.RuleSet{}, fmt.Errorf("co2 rule: %w", err)
	}
	temperature, err := valueobject.NewRangeRule(cfg.TemperatureMin, cfg.TemperatureMax, severity(valueobject.Temperature))
	if err != nil {
		return valueobject.RuleSet{}, fmt.Errorf("temperature rule: %w", err)
	}
	humidity, err := valueobject.NewRangeRule(cfg.HumidityMin, cfg.HumidityMax, severity(valueobject.Humidity))
	if err != nil {
		return valueobject.RuleSet{}, fmt.Errorf("humidity rule: %w", err)
	}
	pm25, err := valueobject.NewUpperBoundRule(cfg.PM25Max, severity(valueobject.PM25))
	if err != nil {
		return valueobject.RuleSet{}, fmt.Errorf("pm2.5 rule: %w", err)
	}

	return valueobject.NewRuleSet(map[valueobject.MetricName]valueobject.ThresholdRule{
		valueobject.CO2:         co2,
		valueobject.Temperature: temperature,
		valueobject.Humidity:    humidity,
		valueobject.PM25:        pm25,
	}), nil
}
