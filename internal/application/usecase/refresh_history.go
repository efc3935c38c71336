package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/application/dto"
	"github.com/dreschagin/cleanroom-telemetry/internal/application/port"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/repository"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/service"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
	"github.com/dreschagin/cleanroom-telemetry/pkg/logger"
)

// DefaultHourlyWindow окно часовых средних
const DefaultHourlyWindow = 24 * time.Hour

// RefreshResult результат полной загрузки
type RefreshResult struct {
	Samples int
	Points  int
	Hours   int
	Changed bool
}

// RefreshHistoryConfig параметры полной загрузки
type RefreshHistoryConfig struct {
	RecentLimit  int
	HourlyWindow time.Duration
	Location     *time.Location
}

// RefreshHistoryDeps зависимости use case; Cache, Notifier и Metrics опциональны
type RefreshHistoryDeps struct {
	Source     port.SensorSource
	Session    *service.TelemetrySession
	Validator  *service.SampleValidator
	Aggregator *service.SeriesAggregator
	Cache      port.Cache
	Notifier   port.NotificationService
	Metrics    port.TelemetryMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

// RefreshHistoryUseCase загружает последние N наблюдений и часовые средние
// и заменяет окна сессии целиком
type RefreshHistoryUseCase struct {
	source     port.SensorSource
	session    *service.TelemetrySession
	validator  *service.SampleValidator
	aggregator *service.SeriesAggregator
	cache      port.Cache
	notifier   port.NotificationService
	metrics    port.TelemetryMetrics
	config     RefreshHistoryConfig
	logger     *logger.Logger
	now        func() time.Time
}

// NewRefreshHistoryUseCase создает новый use case
func NewRefreshHistoryUseCase(deps RefreshHistoryDeps, cfg RefreshHistoryConfig) *RefreshHistoryUseCase {
	if deps.Validator == nil {
		deps.Validator = service.NewSampleValidator()
	}
	if deps.Aggregator == nil {
		deps.Aggregator = service.NewSeriesAggregator()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	cfg.RecentLimit = repository.NormalizeRecentLimit(cfg.RecentLimit)
	if cfg.HourlyWindow <= 0 {
		cfg.HourlyWindow = DefaultHourlyWindow
	}

	return &RefreshHistoryUseCase{
		source:     deps.Source,
		session:    deps.Session,
		validator:  deps.Validator,
		aggregator: deps.Aggregator,
		cache:      deps.Cache,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		config:     cfg,
		logger:     deps.Logger.With("usecase", "refresh_history"),
		now:        deps.Now,
	}
}

// Execute выполняет полную загрузку.
// При ошибке источника сессия не меняется и продолжает показывать последние данные.
func (uc *RefreshHistoryUseCase) Execute(ctx context.Context) (result *RefreshResult, err error) {
	started := time.Now()
	defer func() {
		if uc.metrics != nil {
			points := 0
			if result != nil {
				points = result.Points
			}
			uc.metrics.ObserveRefresh(time.Since(started), points, err)
		}
	}()

	// 1. Последние наблюдения
	raw, err := uc.source.FindRecent(ctx, uc.config.RecentLimit)
	if err != nil {
		uc.logger.Error("Failed to fetch recent readings", err)
		return nil, fmt.Errorf("failed to fetch recent readings: %w", err)
	}

	samples := make([]*entity.Sample, 0, len(raw))
	for _, sample := range raw {
		if err := uc.validator.Validate(sample); err != nil {
			uc.logger.Warn("Skipping invalid reading", "error", err.Error())
			continue
		}
		samples = append(samples, sanitizeSample(uc.validator, uc.metrics, uc.logger, sample))
	}

	// 2. Часовые средние (кеш, затем источник, затем агрегация загруженных наблюдений)
	hourly := uc.loadHourly(ctx, samples)

	// 3. Полная замена окон
	batch, err := uc.session.IngestBatch(samples, hourly)
	if err != nil {
		uc.logger.Error("Failed to ingest batch", err)
		return nil, fmt.Errorf("failed to ingest batch: %w", err)
	}

	uc.logger.Debug("History refreshed",
		"samples", len(samples),
		"points", batch.Points,
		"hours", len(hourly.Hours))

	broadcastSnapshot(uc.notifier, uc.metrics, uc.session, uc.config.Location)

	return &RefreshResult{
		Samples: len(samples),
		Points:  batch.Points,
		Hours:   len(hourly.Hours),
		Changed: batch.Changed,
	}, nil
}

// loadHourly получает часовые средние с кешированием
func (uc *RefreshHistoryUseCase) loadHourly(ctx context.Context, samples []*entity.Sample) *entity.HourlySummary {
	now := uc.now()
	timeRange, err := valueobject.NewTimeRangeEndingAt(now, uc.config.HourlyWindow)
	if err != nil {
		uc.logger.Warn("Invalid hourly window", "error", err.Error())
		return uc.aggregator.HourlyAverages(samples)
	}

	// Ключ меняется раз в час: внутри часа средние почти не меняются
	cacheKey := fmt.Sprintf("telemetry:hourly:%d:%s",
		valueobject.HourBucket(now).Unix(), timeRange.Duration())

	if uc.cache != nil {
		var cached []*dto.HourlyAverageDTO
		if err := uc.cache.Get(ctx, cacheKey, &cached); err == nil {
			uc.logger.Debug("Cache hit for hourly averages", "hours", len(cached))
			return dto.ToHourlySummary(cached, uc.config.Location)
		}
	}

	hourly, err := uc.source.FindHourlyAverages(ctx, timeRange)
	if err != nil {
		uc.logger.Warn("Failed to fetch hourly averages, aggregating recent readings", "error", err.Error())
		inRange := make([]*entity.Sample, 0, len(samples))
		for _, sample := range samples {
			if timeRange.Contains(sample.Timestamp()) {
				inRange = append(inRange, sample)
			}
		}
		return uc.aggregator.HourlyAverages(inRange)
	}
	if hourly == nil {
		hourly = &entity.HourlySummary{}
	}

	if uc.cache != nil {
		payload := dto.FromHourlySummary(hourly, uc.config.Location)
		// Сохраняем в кеш (асинхронно, не блокируем загрузку)
		go func() {
			if err := uc.cache.Set(context.Background(), cacheKey, payload); err != nil {
				uc.logger.Warn("Failed to cache hourly averages", "error", err.Error())
			}
		}()
	}

	return hourly
}
