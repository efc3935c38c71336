package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/application/dto"
	"github.com/dreschagin/cleanroom-telemetry/internal/application/port"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/repository"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/service"
	"github.com/dreschagin/cleanroom-telemetry/pkg/logger"
)

// PollResult результат одного опроса
type PollResult struct {
	Accepted bool
	Alerts   []*dto.AlertDTO
}

// PollLatestDeps зависимости use case; Events, Publisher и Metrics опциональны
type PollLatestDeps struct {
	Source    port.SensorSource
	Session   *service.TelemetrySession
	Validator *service.SampleValidator
	Notifier  port.NotificationService
	Events    port.EventPublisher
	Publisher port.MetricsPublisher
	Metrics   port.TelemetryMetrics
	Location  *time.Location
	Logger    *logger.Logger
}

// PollLatestUseCase забирает самое свежее наблюдение, добавляет его в сессию
// и рассылает snapshot и alert'ы
type PollLatestUseCase struct {
	source    port.SensorSource
	session   *service.TelemetrySession
	validator *service.SampleValidator
	notifier  port.NotificationService
	events    port.EventPublisher
	publisher port.MetricsPublisher
	metrics   port.TelemetryMetrics
	location  *time.Location
	logger    *logger.Logger

	enabled atomic.Bool
}

// NewPollLatestUseCase создает новый use case; опрос включен по умолчанию
func NewPollLatestUseCase(deps PollLatestDeps) *PollLatestUseCase {
	if deps.Validator == nil {
		deps.Validator = service.NewSampleValidator()
	}

	uc := &PollLatestUseCase{
		source:    deps.Source,
		session:   deps.Session,
		validator: deps.Validator,
		notifier:  deps.Notifier,
		events:    deps.Events,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		location:  deps.Location,
		logger:    deps.Logger.With("usecase", "poll_latest"),
	}
	uc.enabled.Store(true)
	return uc
}

// SetEnabled включает или приостанавливает опрос
func (uc *PollLatestUseCase) SetEnabled(enabled bool) {
	uc.enabled.Store(enabled)
	uc.logger.Info("Realtime polling toggled", "enabled", enabled)
}

// Enabled сообщает, включен ли опрос
func (uc *PollLatestUseCase) Enabled() bool {
	return uc.enabled.Load()
}

// Execute выполняет один опрос
func (uc *PollLatestUseCase) Execute(ctx context.Context) (*PollResult, error) {
	if !uc.Enabled() {
		return &PollResult{}, nil
	}

	// 1. Получаем последнее наблюдение
	sample, err := uc.source.FindLatest(ctx)
	if errors.Is(err, repository.ErrNoReadings) {
		uc.logger.Debug("No readings available yet")
		uc.observe(false, nil)
		return &PollResult{}, nil
	}
	if err != nil {
		uc.logger.Error("Failed to fetch latest reading", err)
		uc.observe(false, err)
		return nil, fmt.Errorf("failed to fetch latest reading: %w", err)
	}

	// 2. Валидация и очистка
	if err := uc.validator.Validate(sample); err != nil {
		uc.logger.Warn("Skipping invalid reading", "error", err.Error())
		uc.observe(false, nil)
		return &PollResult{}, nil
	}
	sample = sanitizeSample(uc.validator, uc.metrics, uc.logger, sample)

	// 3. Добавляем в сессию (дубликаты игнорируются)
	res, err := uc.session.IngestPush(sample)
	if err != nil {
		uc.logger.Error("Failed to ingest reading", err)
		uc.observe(false, err)
		return nil, fmt.Errorf("failed to ingest reading: %w", err)
	}
	if !res.Changed {
		uc.logger.Debug("Reading already ingested", "timestamp", sample.Timestamp())
		uc.observe(false, nil)
		return &PollResult{}, nil
	}
	uc.observe(true, nil)

	// 4. Рассылаем snapshot и alert'ы
	snapshot := broadcastSnapshot(uc.notifier, uc.metrics, uc.session, uc.location)
	alerts := publishAlerts(ctx, uc.notifier, uc.events, uc.metrics, uc.logger, res.Events)

	// 5. Экспортируем показания
	uc.publishReadings(ctx, snapshot, sample)

	return &PollResult{Accepted: true, Alerts: alerts}, nil
}

// publishReadings экспортирует исходное и сглаженное значение метрик, пришедших в наблюдении
func (uc *PollLatestUseCase) publishReadings(ctx context.Context, snapshot service.SessionSnapshot, sample *entity.Sample) {
	if uc.publisher == nil {
		return
	}

	points := make([]port.ReadingPoint, 0, len(snapshot.Series))
	for _, series := range snapshot.Series {
		if _, present := sample.Value(series.Metric); !present {
			continue
		}
		raw, smoothed, ok := series.Last()
		if !ok {
			continue
		}
		points = append(points, port.ReadingPoint{
			Metric:    series.Metric,
			Raw:       raw,
			Smoothed:  smoothed,
			Timestamp: sample.Timestamp(),
		})
	}

	if err := uc.publisher.PublishBatch(ctx, points); err != nil {
		uc.logger.Error("Failed to publish readings", err, "count", len(points))
	}
}

func (uc *PollLatestUseCase) observe(accepted bool, err error) {
	if uc.metrics != nil {
		uc.metrics.ObservePoll(accepted, err)
	}
}
