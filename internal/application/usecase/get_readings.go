package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/application/dto"
	"github.com/dreschagin/cleanroom-telemetry/internal/application/port"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/repository"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/service"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
	"github.com/dreschagin/cleanroom-telemetry/pkg/logger"
)

// GetReadingsUseCase отдает наблюдения в формате исходного API (/api/latest, /api/recent, /api/hourly-avg)
type GetReadingsUseCase struct {
	source     port.SensorSource
	aggregator *service.SeriesAggregator
	location   *time.Location
	logger     *logger.Logger
	now        func() time.Time
}

// NewGetReadingsUseCase создает новый use case
func NewGetReadingsUseCase(source port.SensorSource, location *time.Location, logger *logger.Logger) *GetReadingsUseCase {
	return &GetReadingsUseCase{
		source:     source,
		aggregator: service.NewSeriesAggregator(),
		location:   location,
		logger:     logger.With("usecase", "get_readings"),
		now:        time.Now,
	}
}

// Latest возвращает самое свежее наблюдение; repository.ErrNoReadings если данных нет
func (uc *GetReadingsUseCase) Latest(ctx context.Context) (*dto.SampleDTO, error) {
	sample, err := uc.source.FindLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest reading: %w", err)
	}
	return dto.FromSample(sample, uc.location), nil
}

// Recent возвращает n последних наблюдений от новых к старым; n вне 1..1000 заменяется на 50
func (uc *GetReadingsUseCase) Recent(ctx context.Context, n int) ([]*dto.SampleDTO, error) {
	samples, err := uc.source.FindRecent(ctx, repository.NormalizeRecentLimit(n))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent readings: %w", err)
	}

	sorted := uc.aggregator.SortByTime(samples, true)
	uc.logger.Debug("Fetched recent readings", "count", len(sorted))

	return dto.ToSampleDTOs(sorted, uc.location), nil
}

// HourlyAverages возвращает часовые средние за последние 24 часа по возрастанию
func (uc *GetReadingsUseCase) HourlyAverages(ctx context.Context) ([]*dto.HourlyAverageDTO, error) {
	timeRange, err := valueobject.NewTimeRangeEndingAt(uc.now(), DefaultHourlyWindow)
	if err != nil {
		return nil, err
	}

	summary, err := uc.source.FindHourlyAverages(ctx, timeRange)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch hourly averages: %w", err)
	}

	return dto.FromHourlySummary(summary, uc.location), nil
}
