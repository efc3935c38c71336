package port

import (
	"context"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

// SensorSource источник наблюдений для опроса и полной загрузки (Port)
// Реализуется SQL репозиторием и HTTP клиентом удаленного сервиса.
type SensorSource interface {
	// FindLatest возвращает самое свежее наблюдение; repository.ErrNoReadings если данных нет
	FindLatest(ctx context.Context) (*entity.Sample, error)

	// FindRecent возвращает n последних наблюдений в любом порядке
	FindRecent(ctx context.Context, n int) ([]*entity.Sample, error)

	// FindHourlyAverages возвращает часовые средние внутри диапазона
	FindHourlyAverages(ctx context.Context, timeRange valueobject.TimeRange) (*entity.HourlySummary, error)
}
