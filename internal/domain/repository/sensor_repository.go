package repository

import (
	"context"
	"errors"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

// DefaultRecentLimit количество наблюдений для FindRecent, если n вне допустимого диапазона
const DefaultRecentLimit = 50

// MaxRecentLimit верхняя граница n для FindRecent
const MaxRecentLimit = 1000

// ErrNoReadings возвращается, когда в хранилище нет ни одного наблюдения
var ErrNoReadings = errors.New("no sensor readings")

// SensorRepository определяет интерфейс для работы с хранилищем наблюдений (Port)
// Реализация будет в Infrastructure слое
type SensorRepository interface {
	// Save сохраняет одно наблюдение
	Save(ctx context.Context, sample *entity.Sample) error

	// FindLatest находит самое свежее наблюдение; ErrNoReadings если таблица пуста
	FindLatest(ctx context.Context) (*entity.Sample, error)

	// FindRecent находит n последних наблюдений, от новых к старым
	FindRecent(ctx context.Context, n int) ([]*entity.Sample, error)

	// FindHourlyAverages считает средние по часам внутри диапазона, по возрастанию
	FindHourlyAverages(ctx context.Context, timeRange valueobject.TimeRange) (*entity.HourlySummary, error)
}

// NormalizeRecentLimit приводит n к диапазону 1..MaxRecentLimit, иначе DefaultRecentLimit
func NormalizeRecentLimit(n int) int {
	if n < 1 || n > MaxRecentLimit {
		return DefaultRecentLimit
	}
	return n
}
