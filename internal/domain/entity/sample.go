package entity

import (
	"errors"
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

// Sample представляет одно наблюдение сенсора
// Иммутабелен после создания: конструктор и аксессоры копируют map'ы
type Sample struct {
	id        string
	timestamp time.Time
	readings  map[valueobject.MetricName]float64
	extra     map[string]float64
}

// NewSample создает новое наблюдение (Factory Method)
func NewSample(timestamp time.Time, readings map[valueobject.MetricName]float64) (*Sample, error) {
	if timestamp.IsZero() {
		return nil, errors.New("sample timestamp cannot be zero")
	}

	copied := make(map[valueobject.MetricName]float64, len(readings))
	for metric, value := range readings {
		if err := metric.Validate(); err != nil {
			continue
		}
		copied[metric] = value
	}

	return &Sample{
		timestamp: timestamp,
		readings:  copied,
		extra:     make(map[string]float64),
	}, nil
}

// Reconstruct восстанавливает наблюдение из хранилища (для Repository)
func Reconstruct(
	id string,
	timestamp time.Time,
	readings map[valueobject.MetricName]float64,
	extra map[string]float64,
) *Sample {
	sample := &Sample{
		id:        id,
		timestamp: timestamp,
		readings:  make(map[valueobject.MetricName]float64, len(readings)),
		extra:     make(map[string]float64, len(extra)),
	}
	for metric, value := range readings {
		sample.readings[metric] = value
	}
	for key, value := range extra {
		sample.extra[key] = value
	}
	return sample
}

// ID возвращает идентификатор записи в хранилище (может быть пустым)
func (s *Sample) ID() string {
	return s.id
}

// Timestamp возвращает время наблюдения
func (s *Sample) Timestamp() time.Time {
	return s.timestamp
}

// Value возвращает показание метрики и признак его наличия
func (s *Sample) Value(metric valueobject.MetricName) (float64, bool) {
	value, ok := s.readings[metric]
	return value, ok
}

// Readings возвращает копию всех показаний
func (s *Sample) Readings() map[valueobject.MetricName]float64 {
	result := make(map[valueobject.MetricName]float64, len(s.readings))
	for metric, value := range s.readings {
		result[metric] = value
	}
	return result
}

// Extra возвращает дополнительные показания (pm1_0, pm10), которые не классифицируются
func (s *Sample) Extra() map[string]float64 {
	result := make(map[string]float64, len(s.extra))
	for key, value := range s.extra {
		result[key] = value
	}
	return result
}

// Without возвращает копию наблюдения без указанных метрик
func (s *Sample) Without(metrics ...valueobject.MetricName) *Sample {
	clone := Reconstruct(s.id, s.timestamp, s.readings, s.extra)
	for _, metric := range metrics {
		delete(clone.readings, metric)
	}
	return clone
}

// IsNewerThan сравнивает время наблюдения с моментом t
func (s *Sample) IsNewerThan(t time.Time) bool {
	return s.timestamp.After(t)
}
