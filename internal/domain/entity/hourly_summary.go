package entity

import (
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

// HourlyAverage средние значения метрик за один час.
// Используется только для отображения: не сглаживается и не классифицируется.
type HourlyAverage struct {
	Hour     time.Time
	Averages map[valueobject.MetricName]float64
}

// HourlySummary последовательность часовых средних по возрастанию времени
type HourlySummary struct {
	Hours []HourlyAverage
}

// Clone возвращает глубокую копию
func (s *HourlySummary) Clone() *HourlySummary {
	if s == nil {
		return nil
	}

	hours := make([]HourlyAverage, len(s.Hours))
	for i, h := range s.Hours {
		averages := make(map[valueobject.MetricName]float64, len(h.Averages))
		for metric, value := range h.Averages {
			averages[metric] = value
		}
		hours[i] = HourlyAverage{Hour: h.Hour, Averages: averages}
	}
	return &HourlySummary{Hours: hours}
}
