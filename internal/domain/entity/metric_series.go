package entity

import "github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"

// MetricSeries снимок окна одной метрики: исходные значения, сглаженные значения и метки времени.
// Индекс i во всех трех последовательностях относится к одному наблюдению.
type MetricSeries struct {
	Metric   valueobject.MetricName
	Labels   []string
	Raw      []float64
	Smoothed []float64
}

// Len возвращает количество точек
func (s MetricSeries) Len() int {
	return len(s.Raw)
}

// IsEmpty сообщает, что серия пуста
func (s MetricSeries) IsEmpty() bool {
	return len(s.Raw) == 0
}

// Last возвращает последнее исходное и сглаженное значение
func (s MetricSeries) Last() (raw, smoothed float64, ok bool) {
	if len(s.Raw) == 0 {
		return 0, 0, false
	}
	n := len(s.Raw) - 1
	return s.Raw[n], s.Smoothed[n], true
}

// Clone возвращает глубокую копию серии
func (s MetricSeries) Clone() MetricSeries {
	return MetricSeries{
		Metric:   s.Metric,
		Labels:   append([]string(nil), s.Labels...),
		Raw:      append([]float64(nil), s.Raw...),
		Smoothed: append([]float64(nil), s.Smoothed...),
	}
}
