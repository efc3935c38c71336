package service

import (
	"fmt"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

// DefaultWindowCapacity размер скользящего окна по умолчанию
const DefaultWindowCapacity = 50

// seriesWindow хранит три параллельные последовательности одной метрики
type seriesWindow struct {
	labels   []string
	raw      []float64
	smoothed []float64
}

// SeriesBuffer окно фиксированной емкости для каждой метрики (Domain Service)
// Вытесняет самые старые точки (FIFO) и пересчитывает сглаживание после каждой мутации.
// Не потокобезопасен: доступ синхронизирует TelemetrySession.
type SeriesBuffer struct {
	capacity          int
	smoothing         valueobject.SmoothingConfig
	truncateOnReplace bool
	series            map[valueobject.MetricName]*seriesWindow
}

// SeriesBufferOption настраивает SeriesBuffer
type SeriesBufferOption func(*SeriesBuffer)

// WithTruncateOnReplace включает обрезку ReplaceAll до емкости окна
func WithTruncateOnReplace(enabled bool) SeriesBufferOption {
	return func(b *SeriesBuffer) {
		b.truncateOnReplace = enabled
	}
}

// NewSeriesBuffer создает буфер; capacity <= 0 заменяется на DefaultWindowCapacity
func NewSeriesBuffer(capacity int, smoothing valueobject.SmoothingConfig, opts ...SeriesBufferOption) (*SeriesBuffer, error) {
	if err := smoothing.Validate(); err != nil {
		return nil, err
	}
	if capacity <= 0 {
		capacity = DefaultWindowCapacity
	}

	b := &SeriesBuffer{
		capacity:  capacity,
		smoothing: smoothing,
		series:    make(map[valueobject.MetricName]*seriesWindow),
	}
	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// Capacity возвращает емкость окна, общую для всех метрик
func (b *SeriesBuffer) Capacity() int {
	return b.capacity
}

// Smoothing возвращает активную конфигурацию сглаживания
func (b *SeriesBuffer) Smoothing() valueobject.SmoothingConfig {
	return b.smoothing
}

// Append добавляет точку в окно метрики, вытесняя самые старые при заполнении.
// Сглаженная серия пересчитывается по всему окну, поэтому smoothed[0] == raw[0]
// и после вытеснения рекуррентность заново привязывается к новой первой точке.
func (b *SeriesBuffer) Append(metric valueobject.MetricName, value float64, label string) error {
	if err := metric.Validate(); err != nil {
		return err
	}

	w := b.window(metric)

	// Окно может превышать емкость после полной загрузки без обрезки
	if excess := len(w.raw) - b.capacity + 1; excess > 0 {
		w.raw = evictFront(w.raw, excess)
		w.smoothed = evictFront(w.smoothed, excess)
		w.labels = evictFront(w.labels, excess)
	}

	w.raw = append(w.raw, value)
	w.labels = append(w.labels, label)

	return b.recompute(w)
}

// ReplaceAll заменяет окно метрики целиком (полная загрузка истории).
// При разной длине raw и labels возвращает ErrLengthMismatch и ничего не меняет.
func (b *SeriesBuffer) ReplaceAll(metric valueobject.MetricName, raw []float64, labels []string) error {
	if err := metric.Validate(); err != nil {
		return err
	}
	if len(raw) != len(labels) {
		return fmt.Errorf("%w: %s has %d values and %d labels",
			valueobject.ErrLengthMismatch, metric, len(raw), len(labels))
	}

	start := 0
	if b.truncateOnReplace && len(raw) > b.capacity {
		start = len(raw) - b.capacity
	}

	alpha := b.smoothing.EffectiveAlpha()
	rawCopy := append([]float64(nil), raw[start:]...)
	smoothed, err := Smooth(rawCopy, alpha)
	if err != nil {
		return err
	}

	b.series[metric] = &seriesWindow{
		labels:   append([]string(nil), labels[start:]...),
		raw:      rawCopy,
		smoothed: smoothed,
	}

	return nil
}

// SetSmoothing заменяет конфигурацию и пересчитывает все сглаженные серии.
// Невалидная конфигурация отклоняется, предыдущая остается активной.
func (b *SeriesBuffer) SetSmoothing(cfg valueobject.SmoothingConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	recomputed := make(map[valueobject.MetricName][]float64, len(b.series))
	for metric, w := range b.series {
		smoothed, err := Smooth(w.raw, cfg.EffectiveAlpha())
		if err != nil {
			return err
		}
		recomputed[metric] = smoothed
	}

	b.smoothing = cfg
	for metric, smoothed := range recomputed {
		b.series[metric].smoothed = smoothed
	}

	return nil
}

// CurrentSeries возвращает копию окна метрики; неизвестная метрика дает пустую серию
func (b *SeriesBuffer) CurrentSeries(metric valueobject.MetricName) entity.MetricSeries {
	snapshot := entity.MetricSeries{
		Metric:   metric,
		Labels:   []string{},
		Raw:      []float64{},
		Smoothed: []float64{},
	}

	w, ok := b.series[metric]
	if !ok {
		return snapshot
	}

	snapshot.Labels = append(snapshot.Labels, w.labels...)
	snapshot.Raw = append(snapshot.Raw, w.raw...)
	snapshot.Smoothed = append(snapshot.Smoothed, w.smoothed...)
	return snapshot
}

// Len возвращает количество точек в окне метрики
func (b *SeriesBuffer) Len(metric valueobject.MetricName) int {
	if w, ok := b.series[metric]; ok {
		return len(w.raw)
	}
	return 0
}

// Metrics возвращает метрики, у которых уже есть окно, в порядке AllMetricNames
func (b *SeriesBuffer) Metrics() []valueobject.MetricName {
	metrics := make([]valueobject.MetricName, 0, len(b.series))
	for _, metric := range valueobject.AllMetricNames() {
		if _, ok := b.series[metric]; ok {
			metrics = append(metrics, metric)
		}
	}
	return metrics
}

// TotalPoints возвращает суммарное количество точек во всех окнах
func (b *SeriesBuffer) TotalPoints() int {
	total := 0
	for _, metric := range b.Metrics() {
		total += b.Len(metric)
	}
	return total
}

func (b *SeriesBuffer) window(metric valueobject.MetricName) *seriesWindow {
	w, ok := b.series[metric]
	if !ok {
		w = &seriesWindow{}
		b.series[metric] = w
	}
	return w
}

func (b *SeriesBuffer) recompute(w *seriesWindow) error {
	smoothed, err := Smooth(w.raw, b.smoothing.EffectiveAlpha())
	if err != nil {
		return err
	}
	w.smoothed = smoothed
	return nil
}

// evictFront удаляет n первых элементов, переиспользуя массив
func evictFront[T any](values []T, n int) []T {
	if n >= len(values) {
		return values[:0]
	}
	copy(values, values[n:])
	return values[:len(values)-n]
}
