package service

import (
	"errors"
	"sort"
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

// SeriesStats сводка по окну одной метрики
type SeriesStats struct {
	Average      float64
	Min          float64
	Max          float64
	LastRaw      float64
	LastSmoothed float64
}

// SeriesAggregator предоставляет агрегации над окнами и наблюдениями (Domain Service)
type SeriesAggregator struct{}

// NewSeriesAggregator создает новый SeriesAggregator
func NewSeriesAggregator() *SeriesAggregator {
	return &SeriesAggregator{}
}

// Summarize вычисляет среднее, минимум и максимум исходных значений окна
func (a *SeriesAggregator) Summarize(series entity.MetricSeries) (SeriesStats, error) {
	if series.IsEmpty() {
		return SeriesStats{}, errors.New("no points to aggregate")
	}

	stats := SeriesStats{
		Min: series.Raw[0],
		Max: series.Raw[0],
	}

	var sum float64
	for _, v := range series.Raw {
		sum += v
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
	}
	stats.Average = sum / float64(len(series.Raw))
	stats.LastRaw, stats.LastSmoothed, _ = series.Last()

	return stats, nil
}

// SortByTime возвращает копию наблюдений, отсортированную по времени.
// Сортировка стабильна: наблюдения с одинаковым временем сохраняют исходный порядок.
func (a *SeriesAggregator) SortByTime(samples []*entity.Sample, descending bool) []*entity.Sample {
	sorted := make([]*entity.Sample, len(samples))
	copy(sorted, samples)

	sort.SliceStable(sorted, func(i, j int) bool {
		if descending {
			return sorted[i].Timestamp().After(sorted[j].Timestamp())
		}
		return sorted[i].Timestamp().Before(sorted[j].Timestamp())
	})

	return sorted
}

// HourlyAverages группирует наблюдения по часам и считает средние по каждой метрике.
// Часы возвращаются по возрастанию; отсутствующие показания не участвуют в среднем.
func (a *SeriesAggregator) HourlyAverages(samples []*entity.Sample) *entity.HourlySummary {
	type accumulator struct {
		sums   map[valueobject.MetricName]float64
		counts map[valueobject.MetricName]int
	}

	buckets := make(map[time.Time]*accumulator)
	for _, sample := range samples {
		hour := valueobject.HourBucket(sample.Timestamp())
		acc, ok := buckets[hour]
		if !ok {
			acc = &accumulator{
				sums:   make(map[valueobject.MetricName]float64),
				counts: make(map[valueobject.MetricName]int),
			}
			buckets[hour] = acc
		}
		for metric, value := range sample.Readings() {
			acc.sums[metric] += value
			acc.counts[metric]++
		}
	}

	hours := make([]time.Time, 0, len(buckets))
	for hour := range buckets {
		hours = append(hours, hour)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })

	summary := &entity.HourlySummary{Hours: make([]entity.HourlyAverage, 0, len(hours))}
	for _, hour := range hours {
		acc := buckets[hour]
		averages := make(map[valueobject.MetricName]float64, len(acc.sums))
		for metric, sum := range acc.sums {
			averages[metric] = sum / float64(acc.counts[metric])
		}
		summary.Hours = append(summary.Hours, entity.HourlyAverage{Hour: hour, Averages: averages})
	}

	return summary
}
