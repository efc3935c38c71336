package dto

import (
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/service"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

// HourLabelLayout формат метки часа для графика часовых средних
const HourLabelLayout = "Jan 2 15h"

// SeriesSnapshotDTO представляет snapshot сессии
// Используется для передачи через WebSocket и REST
type SeriesSnapshotDTO struct {
	Timestamp    time.Time          `json:"timestamp"`
	State        string             `json:"state"`
	Capacity     int                `json:"capacity"`
	LastAccepted *time.Time         `json:"last_accepted,omitempty"`
	Smoothing    SmoothingDTO       `json:"smoothing"`
	Series       []*MetricSeriesDTO `json:"series"`
	Hourly       []*HourlyPointDTO  `json:"hourly"`
}

// MetricSeriesDTO окно одной метрики
type MetricSeriesDTO struct {
	Metric      string          `json:"metric"`
	DisplayName string          `json:"display_name"`
	Unit        string          `json:"unit"`
	Labels      []string        `json:"labels"`
	Raw         []float64       `json:"raw"`
	Smoothed    []float64       `json:"smoothed"`
	Summary     *SeriesStatsDTO `json:"summary,omitempty"`
}

// SeriesStatsDTO содержит сводную информацию по окну
type SeriesStatsDTO struct {
	Average      float64 `json:"average"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	LastRaw      float64 `json:"last_raw"`
	LastSmoothed float64 `json:"last_smoothed"`
}

// HourlyPointDTO точка графика часовых средних
type HourlyPointDTO struct {
	Hour     time.Time          `json:"hour"`
	Label    string             `json:"label"`
	Averages map[string]float64 `json:"averages"`
}

// NewSeriesSnapshotDTO создает snapshot из снимка сессии
func NewSeriesSnapshotDTO(snapshot service.SessionSnapshot, loc *time.Location) *SeriesSnapshotDTO {
	if loc == nil {
		loc = time.Local
	}

	dto := &SeriesSnapshotDTO{
		Timestamp: time.Now(),
		State:     string(snapshot.State),
		Capacity:  snapshot.Capacity,
		Smoothing: NewSmoothingDTO(snapshot.Smoothing),
		Series:    make([]*MetricSeriesDTO, 0, len(snapshot.Series)),
		Hourly:    []*HourlyPointDTO{},
	}

	if !snapshot.LastAccepted.IsZero() {
		last := snapshot.LastAccepted
		dto.LastAccepted = &last
	}

	aggregator := service.NewSeriesAggregator()
	for _, series := range snapshot.Series {
		dto.Series = append(dto.Series, NewMetricSeriesDTO(series, aggregator))
	}

	if snapshot.Hourly != nil {
		for _, h := range snapshot.Hourly.Hours {
			averages := make(map[string]float64, len(h.Averages))
			for metric, value := range h.Averages {
				averages[metric.String()] = value
			}
			dto.Hourly = append(dto.Hourly, &HourlyPointDTO{
				Hour:     h.Hour,
				Label:    h.Hour.In(loc).Format(HourLabelLayout),
				Averages: averages,
			})
		}
	}

	return dto
}

// NewMetricSeriesDTO конвертирует окно метрики, добавляя сводку для непустых окон
func NewMetricSeriesDTO(series entity.MetricSeries, aggregator *service.SeriesAggregator) *MetricSeriesDTO {
	dto := &MetricSeriesDTO{
		Metric:      series.Metric.String(),
		DisplayName: series.Metric.DisplayName(),
		Unit:        series.Metric.Unit(),
		Labels:      series.Labels,
		Raw:         series.Raw,
		Smoothed:    series.Smoothed,
	}

	if stats, err := aggregator.Summarize(series); err == nil {
		dto.Summary = &SeriesStatsDTO{
			Average:      stats.Average,
			Min:          stats.Min,
			Max:          stats.Max,
			LastRaw:      stats.LastRaw,
			LastSmoothed: stats.LastSmoothed,
		}
	}

	return dto
}

// FilterMetric оставляет в snapshot только одну метрику
func (s *SeriesSnapshotDTO) FilterMetric(metric valueobject.MetricName) *SeriesSnapshotDTO {
	filtered := *s
	filtered.Series = nil
	for _, series := range s.Series {
		if series.Metric == metric.String() {
			filtered.Series = append(filtered.Series, series)
		}
	}
	return &filtered
}
