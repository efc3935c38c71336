package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

func TestSeriesAggregator_Summarize(t *testing.T) {
	a := NewSeriesAggregator()

	_, err := a.Summarize(entity.MetricSeries{Metric: valueobject.CO2})
	assert.Error(t, err)

	stats, err := a.Summarize(entity.MetricSeries{
		Metric:   valueobject.CO2,
		Labels:   []string{"a", "b", "c"},
		Raw:      []float64{400, 600, 500},
		Smoothed: []float64{400, 460, 472},
	})
	require.NoError(t, err)
	assert.InDelta(t, 500, stats.Average, 1e-9)
	assert.Equal(t, 400.0, stats.Min)
	assert.Equal(t, 600.0, stats.Max)
	assert.Equal(t, 500.0, stats.LastRaw)
	assert.Equal(t, 472.0, stats.LastSmoothed)
}

func TestSeriesAggregator_SortByTime(t *testing.T) {
	a := NewSeriesAggregator()
	samples := []*entity.Sample{co2Sample(t, 1, 2), co2Sample(t, 0, 1), co2Sample(t, 2, 3)}

	asc := a.SortByTime(samples, false)
	desc := a.SortByTime(samples, true)

	for i, want := range []float64{1, 2, 3} {
		v, _ := asc[i].Value(valueobject.CO2)
		assert.Equal(t, want, v)
	}
	for i, want := range []float64{3, 2, 1} {
		v, _ := desc[i].Value(valueobject.CO2)
		assert.Equal(t, want, v)
	}

	first, _ := samples[0].Value(valueobject.CO2)
	assert.Equal(t, 2.0, first)
}

func TestSeriesAggregator_HourlyAverages(t *testing.T) {
	a := NewSeriesAggregator()
	samples := []*entity.Sample{
		co2Sample(t, 70, 600),
		co2Sample(t, 0, 400),
		co2Sample(t, 30, 500),
		mustSample(t, sessionBase.Add(10*time.Minute), map[valueobject.MetricName]float64{valueobject.Humidity: 45}),
	}

	summary := a.HourlyAverages(samples)
	require.Len(t, summary.Hours, 2)

	assert.Equal(t, sessionBase, summary.Hours[0].Hour)
	assert.InDelta(t, 450, summary.Hours[0].Averages[valueobject.CO2], 1e-9)
	assert.InDelta(t, 45, summary.Hours[0].Averages[valueobject.Humidity], 1e-9)

	assert.Equal(t, sessionBase.Add(time.Hour), summary.Hours[1].Hour)
	assert.InDelta(t, 600, summary.Hours[1].Averages[valueobject.CO2], 1e-9)
	_, ok := summary.Hours[1].Averages[valueobject.Humidity]
	assert.False(t, ok)
}
