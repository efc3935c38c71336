package usecase

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

func newPollUseCase(source *fakeSource) (*PollLatestUseCase, *fakeNotifier, *fakeEvents, *fakePublisher, *fakeMetrics) {
	notifier := &fakeNotifier{}
	events := &fakeEvents{}
	publisher := &fakePublisher{}
	metrics := &fakeMetrics{}

	uc := NewPollLatestUseCase(PollLatestDeps{
		Source:    source,
		Session:   newSession(),
		Notifier:  notifier,
		Events:    events,
		Publisher: publisher,
		Metrics:   metrics,
		Logger:    testLogger(),
	})
	return uc, notifier, events, publisher, metrics
}

func TestPollLatestUseCase_AcceptsAndAlerts(t *testing.T) {
	source := &fakeSource{latest: sampleAt(0, map[valueobject.MetricName]float64{
		valueobject.CO2:         1050,
		valueobject.Temperature: 22,
	})}
	uc, notifier, events, publisher, metrics := newPollUseCase(source)

	res, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "co2", res.Alerts[0].Metric)
	assert.Equal(t, "warning", res.Alerts[0].Severity)

	require.Len(t, notifier.snapshots, 1)
	require.Len(t, notifier.alerts, 1)

	require.Len(t, events.published, 1)
	assert.Equal(t, "telemetry.alerts.co2", events.published[0].subject)

	require.Len(t, publisher.batches, 1)
	assert.Len(t, publisher.batches[0], 2)

	assert.Equal(t, []bool{true}, metrics.polls)
	assert.Equal(t, 1, metrics.alerts)
	assert.Equal(t, 1, metrics.windows[valueobject.CO2])
	assert.Equal(t, 0, metrics.windows[valueobject.PM25])
}

func TestPollLatestUseCase_DuplicateIsIgnored(t *testing.T) {
	source := &fakeSource{latest: sampleAt(0, map[valueobject.MetricName]float64{valueobject.CO2: 1500})}
	uc, notifier, events, _, metrics := newPollUseCase(source)

	_, err := uc.Execute(context.Background())
	require.NoError(t, err)

	res, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Empty(t, res.Alerts)

	assert.Len(t, notifier.snapshots, 1)
	assert.Len(t, notifier.alerts, 1)
	assert.Len(t, events.published, 1)
	assert.Equal(t, []bool{true, false}, metrics.polls)
}

func TestPollLatestUseCase_NoReadings(t *testing.T) {
	uc, notifier, _, _, _ := newPollUseCase(&fakeSource{})

	res, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Empty(t, notifier.snapshots)
}

func TestPollLatestUseCase_SourceError(t *testing.T) {
	uc, _, _, _, metrics := newPollUseCase(&fakeSource{err: errors.New("connection refused")})

	_, err := uc.Execute(context.Background())
	assert.Error(t, err)
	assert.EqualError(t, metrics.lastErr, "connection refused")
}

func TestPollLatestUseCase_DropsNonFiniteReadings(t *testing.T) {
	source := &fakeSource{latest: sampleAt(0, map[valueobject.MetricName]float64{
		valueobject.CO2:         math.NaN(),
		valueobject.Temperature: 22,
	})}
	uc, _, _, _, metrics := newPollUseCase(source)

	res, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, 1, metrics.dropped)
	assert.Equal(t, 0, uc.session.CurrentSeries(valueobject.CO2).Len())
	assert.Equal(t, 1, uc.session.CurrentSeries(valueobject.Temperature).Len())
}

func TestPollLatestUseCase_Disabled(t *testing.T) {
	source := &fakeSource{latest: sampleAt(0, map[valueobject.MetricName]float64{valueobject.CO2: 400})}
	uc, notifier, _, _, _ := newPollUseCase(source)

	uc.SetEnabled(false)
	assert.False(t, uc.Enabled())

	res, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Empty(t, notifier.snapshots)

	uc.SetEnabled(true)
	res, err = uc.Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Accepted)
}

func TestPollLatestUseCase_EventPublishFailureDoesNotFail(t *testing.T) {
	source := &fakeSource{latest: sampleAt(0, map[valueobject.MetricName]float64{valueobject.PM25: 80})}
	uc, notifier, events, _, _ := newPollUseCase(source)
	events.err = errors.New("nats: no responders")

	res, err := uc.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "info", res.Alerts[0].Severity)
	assert.Len(t, notifier.alerts, 1)
}
