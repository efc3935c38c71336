package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/application/dto"
	"github.com/dreschagin/cleanroom-telemetry/internal/application/port"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/repository"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/service"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
	"github.com/dreschagin/cleanroom-telemetry/pkg/logger"
)

var testBase = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func testLogger() *logger.Logger {
	return logger.New("error")
}

func newSession() *service.TelemetrySession {
	cfg := service.DefaultSessionConfig()
	cfg.Location = time.UTC
	session, err := service.NewTelemetrySession(cfg)
	if err != nil {
		panic(err)
	}
	return session
}

func sampleAt(minute int, readings map[valueobject.MetricName]float64) *entity.Sample {
	sample, err := entity.NewSample(testBase.Add(time.Duration(minute)*time.Minute), readings)
	if err != nil {
		panic(err)
	}
	return sample
}

type fakeSource struct {
	latest    *entity.Sample
	recent    []*entity.Sample
	hourly    *entity.HourlySummary
	err       error
	hourlyErr error

	recentN     int
	hourlyCalls int
	hourlyRange valueobject.TimeRange
}

func (f *fakeSource) FindLatest(context.Context) (*entity.Sample, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.latest == nil {
		return nil, repository.ErrNoReadings
	}
	return f.latest, nil
}

func (f *fakeSource) FindRecent(_ context.Context, n int) ([]*entity.Sample, error) {
	f.recentN = n
	if f.err != nil {
		return nil, f.err
	}
	return f.recent, nil
}

func (f *fakeSource) FindHourlyAverages(_ context.Context, timeRange valueobject.TimeRange) (*entity.HourlySummary, error) {
	f.hourlyCalls++
	f.hourlyRange = timeRange
	if f.hourlyErr != nil {
		return nil, f.hourlyErr
	}
	return f.hourly, nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	snapshots []*dto.SeriesSnapshotDTO
	alerts    []*dto.AlertDTO
}

func (f *fakeNotifier) Broadcast(snapshot *dto.SeriesSnapshotDTO) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, snapshot)
}

func (f *fakeNotifier) BroadcastAlert(alert *dto.AlertDTO) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
}

func (f *fakeNotifier) ClientCount() int { return 0 }

type publishedEvent struct {
	subject string
	event   interface{}
}

type fakeEvents struct {
	published []publishedEvent
	err       error
}

func (f *fakeEvents) PublishEvent(_ context.Context, subject string, event interface{}) error {
	f.published = append(f.published, publishedEvent{subject: subject, event: event})
	return f.err
}

func (f *fakeEvents) Close() error { return nil }

type fakePublisher struct {
	batches [][]port.ReadingPoint
}

func (f *fakePublisher) PublishBatch(_ context.Context, points []port.ReadingPoint) error {
	f.batches = append(f.batches, points)
	return nil
}

func (f *fakePublisher) Flush(context.Context) error { return nil }

type fakeMetrics struct {
	mu      sync.Mutex
	polls   []bool
	refresh int
	alerts  int
	dropped int
	windows map[valueobject.MetricName]int
	lastErr error
}

func (f *fakeMetrics) ObservePoll(accepted bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls = append(f.polls, accepted)
	f.lastErr = err
}

func (f *fakeMetrics) ObserveRefresh(_ time.Duration, _ int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh++
	f.lastErr = err
}

func (f *fakeMetrics) ObserveAlert(valueobject.MetricName, valueobject.Severity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts++
}

func (f *fakeMetrics) SetWindowSize(metric valueobject.MetricName, size int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.windows == nil {
		f.windows = make(map[valueobject.MetricName]int)
	}
	f.windows[metric] = size
}

func (f *fakeMetrics) ObserveDroppedReading(valueobject.MetricName) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped++
}

type fakeCache struct {
	mu    sync.Mutex
	items map[string]interface{}
	sets  int
}

func (f *fakeCache) Get(_ context.Context, key string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.items[key]
	if !ok {
		return errors.New("cache miss: key not found")
	}
	if out, ok := dest.(*[]*dto.HourlyAverageDTO); ok {
		*out = v.([]*dto.HourlyAverageDTO)
	}
	return nil
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.items == nil {
		f.items = make(map[string]interface{})
	}
	f.items[key] = value
	f.sets++
	return nil
}

func (f *fakeCache) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, key)
	return nil
}

func (f *fakeCache) DeletePattern(context.Context, string) error { return nil }

func (f *fakeCache) Close() error { return nil }

func (f *fakeCache) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[key]
	return ok
}

func (f *fakeCache) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

type fakeSettingsStore struct {
	saved   *dto.SettingsDTO
	loadErr error
	saveErr error
}

func (f *fakeSettingsStore) Load(context.Context) (*dto.SettingsDTO, error) {
	return f.saved, f.loadErr
}

func (f *fakeSettingsStore) Save(_ context.Context, settings *dto.SettingsDTO) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = settings
	return nil
}

type fakeRepository struct {
	fakeSource
	saved []*entity.Sample
}

func (f *fakeRepository) Save(_ context.Context, sample *entity.Sample) error {
	f.saved = append(f.saved, sample)
	return nil
}
