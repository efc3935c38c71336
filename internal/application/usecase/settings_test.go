package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/cleanroom-telemetry/internal/application/dto"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

func floatPtr(v float64) *float64 { return &v }

func validSettings(alpha float64) *dto.SettingsDTO {
	return &dto.SettingsDTO{
		Smoothing: dto.SmoothingDTO{Enabled: true, Alpha: alpha},
		Rules: map[string]dto.RuleDTO{
			"co2":         {Kind: "upper_bound", Upper: 800, Severity: "error"},
			"temperature": {Kind: "range", Lower: floatPtr(19), Upper: 24, Severity: "warning"},
		},
	}
}

func TestUpdateSettingsUseCase_AppliesAndPersists(t *testing.T) {
	session := newSession()
	_, err := session.IngestBatch([]*entity.Sample{
		sampleAt(0, map[valueobject.MetricName]float64{valueobject.CO2: 10}),
		sampleAt(1, map[valueobject.MetricName]float64{valueobject.CO2: 20}),
		sampleAt(2, map[valueobject.MetricName]float64{valueobject.CO2: 30}),
	}, nil)
	require.NoError(t, err)

	store := &fakeSettingsStore{}
	notifier := &fakeNotifier{}
	uc := NewUpdateSettingsUseCase(session, store, notifier, time.UTC, testLogger())

	applied, err := uc.Execute(context.Background(), validSettings(0.5))
	require.NoError(t, err)
	assert.Equal(t, 0.5, applied.Smoothing.Alpha)
	assert.Len(t, applied.Rules, 2)

	assert.InDeltaSlice(t, []float64{10, 15, 22.5}, session.CurrentSeries(valueobject.CO2).Smoothed, 1e-9)
	assert.Equal(t, 2, session.Rules().Len())

	require.NotNil(t, store.saved)
	assert.Equal(t, 0.5, store.saved.Smoothing.Alpha)
	assert.Len(t, notifier.snapshots, 1)
}

func TestUpdateSettingsUseCase_ReadersSeeWholeSettings(t *testing.T) {
	session := newSession()
	uc := NewUpdateSettingsUseCase(session, nil, nil, time.UTC, testLogger())
	defaults := dto.NewSettingsDTO(valueobject.DefaultSmoothingConfig(), valueobject.DefaultRuleSet())

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			// α=0.5 приходит только вместе с двумя правилами, α по умолчанию только с четырьмя
			snapshot := session.Snapshot()
			if snapshot.Smoothing.Alpha == 0.5 {
				assert.Equal(t, 2, snapshot.Rules.Len())
			} else {
				assert.Equal(t, 4, snapshot.Rules.Len())
			}
		}
	}()

	for i := 0; i < 200; i++ {
		settings := defaults
		if i%2 == 0 {
			settings = validSettings(0.5)
		}
		_, err := uc.Execute(context.Background(), settings)
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()
}

func TestUpdateSettingsUseCase_InvalidAlphaKeepsPrevious(t *testing.T) {
	session := newSession()
	store := &fakeSettingsStore{}
	uc := NewUpdateSettingsUseCase(session, store, nil, time.UTC, testLogger())

	_, err := uc.Execute(context.Background(), validSettings(0))
	assert.ErrorIs(t, err, valueobject.ErrInvalidParameter)

	assert.Equal(t, valueobject.DefaultSmoothingConfig(), session.SmoothingConfig())
	assert.Equal(t, 4, session.Rules().Len())
	assert.Nil(t, store.saved)
}

func TestUpdateSettingsUseCase_InvalidRuleKeepsPrevious(t *testing.T) {
	session := newSession()
	uc := NewUpdateSettingsUseCase(session, nil, nil, time.UTC, testLogger())

	settings := validSettings(0.5)
	settings.Rules["humidity"] = dto.RuleDTO{Kind: "range", Upper: 50, Severity: "warning"}

	_, err := uc.Execute(context.Background(), settings)
	assert.ErrorIs(t, err, valueobject.ErrInvalidParameter)
	assert.Equal(t, valueobject.DefaultAlpha, session.SmoothingConfig().Alpha)
}

func TestUpdateSettingsUseCase_PersistFailureStillApplies(t *testing.T) {
	session := newSession()
	store := &fakeSettingsStore{saveErr: errors.New("redis down")}
	uc := NewUpdateSettingsUseCase(session, store, nil, time.UTC, testLogger())

	_, err := uc.Execute(context.Background(), validSettings(0.7))
	require.NoError(t, err)
	assert.Equal(t, 0.7, session.SmoothingConfig().Alpha)
}

func TestUpdateSettingsUseCase_Current(t *testing.T) {
	uc := NewUpdateSettingsUseCase(newSession(), nil, nil, time.UTC, testLogger())

	current := uc.Current()
	assert.True(t, current.Smoothing.Enabled)
	assert.Equal(t, valueobject.DefaultAlpha, current.Smoothing.Alpha)
	require.Contains(t, current.Rules, "humidity")
	require.NotNil(t, current.Rules["humidity"].Lower)
	assert.Equal(t, 30.0, *current.Rules["humidity"].Lower)
}

func TestLoadSettingsUseCase(t *testing.T) {
	t.Run("applies persisted settings", func(t *testing.T) {
		session := newSession()
		store := &fakeSettingsStore{saved: validSettings(0.9)}

		loaded := NewLoadSettingsUseCase(session, store, testLogger()).Execute(context.Background())
		assert.True(t, loaded)
		assert.Equal(t, 0.9, session.SmoothingConfig().Alpha)
		assert.Equal(t, 2, session.Rules().Len())
	})

	t.Run("absent settings keep defaults", func(t *testing.T) {
		session := newSession()
		loaded := NewLoadSettingsUseCase(session, &fakeSettingsStore{}, testLogger()).Execute(context.Background())
		assert.False(t, loaded)
		assert.Equal(t, valueobject.DefaultSmoothingConfig(), session.SmoothingConfig())
	})

	t.Run("load error keeps defaults", func(t *testing.T) {
		session := newSession()
		store := &fakeSettingsStore{loadErr: errors.New("redis down")}
		assert.False(t, NewLoadSettingsUseCase(session, store, testLogger()).Execute(context.Background()))
	})

	t.Run("invalid persisted alpha keeps defaults", func(t *testing.T) {
		session := newSession()
		store := &fakeSettingsStore{saved: validSettings(2)}
		assert.False(t, NewLoadSettingsUseCase(session, store, testLogger()).Execute(context.Background()))
		assert.Equal(t, valueobject.DefaultAlpha, session.SmoothingConfig().Alpha)
	})

	t.Run("no store", func(t *testing.T) {
		assert.False(t, NewLoadSettingsUseCase(newSession(), nil, testLogger()).Execute(context.Background()))
	})
}
