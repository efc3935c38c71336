package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

// DefaultLabelLayout формат метки времени на оси графика (часы:минуты)
const DefaultLabelLayout = "15:04"

// SessionState состояние сессии
type SessionState string

const (
	SessionEmpty     SessionState = "empty"
	SessionPopulated SessionState = "populated"
)

// SessionConfig параметры TelemetrySession
type SessionConfig struct {
	Capacity          int
	Smoothing         valueobject.SmoothingConfig
	Rules             valueobject.RuleSet
	TruncateOnRefresh bool
	LabelLayout       string
	Location          *time.Location
}

// DefaultSessionConfig возвращает конфигурацию по умолчанию: окно 50, α=0.3, правила чистого помещения
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Capacity:    DefaultWindowCapacity,
		Smoothing:   valueobject.DefaultSmoothingConfig(),
		Rules:       valueobject.DefaultRuleSet(),
		LabelLayout: DefaultLabelLayout,
		Location:    time.Local,
	}
}

// PushResult результат обработки одного наблюдения
type PushResult struct {
	Events  []*entity.AlertEvent
	Changed bool
}

// BatchResult результат полной загрузки
type BatchResult struct {
	Changed bool
	Points  int
}

// SessionSnapshot неизменяемый снимок состояния сессии для внешних потребителей
type SessionSnapshot struct {
	State        SessionState
	Capacity     int
	Series       []entity.MetricSeries
	Hourly       *entity.HourlySummary
	Smoothing    valueobject.SmoothingConfig
	Rules        valueobject.RuleSet
	LastAccepted time.Time
}

// TelemetrySession владеет окнами метрик, активной конфигурацией сглаживания и правилами (Aggregate Root)
// Все операции выполняются под одним мьютексом, поэтому читатель никогда не видит
// окно в середине вытеснения или частично обновленную конфигурацию.
type TelemetrySession struct {
	mu sync.RWMutex

	buffer       *SeriesBuffer
	classifier   *AnomalyClassifier
	rules        valueobject.RuleSet
	hourly       *entity.HourlySummary
	lastAccepted time.Time
	state        SessionState

	labelLayout string
	location    *time.Location
}

// NewTelemetrySession создает сессию в состоянии Empty
func NewTelemetrySession(cfg SessionConfig) (*TelemetrySession, error) {
	buffer, err := NewSeriesBuffer(cfg.Capacity, cfg.Smoothing, WithTruncateOnReplace(cfg.TruncateOnRefresh))
	if err != nil {
		return nil, fmt.Errorf("failed to create series buffer: %w", err)
	}

	if cfg.LabelLayout == "" {
		cfg.LabelLayout = DefaultLabelLayout
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	return &TelemetrySession{
		buffer:      buffer,
		classifier:  NewAnomalyClassifier(),
		rules:       valueobject.NewRuleSet(cfg.Rules.Rules()),
		state:       SessionEmpty,
		labelLayout: cfg.LabelLayout,
		location:    cfg.Location,
	}, nil
}

// IngestPush обрабатывает новое наблюдение из опроса.
// Наблюдение с временем, равным последнему принятому, считается дубликатом и игнорируется:
// окна не меняются, классификатор не вызывается, событий нет.
// Более старое наблюдение классифицируется и добавляется в конец окна,
// а время дедупликации остается на самом свежем принятом.
func (s *TelemetrySession) IngestPush(sample *entity.Sample) (PushResult, error) {
	if sample == nil {
		return PushResult{}, fmt.Errorf("sample cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lastAccepted.IsZero() && sample.Timestamp().Equal(s.lastAccepted) {
		return PushResult{}, nil
	}

	events := s.classifier.Evaluate(sample, s.rules)

	label := s.label(sample.Timestamp())
	for _, metric := range valueobject.AllMetricNames() {
		value, ok := sample.Value(metric)
		if !ok {
			continue
		}
		if err := s.buffer.Append(metric, value, label); err != nil {
			return PushResult{}, fmt.Errorf("failed to append %s: %w", metric, err)
		}
	}

	if sample.IsNewerThan(s.lastAccepted) {
		s.lastAccepted = sample.Timestamp()
	}
	s.state = SessionPopulated

	return PushResult{Events: events, Changed: true}, nil
}

// IngestBatch заменяет окна целиком историческими данными.
// Наблюдения упорядочиваются от старых к новым независимо от порядка доставки.
// Классификатор не вызывается. Время дедупликации сдвигается только вперед.
// Пустой пакет не трогает окна, но сохраняет часовую сводку.
func (s *TelemetrySession) IngestBatch(samples []*entity.Sample, hourly *entity.HourlySummary) (BatchResult, error) {
	ordered := make([]*entity.Sample, 0, len(samples))
	for _, sample := range samples {
		if sample != nil {
			ordered = append(ordered, sample)
		}
	}
	ordered = NewSeriesAggregator().SortByTime(ordered, false)

	type metricBatch struct {
		raw    []float64
		labels []string
	}

	batches := make(map[valueobject.MetricName]*metricBatch, len(valueobject.AllMetricNames()))
	for _, metric := range valueobject.AllMetricNames() {
		batches[metric] = &metricBatch{raw: []float64{}, labels: []string{}}
	}

	for _, sample := range ordered {
		label := s.label(sample.Timestamp())
		for _, metric := range valueobject.AllMetricNames() {
			value, ok := sample.Value(metric)
			if !ok {
				continue
			}
			batches[metric].raw = append(batches[metric].raw, value)
			batches[metric].labels = append(batches[metric].labels, label)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if hourly != nil {
		s.hourly = hourly.Clone()
	}

	if len(ordered) == 0 {
		return BatchResult{}, nil
	}

	// raw и labels собираются попарно, поэтому ReplaceAll здесь не может вернуть ErrLengthMismatch
	for _, metric := range valueobject.AllMetricNames() {
		batch := batches[metric]
		if err := s.buffer.ReplaceAll(metric, batch.raw, batch.labels); err != nil {
			return BatchResult{}, fmt.Errorf("failed to replace %s: %w", metric, err)
		}
	}
	points := s.buffer.TotalPoints()

	if newest := ordered[len(ordered)-1]; newest.IsNewerThan(s.lastAccepted) {
		s.lastAccepted = newest.Timestamp()
	}
	s.state = SessionPopulated

	return BatchResult{Changed: true, Points: points}, nil
}

// UpdateSmoothingConfig сохраняет новую конфигурацию и синхронно пересчитывает все сглаженные серии.
// При невалидном α возвращает ErrInvalidParameter, предыдущая конфигурация остается активной.
func (s *TelemetrySession) UpdateSmoothingConfig(cfg valueobject.SmoothingConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buffer.SetSmoothing(cfg)
}

// UpdateRules атомарно заменяет набор правил; применяется со следующего IngestPush
func (s *TelemetrySession) UpdateRules(rules valueobject.RuleSet) {
	copied := valueobject.NewRuleSet(rules.Rules())

	s.mu.Lock()
	s.rules = copied
	s.mu.Unlock()
}

// ApplySettings под одной блокировкой заменяет конфигурацию сглаживания и набор правил.
// Читатели видят либо прежние настройки целиком, либо новые. При невалидном α не меняется ничего.
// Возвращает метрики, правило которых изменилось.
func (s *TelemetrySession) ApplySettings(cfg valueobject.SmoothingConfig, rules valueobject.RuleSet) ([]valueobject.MetricName, error) {
	copied := valueobject.NewRuleSet(rules.Rules())

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.buffer.SetSmoothing(cfg); err != nil {
		return nil, err
	}
	changed := s.rules.ChangedMetrics(copied)
	s.rules = copied

	return changed, nil
}

// CurrentSeries возвращает копию окна метрики
func (s *TelemetrySession) CurrentSeries(metric valueobject.MetricName) entity.MetricSeries {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.buffer.CurrentSeries(metric)
}

// Snapshot возвращает согласованный снимок всех окон и конфигурации
func (s *TelemetrySession) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := make([]entity.MetricSeries, 0, len(valueobject.AllMetricNames()))
	for _, metric := range valueobject.AllMetricNames() {
		series = append(series, s.buffer.CurrentSeries(metric))
	}

	return SessionSnapshot{
		State:        s.state,
		Capacity:     s.buffer.Capacity(),
		Series:       series,
		Hourly:       s.hourly.Clone(),
		Smoothing:    s.buffer.Smoothing(),
		Rules:        valueobject.NewRuleSet(s.rules.Rules()),
		LastAccepted: s.lastAccepted,
	}
}

// SmoothingConfig возвращает активную конфигурацию сглаживания
func (s *TelemetrySession) SmoothingConfig() valueobject.SmoothingConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.buffer.Smoothing()
}

// Rules возвращает копию активного набора правил
func (s *TelemetrySession) Rules() valueobject.RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return valueobject.NewRuleSet(s.rules.Rules())
}

// State возвращает состояние сессии
func (s *TelemetrySession) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// LastAccepted возвращает время последнего принятого наблюдения
func (s *TelemetrySession) LastAccepted() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastAccepted
}

// TotalPoints возвращает суммарное количество точек во всех окнах
func (s *TelemetrySession) TotalPoints() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.buffer.TotalPoints()
}

func (s *TelemetrySession) label(t time.Time) string {
	return t.In(s.location).Format(s.labelLayout)
}
