package dto

import (
	"fmt"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

// SmoothingDTO параметры сглаживания
type SmoothingDTO struct {
	Enabled bool    `json:"enabled"`
	Alpha   float64 `json:"alpha"`
}

// RuleDTO пороговое правило одной метрики
type RuleDTO struct {
	Kind     string   `json:"kind"` // "upper_bound", "range"
	Lower    *float64 `json:"lower,omitempty"`
	Upper    float64  `json:"upper"`
	Severity string   `json:"severity"`
}

// SettingsDTO пользовательские настройки: сглаживание и правила
type SettingsDTO struct {
	Smoothing SmoothingDTO       `json:"smoothing"`
	Rules     map[string]RuleDTO `json:"rules"`
}

// NewSmoothingDTO конвертирует конфигурацию сглаживания
func NewSmoothingDTO(cfg valueobject.SmoothingConfig) SmoothingDTO {
	return SmoothingDTO{Enabled: cfg.Enabled, Alpha: cfg.Alpha}
}

// NewSettingsDTO собирает настройки из активной конфигурации
func NewSettingsDTO(cfg valueobject.SmoothingConfig, rules valueobject.RuleSet) *SettingsDTO {
	settings := &SettingsDTO{
		Smoothing: NewSmoothingDTO(cfg),
		Rules:     make(map[string]RuleDTO, rules.Len()),
	}

	for metric, rule := range rules.Rules() {
		r := RuleDTO{
			Kind:     string(rule.Kind()),
			Upper:    rule.Upper(),
			Severity: rule.Severity().String(),
		}
		if rule.Kind() == valueobject.RuleRange {
			lower := rule.Lower()
			r.Lower = &lower
		}
		settings.Rules[metric.String()] = r
	}

	return settings
}

// ToSmoothingConfig конвертирует в Value Object с валидацией α
func (s SmoothingDTO) ToSmoothingConfig() (valueobject.SmoothingConfig, error) {
	cfg := valueobject.SmoothingConfig{Enabled: s.Enabled, Alpha: s.Alpha}
	if err := cfg.Validate(); err != nil {
		return valueobject.SmoothingConfig{}, err
	}
	return cfg, nil
}

// ToRuleSet конвертирует правила в Value Object.
// Любая ошибка в правиле отклоняет весь набор с ErrInvalidParameter.
func (s *SettingsDTO) ToRuleSet() (valueobject.RuleSet, error) {
	rules := make(map[valueobject.MetricName]valueobject.ThresholdRule, len(s.Rules))

	for name, r := range s.Rules {
		metric := valueobject.MetricName(name)
		if err := metric.Validate(); err != nil {
			return valueobject.RuleSet{}, fmt.Errorf("%w: unknown metric %q", valueobject.ErrInvalidParameter, name)
		}

		rule, err := r.toThresholdRule()
		if err != nil {
			return valueobject.RuleSet{}, fmt.Errorf("%w: rule for %s: %v", valueobject.ErrInvalidParameter, name, err)
		}
		rules[metric] = rule
	}

	return valueobject.NewRuleSet(rules), nil
}

func (r RuleDTO) toThresholdRule() (valueobject.ThresholdRule, error) {
	severity := valueobject.Severity(r.Severity)

	switch valueobject.RuleKind(r.Kind) {
	case valueobject.RuleUpperBound:
		return valueobject.NewUpperBoundRule(r.Upper, severity)
	case valueobject.RuleRange:
		if r.Lower == nil {
			return valueobject.ThresholdRule{}, fmt.Errorf("range rule requires lower bound")
		}
		return valueobject.NewRangeRule(*r.Lower, r.Upper, severity)
	default:
		return valueobject.ThresholdRule{}, fmt.Errorf("unknown rule kind %q", r.Kind)
	}
}
