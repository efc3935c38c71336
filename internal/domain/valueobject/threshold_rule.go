package valueobject

import (
	"errors"
	"fmt"
	"math"
)

// RuleKind различает правило с верхней границей и правило-диапазон
type RuleKind string

const (
	RuleUpperBound RuleKind = "upper_bound"
	RuleRange      RuleKind = "range"
)

// ThresholdRule описывает допустимые значения одной метрики (Value Object)
// Иммутабельный объект
type ThresholdRule struct {
	kind     RuleKind
	lower    float64
	upper    float64
	severity Severity
}

// NewUpperBoundRule создает правило "alert если value > upper"
func NewUpperBoundRule(upper float64, severity Severity) (ThresholdRule, error) {
	if math.IsNaN(upper) || math.IsInf(upper, 0) {
		return ThresholdRule{}, errors.New("upper bound must be finite")
	}
	if err := severity.Validate(); err != nil {
		return ThresholdRule{}, err
	}

	return ThresholdRule{
		kind:     RuleUpperBound,
		upper:    upper,
		severity: severity,
	}, nil
}

// NewRangeRule создает правило "alert если value вне [lower, upper]"
func NewRangeRule(lower, upper float64, severity Severity) (ThresholdRule, error) {
	if math.IsNaN(lower) || math.IsNaN(upper) || math.IsInf(lower, 0) || math.IsInf(upper, 0) {
		return ThresholdRule{}, errors.New("range bounds must be finite")
	}
	if lower > upper {
		return ThresholdRule{}, errors.New("lower bound must not exceed upper bound")
	}
	if err := severity.Validate(); err != nil {
		return ThresholdRule{}, err
	}

	return ThresholdRule{
		kind:     RuleRange,
		lower:    lower,
		upper:    upper,
		severity: severity,
	}, nil
}

// Kind возвращает тип правила
func (r ThresholdRule) Kind() RuleKind {
	return r.kind
}

// Lower возвращает нижнюю границу (только для RuleRange)
func (r ThresholdRule) Lower() float64 {
	return r.lower
}

// Upper возвращает верхнюю границу
func (r ThresholdRule) Upper() float64 {
	return r.upper
}

// Severity возвращает уровень alert'а, который порождает правило
func (r ThresholdRule) Severity() Severity {
	return r.severity
}

// IsZero сообщает, что правило не было сконструировано
func (r ThresholdRule) IsZero() bool {
	return r.kind == ""
}

// Violated проверяет, нарушает ли значение правило.
// Границы включительно безопасны: value == upper не срабатывает.
func (r ThresholdRule) Violated(value float64) bool {
	switch r.kind {
	case RuleUpperBound:
		return value > r.upper
	case RuleRange:
		return value < r.lower || value > r.upper
	default:
		return false
	}
}

// Describe возвращает описание нормы для сообщений, например "≤ 1000 ppm" или "18-26 °C"
func (r ThresholdRule) Describe(unit string) string {
	switch r.kind {
	case RuleUpperBound:
		return fmt.Sprintf("≤ %g %s", r.upper, unit)
	case RuleRange:
		return fmt.Sprintf("%g-%g %s", r.lower, r.upper, unit)
	default:
		return "no rule"
	}
}

// Equals сравнивает два правила
func (r ThresholdRule) Equals(other ThresholdRule) bool {
	return r.kind == other.kind &&
		r.lower == other.lower &&
		r.upper == other.upper &&
		r.severity == other.severity
}
