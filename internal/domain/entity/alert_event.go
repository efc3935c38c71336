package entity

import (
	"fmt"
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
	"github.com/google/uuid"
)

// AlertEvent событие нарушения порога. Эфемерно: создается классификатором,
// передается notifier'у и не хранится в ядре.
type AlertEvent struct {
	id        string
	timestamp time.Time
	severity  valueobject.Severity
	metric    valueobject.MetricName
	message   string
	value     float64
	rule      valueobject.ThresholdRule
}

// NewAlertEvent создает событие для сработавшего правила (Factory Method)
func NewAlertEvent(
	metric valueobject.MetricName,
	value float64,
	rule valueobject.ThresholdRule,
	timestamp time.Time,
) *AlertEvent {
	return &AlertEvent{
		id:        uuid.New().String(),
		timestamp: timestamp,
		severity:  rule.Severity(),
		metric:    metric,
		message:   buildAlertMessage(metric, value, rule),
		value:     value,
		rule:      rule,
	}
}

func buildAlertMessage(metric valueobject.MetricName, value float64, rule valueobject.ThresholdRule) string {
	unit := metric.Unit()
	if rule.Kind() == valueobject.RuleUpperBound {
		return fmt.Sprintf("%s is %g %s, too high (limit: %s)",
			metric.DisplayName(), value, unit, rule.Describe(unit))
	}
	return fmt.Sprintf("%s is %g %s, out of range (normal: %s)",
		metric.DisplayName(), value, unit, rule.Describe(unit))
}

// ID возвращает идентификатор события
func (e *AlertEvent) ID() string {
	return e.id
}

// Timestamp возвращает время наблюдения, вызвавшего событие
func (e *AlertEvent) Timestamp() time.Time {
	return e.timestamp
}

// Severity возвращает уровень события
func (e *AlertEvent) Severity() valueobject.Severity {
	return e.severity
}

// Metric возвращает метрику
func (e *AlertEvent) Metric() valueobject.MetricName {
	return e.metric
}

// Message возвращает текст для пользователя
func (e *AlertEvent) Message() string {
	return e.message
}

// Value возвращает значение, нарушившее правило
func (e *AlertEvent) Value() float64 {
	return e.value
}

// Rule возвращает сработавшее правило
func (e *AlertEvent) Rule() valueobject.ThresholdRule {
	return e.rule
}
