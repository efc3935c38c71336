package service

import (
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

// AnomalyClassifier проверяет наблюдение по пороговым правилам (Domain Service)
// Не хранит состояния: повторный вызов с тем же наблюдением дает те же события.
type AnomalyClassifier struct{}

// NewAnomalyClassifier создает новый AnomalyClassifier
func NewAnomalyClassifier() *AnomalyClassifier {
	return &AnomalyClassifier{}
}

// Evaluate возвращает события для всех нарушенных правил.
// Метрики обходятся в порядке AllMetricNames, поэтому порядок событий воспроизводим.
// Метрика без правила или без показания пропускается.
func (c *AnomalyClassifier) Evaluate(sample *entity.Sample, rules valueobject.RuleSet) []*entity.AlertEvent {
	if sample == nil {
		return nil
	}

	var events []*entity.AlertEvent
	for _, metric := range valueobject.AllMetricNames() {
		rule, ok := rules.Rule(metric)
		if !ok {
			continue
		}

		value, ok := sample.Value(metric)
		if !ok {
			continue
		}

		if rule.Violated(value) {
			events = append(events, entity.NewAlertEvent(metric, value, rule, sample.Timestamp()))
		}
	}

	return events
}
