package valueobject

// RuleSet набор правил по метрикам (Value Object)
// Копируется при создании и при чтении, поэтому внешний код не может изменить активный набор.
type RuleSet struct {
	rules map[MetricName]ThresholdRule
}

// NewRuleSet создает набор правил; пустые правила отбрасываются
func NewRuleSet(rules map[MetricName]ThresholdRule) RuleSet {
	copied := make(map[MetricName]ThresholdRule, len(rules))
	for metric, rule := range rules {
		if rule.IsZero() {
			continue
		}
		copied[metric] = rule
	}
	return RuleSet{rules: copied}
}

// DefaultRuleSet возвращает правила по умолчанию для чистого помещения
func DefaultRuleSet() RuleSet {
	co2, _ := NewUpperBoundRule(1000, SeverityWarning)
	temperature, _ := NewRangeRule(18, 26, SeverityError)
	humidity, _ := NewRangeRule(30, 50, SeverityWarning)
	pm25, _ := NewUpperBoundRule(35, SeverityInfo)

	return NewRuleSet(map[MetricName]ThresholdRule{
		CO2:         co2,
		Temperature: temperature,
		Humidity:    humidity,
		PM25:        pm25,
	})
}

// Rule возвращает правило для метрики
func (s RuleSet) Rule(metric MetricName) (ThresholdRule, bool) {
	rule, ok := s.rules[metric]
	return rule, ok
}

// Rules возвращает копию всех правил
func (s RuleSet) Rules() map[MetricName]ThresholdRule {
	result := make(map[MetricName]ThresholdRule, len(s.rules))
	for metric, rule := range s.rules {
		result[metric] = rule
	}
	return result
}

// Len возвращает количество правил
func (s RuleSet) Len() int {
	return len(s.rules)
}

// ChangedMetrics возвращает метрики, правило которых в next отличается (добавлено, удалено или изменено),
// в порядке AllMetricNames
func (s RuleSet) ChangedMetrics(next RuleSet) []MetricName {
	changed := make([]MetricName, 0)
	for _, metric := range AllMetricNames() {
		current, hasCurrent := s.rules[metric]
		updated, hasUpdated := next.rules[metric]
		if hasCurrent != hasUpdated || (hasCurrent && !current.Equals(updated)) {
			changed = append(changed, metric)
		}
	}
	return changed
}
