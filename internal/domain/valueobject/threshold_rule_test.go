package valueobject

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdRule_Violated(t *testing.T) {
	upper, err := NewUpperBoundRule(1000, SeverityWarning)
	require.NoError(t, err)
	band, err := NewRangeRule(18, 26, SeverityError)
	require.NoError(t, err)

	tests := []struct {
		name  string
		rule  ThresholdRule
		value float64
		want  bool
	}{
		{"below upper", upper, 900, false},
		{"at upper", upper, 1000, false},
		{"above upper", upper, 1000.1, true},
		{"inside range", band, 22, false},
		{"at lower", band, 18, false},
		{"at upper of range", band, 26, false},
		{"below range", band, 17.9, true},
		{"above range", band, 26.5, true},
		{"zero rule never fires", ThresholdRule{}, 1e9, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Violated(tt.value))
		})
	}
}

func TestThresholdRule_Construction(t *testing.T) {
	_, err := NewUpperBoundRule(math.NaN(), SeverityInfo)
	assert.Error(t, err)

	_, err = NewRangeRule(30, 20, SeverityInfo)
	assert.Error(t, err)

	_, err = NewRangeRule(20, 30, Severity("fatal"))
	assert.Error(t, err)
}

func TestThresholdRule_Describe(t *testing.T) {
	upper, _ := NewUpperBoundRule(35, SeverityInfo)
	band, _ := NewRangeRule(30, 50, SeverityWarning)

	assert.Equal(t, "≤ 35 μg/m³", upper.Describe(PM25.Unit()))
	assert.Equal(t, "30-50 %", band.Describe(Humidity.Unit()))
}

func TestRuleSet_CopiesInput(t *testing.T) {
	rule, _ := NewUpperBoundRule(100, SeverityInfo)
	input := map[MetricName]ThresholdRule{CO2: rule, PM25: {}}

	set := NewRuleSet(input)
	delete(input, CO2)

	assert.Equal(t, 1, set.Len())
	_, ok := set.Rule(CO2)
	assert.True(t, ok)
	_, ok = set.Rule(PM25)
	assert.False(t, ok)

	rules := set.Rules()
	delete(rules, CO2)
	assert.Equal(t, 1, set.Len())
}

func TestDefaultRuleSet(t *testing.T) {
	set := DefaultRuleSet()
	assert.Equal(t, 4, set.Len())

	temp, ok := set.Rule(Temperature)
	require.True(t, ok)
	assert.Equal(t, RuleRange, temp.Kind())
	assert.Equal(t, 18.0, temp.Lower())
	assert.Equal(t, 26.0, temp.Upper())
}

func TestRuleSet_ChangedMetrics(t *testing.T) {
	current := DefaultRuleSet()
	assert.Empty(t, current.ChangedMetrics(DefaultRuleSet()))

	rules := DefaultRuleSet().Rules()
	stricter, err := NewUpperBoundRule(800, SeverityWarning)
	require.NoError(t, err)
	rules[CO2] = stricter
	louder, err := NewUpperBoundRule(35, SeverityError)
	require.NoError(t, err)
	rules[PM25] = louder
	delete(rules, Humidity)

	changed := current.ChangedMetrics(NewRuleSet(rules))
	assert.Equal(t, []MetricName{CO2, Humidity, PM25}, changed)

	same, _ := NewUpperBoundRule(1000, SeverityWarning)
	assert.True(t, stricter.Equals(stricter))
	assert.False(t, stricter.Equals(same))
}
