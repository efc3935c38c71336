package valueobject

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSmoothingConfig_Validate(t *testing.T) {
	tests := []struct {
		alpha   float64
		wantErr bool
	}{
		{0.3, false},
		{1, false},
		{0.0001, false},
		{0, true},
		{-0.5, true},
		{1.01, true},
		{math.NaN(), true},
	}

	for _, tt := range tests {
		err := SmoothingConfig{Enabled: true, Alpha: tt.alpha}.Validate()
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidParameter, "alpha %v", tt.alpha)
		} else {
			assert.NoError(t, err, "alpha %v", tt.alpha)
		}
	}
}

func TestSmoothingConfig_EffectiveAlpha(t *testing.T) {
	assert.Equal(t, 0.3, DefaultSmoothingConfig().EffectiveAlpha())
	assert.Equal(t, 1.0, SmoothingConfig{Enabled: false, Alpha: 0.3}.EffectiveAlpha())
}

func TestMetricName(t *testing.T) {
	assert.Equal(t, []MetricName{CO2, Temperature, Humidity, PM25}, AllMetricNames())
	assert.NoError(t, CO2.Validate())
	assert.Error(t, MetricName("voc").Validate())
	assert.Equal(t, "ppm", CO2.Unit())
}
