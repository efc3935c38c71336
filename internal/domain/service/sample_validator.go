package service

import (
	"errors"
	"math"
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

// maxClockSkew допустимое опережение часов сенсора
const maxClockSkew = 5 * time.Minute

// SampleValidator проверяет наблюдения перед загрузкой в окно (Domain Service)
type SampleValidator struct {
	now func() time.Time
}

// NewSampleValidator создает новый SampleValidator
func NewSampleValidator() *SampleValidator {
	return &SampleValidator{now: time.Now}
}

// Validate проверяет наблюдение целиком. Ошибка означает, что наблюдение нельзя использовать.
func (v *SampleValidator) Validate(sample *entity.Sample) error {
	if sample == nil {
		return errors.New("sample cannot be nil")
	}

	if sample.Timestamp().IsZero() {
		return errors.New("sample timestamp cannot be zero")
	}

	// Проверка, что наблюдение не из будущего
	if sample.Timestamp().After(v.now().Add(maxClockSkew)) {
		return errors.New("sample timestamp cannot be in the future")
	}

	return nil
}

// Sanitize убирает нечисловые показания (NaN, ±Inf). Такая метрика считается отсутствующей,
// остальные метрики наблюдения обрабатываются как обычно.
func (v *SampleValidator) Sanitize(sample *entity.Sample) (*entity.Sample, []valueobject.MetricName) {
	var dropped []valueobject.MetricName

	for _, metric := range valueobject.AllMetricNames() {
		value, ok := sample.Value(metric)
		if !ok {
			continue
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			dropped = append(dropped, metric)
		}
	}

	if len(dropped) == 0 {
		return sample, nil
	}

	return sample.Without(dropped...), dropped
}

// IsReasonable проверяет, находится ли показание в физически возможных пределах
func (v *SampleValidator) IsReasonable(metric valueobject.MetricName, value float64) bool {
	switch metric {
	case valueobject.CO2:
		// Датчики NDIR обычно ограничены 10000 ppm
		return value >= 0 && value <= 10000
	case valueobject.Temperature:
		return value >= -40 && value <= 85
	case valueobject.Humidity:
		return value >= 0 && value <= 100
	case valueobject.PM25:
		return value >= 0 && value <= 1000
	default:
		return true
	}
}
