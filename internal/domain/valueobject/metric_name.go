package valueobject

import "errors"

// MetricName идентифицирует измеряемую величину сенсора (Value Object)
type MetricName string

const (
	CO2         MetricName = "co2"
	Temperature MetricName = "temperature"
	Humidity    MetricName = "humidity"
	PM25        MetricName = "pm25"
)

// Validate проверяет, что метрика входит в набор отслеживаемых
func (m MetricName) Validate() error {
	switch m {
	case CO2, Temperature, Humidity, PM25:
		return nil
	default:
		return errors.New("invalid metric name")
	}
}

// String возвращает строковое представление метрики
func (m MetricName) String() string {
	return string(m)
}

// Unit возвращает единицу измерения метрики
func (m MetricName) Unit() string {
	switch m {
	case CO2:
		return "ppm"
	case Temperature:
		return "°C"
	case Humidity:
		return "%"
	case PM25:
		return "μg/m³"
	default:
		return ""
	}
}

// DisplayName возвращает человекочитаемое имя для сообщений
func (m MetricName) DisplayName() string {
	switch m {
	case CO2:
		return "CO₂"
	case Temperature:
		return "Temperature"
	case Humidity:
		return "Humidity"
	case PM25:
		return "PM2.5"
	default:
		return string(m)
	}
}

// AllMetricNames возвращает метрики в фиксированном порядке оценки:
// CO₂, температура, влажность, PM2.5.
func AllMetricNames() []MetricName {
	return []MetricName{CO2, Temperature, Humidity, PM25}
}
