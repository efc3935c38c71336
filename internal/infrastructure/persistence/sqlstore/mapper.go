package sqlstore

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

// Дополнительные показания, которые хранятся, но не классифицируются
const (
	extraPM1_0 = "pm1_0"
	extraPM10  = "pm10"
)

// SensorDataModel представляет строку sensor_data
type SensorDataModel struct {
	ID          int64
	Timestamp   time.Time
	CO2PPM      sql.NullFloat64
	Temperature sql.NullFloat64
	Humidity    sql.NullFloat64
	PM1_0       sql.NullFloat64
	PM2_5       sql.NullFloat64
	PM10        sql.NullFloat64
}

// HourlyAverageModel представляет строку часовой агрегации
type HourlyAverageModel struct {
	Hour           time.Time
	AvgCO2PPM      sql.NullFloat64
	AvgTemperature sql.NullFloat64
	AvgHumidity    sql.NullFloat64
	AvgPM2_5       sql.NullFloat64
}

// ToDBModel конвертирует Domain Entity в DB Model.
// Время хранится в UTC: колонка timestamp не содержит часового пояса.
func ToDBModel(sample *entity.Sample) *SensorDataModel {
	id, _ := strconv.ParseInt(sample.ID(), 10, 64)
	extra := sample.Extra()

	return &SensorDataModel{
		ID:          id,
		Timestamp:   sample.Timestamp().UTC(),
		CO2PPM:      readingToNull(sample, valueobject.CO2),
		Temperature: readingToNull(sample, valueobject.Temperature),
		Humidity:    readingToNull(sample, valueobject.Humidity),
		PM1_0:       extraToNull(extra, extraPM1_0),
		PM2_5:       readingToNull(sample, valueobject.PM25),
		PM10:        extraToNull(extra, extraPM10),
	}
}

// ToEntity конвертирует DB Model в Domain Entity; NULL колонки становятся отсутствующими показаниями
func ToEntity(model *SensorDataModel) *entity.Sample {
	readings := make(map[valueobject.MetricName]float64, 4)
	setFromNull(readings, valueobject.CO2, model.CO2PPM)
	setFromNull(readings, valueobject.Temperature, model.Temperature)
	setFromNull(readings, valueobject.Humidity, model.Humidity)
	setFromNull(readings, valueobject.PM25, model.PM2_5)

	extra := make(map[string]float64, 2)
	if model.PM1_0.Valid {
		extra[extraPM1_0] = model.PM1_0.Float64
	}
	if model.PM10.Valid {
		extra[extraPM10] = model.PM10.Float64
	}

	return entity.Reconstruct(strconv.FormatInt(model.ID, 10), model.Timestamp.UTC(), readings, extra)
}

// ToHourlyAverage конвертирует строку агрегации
func ToHourlyAverage(model *HourlyAverageModel) entity.HourlyAverage {
	averages := make(map[valueobject.MetricName]float64, 4)
	setFromNull(averages, valueobject.CO2, model.AvgCO2PPM)
	setFromNull(averages, valueobject.Temperature, model.AvgTemperature)
	setFromNull(averages, valueobject.Humidity, model.AvgHumidity)
	setFromNull(averages, valueobject.PM25, model.AvgPM2_5)

	return entity.HourlyAverage{Hour: model.Hour.UTC(), Averages: averages}
}

// ScanSensorRow сканирует строку sensor_data
func ScanSensorRow(scanner interface {
	Scan(dest ...interface{}) error
}) (*SensorDataModel, error) {
	var model SensorDataModel
	err := scanner.Scan(
		&model.ID,
		&model.Timestamp,
		&model.CO2PPM,
		&model.Temperature,
		&model.Humidity,
		&model.PM1_0,
		&model.PM2_5,
		&model.PM10,
	)
	if err != nil {
		return nil, err
	}
	return &model, nil
}

// ScanHourlyRow сканирует строку часовой агрегации
func ScanHourlyRow(scanner interface {
	Scan(dest ...interface{}) error
}) (*HourlyAverageModel, error) {
	var model HourlyAverageModel
	err := scanner.Scan(
		&model.Hour,
		&model.AvgCO2PPM,
		&model.AvgTemperature,
		&model.AvgHumidity,
		&model.AvgPM2_5,
	)
	if err != nil {
		return nil, err
	}
	return &model, nil
}

func readingToNull(sample *entity.Sample, metric valueobject.MetricName) sql.NullFloat64 {
	v, ok := sample.Value(metric)
	return sql.NullFloat64{Float64: v, Valid: ok}
}

func extraToNull(extra map[string]float64, key string) sql.NullFloat64 {
	v, ok := extra[key]
	return sql.NullFloat64{Float64: v, Valid: ok}
}

func setFromNull(dst map[valueobject.MetricName]float64, metric valueobject.MetricName, v sql.NullFloat64) {
	if v.Valid {
		dst[metric] = v.Float64
	}
}
