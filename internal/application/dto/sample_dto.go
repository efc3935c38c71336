package dto

import (
	"strconv"
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

// ReadingTimeLayout формат времени в ответах /api/latest и /api/recent
const ReadingTimeLayout = "2006-01-02 15:04:05"

// HourTimeLayout формат часа в ответе /api/hourly-avg
const HourTimeLayout = "2006-01-02 15:00:00"

// Ключи дополнительных показаний, которые не классифицируются
const (
	ExtraPM1_0 = "pm1_0"
	ExtraPM10  = "pm10"
)

// SampleDTO представляет строку sensor_data в формате исходного API.
// Отсутствующие показания сериализуются как null.
type SampleDTO struct {
	ID          int64    `json:"id"`
	Timestamp   string   `json:"timestamp"`
	CO2PPM      *float64 `json:"co2_ppm"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	PM1_0       *float64 `json:"pm1_0"`
	PM2_5       *float64 `json:"pm2_5"`
	PM10        *float64 `json:"pm10"`
}

// FromSample конвертирует Domain Entity в DTO
func FromSample(sample *entity.Sample, loc *time.Location) *SampleDTO {
	if loc == nil {
		loc = time.Local
	}

	id, _ := strconv.ParseInt(sample.ID(), 10, 64)
	extra := sample.Extra()

	return &SampleDTO{
		ID:          id,
		Timestamp:   sample.Timestamp().In(loc).Format(ReadingTimeLayout),
		CO2PPM:      readingPtr(sample, valueobject.CO2),
		Temperature: readingPtr(sample, valueobject.Temperature),
		Humidity:    readingPtr(sample, valueobject.Humidity),
		PM1_0:       extraPtr(extra, ExtraPM1_0),
		PM2_5:       readingPtr(sample, valueobject.PM25),
		PM10:        extraPtr(extra, ExtraPM10),
	}
}

// ToSampleDTOs конвертирует слайс Entity в слайс DTO
func ToSampleDTOs(samples []*entity.Sample, loc *time.Location) []*SampleDTO {
	dtos := make([]*SampleDTO, len(samples))
	for i, s := range samples {
		dtos[i] = FromSample(s, loc)
	}
	return dtos
}

// ToEntity восстанавливает наблюдение; время интерпретируется в loc
func (d *SampleDTO) ToEntity(loc *time.Location) (*entity.Sample, error) {
	if loc == nil {
		loc = time.Local
	}

	ts, err := time.ParseInLocation(ReadingTimeLayout, d.Timestamp, loc)
	if err != nil {
		return nil, err
	}

	readings := make(map[valueobject.MetricName]float64, 4)
	setReading(readings, valueobject.CO2, d.CO2PPM)
	setReading(readings, valueobject.Temperature, d.Temperature)
	setReading(readings, valueobject.Humidity, d.Humidity)
	setReading(readings, valueobject.PM25, d.PM2_5)

	extra := make(map[string]float64, 2)
	if d.PM1_0 != nil {
		extra[ExtraPM1_0] = *d.PM1_0
	}
	if d.PM10 != nil {
		extra[ExtraPM10] = *d.PM10
	}

	id := ""
	if d.ID != 0 {
		id = strconv.FormatInt(d.ID, 10)
	}

	return entity.Reconstruct(id, ts, readings, extra), nil
}

// HourlyAverageDTO представляет строку ответа /api/hourly-avg
type HourlyAverageDTO struct {
	Hour           string   `json:"hour"`
	AvgCO2PPM      *float64 `json:"avg_co2_ppm"`
	AvgTemperature *float64 `json:"avg_temperature"`
	AvgHumidity    *float64 `json:"avg_humidity"`
	AvgPM2_5       *float64 `json:"avg_pm2_5"`
}

// FromHourlySummary конвертирует часовую сводку в формат исходного API
func FromHourlySummary(summary *entity.HourlySummary, loc *time.Location) []*HourlyAverageDTO {
	if loc == nil {
		loc = time.Local
	}
	if summary == nil {
		return []*HourlyAverageDTO{}
	}

	dtos := make([]*HourlyAverageDTO, 0, len(summary.Hours))
	for _, h := range summary.Hours {
		dtos = append(dtos, &HourlyAverageDTO{
			Hour:           h.Hour.In(loc).Format(HourTimeLayout),
			AvgCO2PPM:      averagePtr(h.Averages, valueobject.CO2),
			AvgTemperature: averagePtr(h.Averages, valueobject.Temperature),
			AvgHumidity:    averagePtr(h.Averages, valueobject.Humidity),
			AvgPM2_5:       averagePtr(h.Averages, valueobject.PM25),
		})
	}
	return dtos
}

// ToHourlySummary восстанавливает часовую сводку; строки с нераспознанным часом пропускаются
func ToHourlySummary(dtos []*HourlyAverageDTO, loc *time.Location) *entity.HourlySummary {
	if loc == nil {
		loc = time.Local
	}

	summary := &entity.HourlySummary{Hours: make([]entity.HourlyAverage, 0, len(dtos))}
	for _, d := range dtos {
		hour, err := time.ParseInLocation(HourTimeLayout, d.Hour, loc)
		if err != nil {
			continue
		}
		averages := make(map[valueobject.MetricName]float64, 4)
		setReading(averages, valueobject.CO2, d.AvgCO2PPM)
		setReading(averages, valueobject.Temperature, d.AvgTemperature)
		setReading(averages, valueobject.Humidity, d.AvgHumidity)
		setReading(averages, valueobject.PM25, d.AvgPM2_5)
		summary.Hours = append(summary.Hours, entity.HourlyAverage{Hour: hour, Averages: averages})
	}
	return summary
}

func readingPtr(sample *entity.Sample, metric valueobject.MetricName) *float64 {
	if v, ok := sample.Value(metric); ok {
		return &v
	}
	return nil
}

func extraPtr(extra map[string]float64, key string) *float64 {
	if v, ok := extra[key]; ok {
		return &v
	}
	return nil
}

func averagePtr(averages map[valueobject.MetricName]float64, metric valueobject.MetricName) *float64 {
	if v, ok := averages[metric]; ok {
		return &v
	}
	return nil
}

func setReading(dst map[valueobject.MetricName]float64, metric valueobject.MetricName, v *float64) {
	if v != nil {
		dst[metric] = *v
	}
}
