package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/repository"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

const sensorColumns = "id, timestamp, co2_ppm, temperature, humidity, pm1_0, pm2_5, pm10"

// SensorRepository реализует repository.SensorRepository для PostgreSQL и MySQL
type SensorRepository struct {
	db      *sql.DB
	dialect Dialect
}

// NewSensorRepository создает новый SQL repository
func NewSensorRepository(db *sql.DB, dialect Dialect) *SensorRepository {
	return &SensorRepository{
		db:      db,
		dialect: dialect,
	}
}

// EnsureSchema создает таблицу sensor_data, если ее нет
func (r *SensorRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, r.dialect.CreateTable()); err != nil {
		return fmt.Errorf("failed to create sensor_data table: %w", err)
	}
	return nil
}

// Save сохраняет одно наблюдение
func (r *SensorRepository) Save(ctx context.Context, sample *entity.Sample) error {
	model := ToDBModel(sample)

	d := r.dialect
	query := fmt.Sprintf(`
		INSERT INTO sensor_data (timestamp, co2_ppm, temperature, humidity, pm1_0, pm2_5, pm10)
		VALUES (%s, %s, %s, %s, %s, %s, %s)
	`, d.Placeholder(1), d.Placeholder(2), d.Placeholder(3), d.Placeholder(4),
		d.Placeholder(5), d.Placeholder(6), d.Placeholder(7))

	_, err := r.db.ExecContext(ctx, query,
		model.Timestamp,
		model.CO2PPM,
		model.Temperature,
		model.Humidity,
		model.PM1_0,
		model.PM2_5,
		model.PM10,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sensor reading: %w", err)
	}

	return nil
}

// FindLatest находит самое свежее наблюдение
func (r *SensorRepository) FindLatest(ctx context.Context) (*entity.Sample, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sensor_data
		ORDER BY timestamp DESC
		LIMIT 1
	`, sensorColumns)

	row := r.db.QueryRowContext(ctx, query)
	model, err := ScanSensorRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNoReadings
		}
		return nil, fmt.Errorf("failed to scan sensor reading: %w", err)
	}

	return ToEntity(model), nil
}

// FindRecent находит n последних наблюдений, от новых к старым
func (r *SensorRepository) FindRecent(ctx context.Context, n int) ([]*entity.Sample, error) {
	n = repository.NormalizeRecentLimit(n)

	query := fmt.Sprintf(`
		SELECT %s
		FROM sensor_data
		ORDER BY timestamp DESC
		LIMIT %s
	`, sensorColumns, r.dialect.Placeholder(1))

	rows, err := r.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent readings: %w", err)
	}
	defer rows.Close()

	samples := make([]*entity.Sample, 0, n)
	for rows.Next() {
		model, err := ScanSensorRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sensor reading: %w", err)
		}
		samples = append(samples, ToEntity(model))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return samples, nil
}

// FindHourlyAverages считает средние по часам внутри диапазона, по возрастанию
func (r *SensorRepository) FindHourlyAverages(
	ctx context.Context,
	timeRange valueobject.TimeRange,
) (*entity.HourlySummary, error) {
	bucket := r.dialect.HourBucket("timestamp")
	query := fmt.Sprintf(`
		SELECT
			%s AS hour,
			AVG(co2_ppm) AS avg_co2_ppm,
			AVG(temperature) AS avg_temperature,
			AVG(humidity) AS avg_humidity,
			AVG(pm2_5) AS avg_pm2_5
		FROM sensor_data
		WHERE timestamp >= %s AND timestamp <= %s
		GROUP BY %s
		ORDER BY hour ASC
	`, bucket, r.dialect.Placeholder(1), r.dialect.Placeholder(2), bucket)

	rows, err := r.db.QueryContext(ctx, query, timeRange.Start().UTC(), timeRange.End().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly averages: %w", err)
	}
	defer rows.Close()

	summary := &entity.HourlySummary{Hours: []entity.HourlyAverage{}}
	for rows.Next() {
		model, err := ScanHourlyRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hourly average: %w", err)
		}
		summary.Hours = append(summary.Hours, ToHourlyAverage(model))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return summary, nil
}

// Ping проверяет соединение с БД (используется readiness probe)
func (r *SensorRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
