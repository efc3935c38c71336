package sqlstore

import (
	"fmt"
	"strings"
)

// Dialect скрывает различия SQL между PostgreSQL и MySQL
type Dialect interface {
	// Name возвращает имя драйвера database/sql
	Name() string

	// Placeholder возвращает плейсхолдер n-го параметра (с 1)
	Placeholder(n int) string

	// HourBucket возвращает выражение, усекающее колонку до начала часа
	HourBucket(column string) string

	// CreateTable возвращает DDL таблицы sensor_data
	CreateTable() string
}

// Поддерживаемые драйверы
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// DialectFor возвращает диалект для драйвера
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case DriverPostgres, "postgresql":
		return postgresDialect{}, nil
	case DriverMySQL:
		return mysqlDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return DriverPostgres }

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) HourBucket(column string) string {
	return fmt.Sprintf("date_trunc('hour', %s)", column)
}

func (postgresDialect) CreateTable() string {
	return `
		CREATE TABLE IF NOT EXISTS sensor_data (
			id BIGSERIAL PRIMARY KEY,
			timestamp TIMESTAMP NOT NULL,
			co2_ppm DOUBLE PRECISION,
			temperature DOUBLE PRECISION,
			humidity DOUBLE PRECISION,
			pm1_0 DOUBLE PRECISION,
			pm2_5 DOUBLE PRECISION,
			pm10 DOUBLE PRECISION
		);
		CREATE INDEX IF NOT EXISTS idx_sensor_data_timestamp ON sensor_data (timestamp DESC);
	`
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return DriverMySQL }

func (mysqlDialect) Placeholder(int) string { return "?" }

// TIMESTAMP() возвращает DATETIME, поэтому драйвер с parseTime=true отдает time.Time
func (mysqlDialect) HourBucket(column string) string {
	return fmt.Sprintf("TIMESTAMP(DATE_FORMAT(%s, '%%Y-%%m-%%d %%H:00:00'))", column)
}

func (mysqlDialect) CreateTable() string {
	return `
		CREATE TABLE IF NOT EXISTS sensor_data (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			co2_ppm DOUBLE NULL,
			temperature DOUBLE NULL,
			humidity DOUBLE NULL,
			pm1_0 DOUBLE NULL,
			pm2_5 DOUBLE NULL,
			pm10 DOUBLE NULL,
			INDEX idx_sensor_data_timestamp (timestamp)
		)
	`
}
