package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/repository"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

var testTime = time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)

func newMockRepository(t *testing.T, driver string) (*SensorRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dialect, err := DialectFor(driver)
	require.NoError(t, err)

	return NewSensorRepository(db, dialect), mock
}

func sensorRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "timestamp", "co2_ppm", "temperature", "humidity", "pm1_0", "pm2_5", "pm10"})
}

func TestSensorRepository_FindLatest(t *testing.T) {
	repo, mock := newMockRepository(t, DriverPostgres)

	mock.ExpectQuery(regexp.QuoteMeta("FROM sensor_data")).
		WillReturnRows(sensorRows().AddRow(42, testTime, 612.5, 21.3, nil, 1.1, 3.4, 5.6))

	sample, err := repo.FindLatest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "42", sample.ID())
	assert.Equal(t, testTime, sample.Timestamp())

	co2, ok := sample.Value(valueobject.CO2)
	assert.True(t, ok)
	assert.Equal(t, 612.5, co2)

	_, ok = sample.Value(valueobject.Humidity)
	assert.False(t, ok, "NULL column should be a missing reading")

	assert.Equal(t, map[string]float64{"pm1_0": 1.1, "pm10": 5.6}, sample.Extra())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSensorRepository_FindLatestEmpty(t *testing.T) {
	repo, mock := newMockRepository(t, DriverMySQL)

	mock.ExpectQuery("SELECT (.+) FROM sensor_data").WillReturnRows(sensorRows())

	_, err := repo.FindLatest(context.Background())
	assert.ErrorIs(t, err, repository.ErrNoReadings)
}

func TestSensorRepository_FindLatestError(t *testing.T) {
	repo, mock := newMockRepository(t, DriverPostgres)

	mock.ExpectQuery("SELECT (.+) FROM sensor_data").WillReturnError(errors.New("connection reset"))

	_, err := repo.FindLatest(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrNoReadings)
}

func TestSensorRepository_FindRecent(t *testing.T) {
	tests := []struct {
		name        string
		driver      string
		n           int
		wantLimit   int
		placeholder string
	}{
		{"postgres", DriverPostgres, 10, 10, "LIMIT $1"},
		{"mysql", DriverMySQL, 10, 10, "LIMIT ?"},
		{"out of range falls back to default", DriverPostgres, 5000, 50, "LIMIT $1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepository(t, tt.driver)

			mock.ExpectQuery(regexp.QuoteMeta(tt.placeholder)).
				WithArgs(tt.wantLimit).
				WillReturnRows(sensorRows().
					AddRow(2, testTime.Add(time.Minute), 500, 22, 40, nil, 3, nil).
					AddRow(1, testTime, 510, 22.1, 41, nil, 3.2, nil))

			samples, err := repo.FindRecent(context.Background(), tt.n)
			require.NoError(t, err)
			require.Len(t, samples, 2)
			assert.True(t, samples[0].Timestamp().After(samples[1].Timestamp()))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSensorRepository_FindHourlyAverages(t *testing.T) {
	repo, mock := newMockRepository(t, DriverPostgres)

	timeRange, err := valueobject.NewTimeRangeEndingAt(testTime, 24*time.Hour)
	require.NoError(t, err)

	hour := testTime.Truncate(time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("date_trunc('hour', timestamp)")).
		WithArgs(timeRange.Start(), timeRange.End()).
		WillReturnRows(sqlmock.NewRows([]string{"hour", "avg_co2_ppm", "avg_temperature", "avg_humidity", "avg_pm2_5"}).
			AddRow(hour.Add(-time.Hour), 480.0, 21.5, 44.0, nil).
			AddRow(hour, 520.0, 22.0, 45.5, 4.2))

	summary, err := repo.FindHourlyAverages(context.Background(), timeRange)
	require.NoError(t, err)
	require.Len(t, summary.Hours, 2)

	assert.Equal(t, hour.Add(-time.Hour), summary.Hours[0].Hour)
	_, ok := summary.Hours[0].Averages[valueobject.PM25]
	assert.False(t, ok)
	assert.Equal(t, 4.2, summary.Hours[1].Averages[valueobject.PM25])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSensorRepository_FindHourlyAveragesMySQL(t *testing.T) {
	repo, mock := newMockRepository(t, DriverMySQL)

	timeRange, err := valueobject.NewTimeRangeEndingAt(testTime, 24*time.Hour)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("TIMESTAMP(DATE_FORMAT(timestamp, '%Y-%m-%d %H:00:00'))")).
		WithArgs(timeRange.Start(), timeRange.End()).
		WillReturnRows(sqlmock.NewRows([]string{"hour", "avg_co2_ppm", "avg_temperature", "avg_humidity", "avg_pm2_5"}))

	summary, err := repo.FindHourlyAverages(context.Background(), timeRange)
	require.NoError(t, err)
	assert.Empty(t, summary.Hours)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSensorRepository_Save(t *testing.T) {
	repo, mock := newMockRepository(t, DriverPostgres)

	sample := entity.Reconstruct("", testTime, map[valueobject.MetricName]float64{
		valueobject.CO2:         455,
		valueobject.Temperature: 21.7,
	}, map[string]float64{"pm10": 8})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sensor_data")).
		WithArgs(
			testTime,
			sql.NullFloat64{Float64: 455, Valid: true},
			sql.NullFloat64{Float64: 21.7, Valid: true},
			sql.NullFloat64{},
			sql.NullFloat64{},
			sql.NullFloat64{},
			sql.NullFloat64{Float64: 8, Valid: true},
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Save(context.Background(), sample))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// utcTimeArg совпадает со временем в UTC, равным want
type utcTimeArg struct {
	want time.Time
}

func (a utcTimeArg) Match(v driver.Value) bool {
	ts, ok := v.(time.Time)
	return ok && ts.Location() == time.UTC && ts.Equal(a.want)
}

func TestSensorRepository_NonUTCTimestampRoundTrip(t *testing.T) {
	repo, mock := newMockRepository(t, DriverPostgres)

	tokyo := time.FixedZone("UTC+9", 9*60*60)
	posted := time.Date(2026, 3, 1, 10, 0, 0, 0, tokyo)
	stored := time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC)

	sample := entity.Reconstruct("", posted, map[valueobject.MetricName]float64{
		valueobject.CO2: 640,
	}, nil)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sensor_data")).
		WithArgs(utcTimeArg{want: stored}, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Save(context.Background(), sample))

	// TIMESTAMP без пояса возвращается как UTC wall clock
	mock.ExpectQuery(regexp.QuoteMeta("FROM sensor_data")).
		WillReturnRows(sensorRows().AddRow(1, stored, 640.0, nil, nil, nil, nil, nil))

	latest, err := repo.FindLatest(context.Background())
	require.NoError(t, err)
	assert.True(t, latest.Timestamp().Equal(posted), "got %s, want %s", latest.Timestamp(), posted)
	assert.Equal(t, "10:00", latest.Timestamp().In(tokyo).Format("15:04"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSensorRepository_HourlyRangeSentInUTC(t *testing.T) {
	repo, mock := newMockRepository(t, DriverPostgres)

	tokyo := time.FixedZone("UTC+9", 9*60*60)
	end := time.Date(2026, 3, 1, 10, 0, 0, 0, tokyo)
	timeRange, err := valueobject.NewTimeRangeEndingAt(end, 24*time.Hour)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("date_trunc('hour', timestamp)")).
		WithArgs(utcTimeArg{want: end.Add(-24 * time.Hour)}, utcTimeArg{want: end}).
		WillReturnRows(sqlmock.NewRows([]string{"hour", "avg_co2_ppm", "avg_temperature", "avg_humidity", "avg_pm2_5"}))

	_, err = repo.FindHourlyAverages(context.Background(), timeRange)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSensorRepository_EnsureSchema(t *testing.T) {
	repo, mock := newMockRepository(t, DriverMySQL)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS sensor_data")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDialectFor(t *testing.T) {
	_, err := DialectFor("sqlite")
	assert.Error(t, err)

	d, err := DialectFor("PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, d.Name())
	assert.Equal(t, "$3", d.Placeholder(3))
}
