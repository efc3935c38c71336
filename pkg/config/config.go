package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// Источники наблюдений
const (
	SourceSQL  = "sql"
	SourceHTTP = "http"
)

type Config struct {
	LogLevel   string
	Server     ServerConfig
	Database   DatabaseConfig
	Telemetry  TelemetryConfig
	Source     SourceConfig
	Redis      RedisConfig
	NATS       NATSConfig
	CloudWatch CloudWatchConfig
	Prometheus PrometheusConfig
	Security   SecurityConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver          string // postgres | mysql
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	AutoMigrate     bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// TelemetryConfig параметры сессии и расписания опроса
type TelemetryConfig struct {
	Capacity          int
	PollInterval      time.Duration
	RefreshInterval   time.Duration
	RecentLimit       int
	HourlyWindow      time.Duration
	TruncateOnRefresh bool
	SmoothingEnabled  bool
	Alpha             float64
	Timezone          string
	Rules             RulesConfig
}

// RulesConfig пороги правил по умолчанию
type RulesConfig struct {
	CO2Max         float64
	TemperatureMin float64
	TemperatureMax float64
	HumidityMin    float64
	HumidityMax    float64
	PM25Max        float64
}

type SourceConfig struct {
	Kind    string // sql | http
	URL     string
	Timeout time.Duration
}

type RedisConfig struct {
	Enabled      bool
	Host         string
	Port         string
	Password     string
	DB           int
	CacheTTL     time.Duration
	KeyPrefix    string
	SettingsKey  string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type NATSConfig struct {
	Enabled    bool
	URL        string
	StreamName string
	MaxAge     time.Duration
}

type CloudWatchConfig struct {
	Enabled         bool
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Namespace       string
	Room            string
	FlushInterval   time.Duration
	LogsEnabled     bool
	LogGroupName    string
	LogStreamName   string
}

type PrometheusConfig struct {
	Enabled bool
	Path    string
}

type SecurityConfig struct {
	AllowedOrigins []string
	AuthEnabled    bool
	AuthToken      string
	RateLimitRPS   float64
	RateLimitBurst int
}

// envParser накапливает первую ошибку разбора, чтобы Load проверял ее один раз
type envParser struct {
	err error
}

func (p *envParser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
}

func (p *envParser) duration(key, defaultValue string) time.Duration {
	raw := getEnv(key, defaultValue)
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
	}
	return d
}

func (p *envParser) int(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		p.fail(key, raw, err)
		return defaultValue
	}
	return v
}

func (p *envParser) float(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		p.fail(key, raw, err)
		return defaultValue
	}
	return v
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	p := &envParser{}

	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     p.duration("SERVER_READ_TIMEOUT", "10s"),
			WriteTimeout:    p.duration("SERVER_WRITE_TIMEOUT", "10s"),
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: p.duration("SERVER_SHUTDOWN_TIMEOUT", "30s"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", ""),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "cleanroom"),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", false),
			MaxOpenConns:    p.int("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    p.int("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			Capacity:          p.int("TELEMETRY_WINDOW_CAPACITY", 50),
			PollInterval:      p.duration("TELEMETRY_POLL_INTERVAL", "5s"),
			RefreshInterval:   p.duration("TELEMETRY_REFRESH_INTERVAL", "30s"),
			RecentLimit:       p.int("TELEMETRY_RECENT_LIMIT", 50),
			HourlyWindow:      p.duration("TELEMETRY_HOURLY_WINDOW", "24h"),
			TruncateOnRefresh: getEnvBool("TELEMETRY_TRUNCATE_ON_REFRESH", false),
			SmoothingEnabled:  getEnvBool("TELEMETRY_SMOOTHING_ENABLED", true),
			Alpha:             p.float("TELEMETRY_SMOOTHING_ALPHA", 0.3),
			Timezone:          getEnv("TELEMETRY_TIMEZONE", "Local"),
			Rules: RulesConfig{
				CO2Max:         p.float("RULE_CO2_MAX", 1000),
				TemperatureMin: p.float("RULE_TEMPERATURE_MIN", 18),
				TemperatureMax: p.float("RULE_TEMPERATURE_MAX", 26),
				HumidityMin:    p.float("RULE_HUMIDITY_MIN", 30),
				HumidityMax:    p.float("RULE_HUMIDITY_MAX", 50),
				PM25Max:        p.float("RULE_PM25_MAX", 35),
			},
		},
		Source: SourceConfig{
			Kind:    strings.ToLower(getEnv("SOURCE_KIND", SourceSQL)),
			URL:     getEnv("SOURCE_URL", ""),
			Timeout: p.duration("SOURCE_TIMEOUT", "5s"),
		},
		Redis: RedisConfig{
			Enabled:      getEnvBool("REDIS_ENABLED", false),
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           p.int("REDIS_DB", 0),
			CacheTTL:     p.duration("REDIS_CACHE_TTL", "5m"),
			KeyPrefix:    getEnv("REDIS_KEY_PREFIX", ""),
			SettingsKey:  getEnv("REDIS_SETTINGS_KEY", "telemetry:settings"),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		NATS: NATSConfig{
			Enabled:    getEnvBool("NATS_ENABLED", false),
			URL:        getEnv("NATS_URL", "nats://localhost:4222"),
			StreamName: getEnv("NATS_STREAM", "TELEMETRY_ALERTS"),
			MaxAge:     p.duration("NATS_STREAM_MAX_AGE", "168h"),
		},
		CloudWatch: CloudWatchConfig{
			Enabled:         getEnvBool("CLOUDWATCH_ENABLED", false),
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Endpoint:        getEnv("CLOUDWATCH_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Namespace:       getEnv("CLOUDWATCH_NAMESPACE", "Cleanroom/Telemetry"),
			Room:            getEnv("CLOUDWATCH_ROOM", ""),
			FlushInterval:   p.duration("CLOUDWATCH_FLUSH_INTERVAL", "10s"),
			LogsEnabled:     getEnvBool("CLOUDWATCH_LOGS_ENABLED", false),
			LogGroupName:    getEnv("CLOUDWATCH_LOG_GROUP", "/cleanroom/telemetry"),
			LogStreamName:   getEnv("CLOUDWATCH_LOG_STREAM", hostname()),
		},
		Prometheus: PrometheusConfig{
			Enabled: getEnvBool("PROMETHEUS_ENABLED", true),
			Path:    getEnv("PROMETHEUS_PATH", "/metrics"),
		},
		Security: SecurityConfig{
			AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:8080,http://127.0.0.1:8080")),
			AuthEnabled:    getEnvBool("AUTH_ENABLED", false),
			AuthToken:      getEnv("AUTH_BEARER_TOKEN", ""),
			RateLimitRPS:   p.float("RATE_LIMIT_RPS", 20),
			RateLimitBurst: p.int("RATE_LIMIT_BURST", 40),
		},
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Security.AuthEnabled && c.Security.AuthToken == "" {
		return fmt.Errorf("AUTH_BEARER_TOKEN is required when AUTH_ENABLED=true")
	}

	switch c.Database.Driver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (expected postgres or mysql)", c.Database.Driver)
	}

	switch c.Source.Kind {
	case SourceSQL:
	case SourceHTTP:
		if c.Source.URL == "" {
			return fmt.Errorf("SOURCE_URL is required when SOURCE_KIND=http")
		}
	default:
		return fmt.Errorf("unsupported SOURCE_KIND %q (expected sql or http)", c.Source.Kind)
	}

	if c.Telemetry.Capacity <= 0 {
		return fmt.Errorf("TELEMETRY_WINDOW_CAPACITY must be positive, got %d", c.Telemetry.Capacity)
	}
	if c.Telemetry.PollInterval <= 0 || c.Telemetry.RefreshInterval <= 0 {
		return fmt.Errorf("telemetry poll and refresh intervals must be positive")
	}

	return nil
}

// Location возвращает часовой пояс для меток времени
func (c *TelemetryConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEMETRY_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DSN возвращает строку подключения для выбранного драйвера.
// Для MySQL включается parseTime, чтобы DATETIME сканировался в time.Time.
// Сессия PostgreSQL работает в UTC, как и хранимые значения timestamp.
func (c *DatabaseConfig) DSN(loc *time.Location) string {
	if c.Driver == "mysql" {
		port := c.Port
		if port == "" {
			port = "3306"
		}
		if loc == nil {
			loc = time.Local
		}
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, port)
		mc.DBName = c.Database
		mc.ParseTime = true
		mc.Loc = loc
		return mc.FormatDSN()
	}

	port := c.Port
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable timezone=UTC",
		c.Host, port, c.User, c.Password, c.Database)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func splitCSV(raw string) []string {
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "telemetry-server"
	}
	return name
}
