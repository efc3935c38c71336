package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("SOURCE_KIND", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telemetry.Capacity != 50 {
		t.Errorf("expected capacity 50, got %d", cfg.Telemetry.Capacity)
	}
	if cfg.Telemetry.PollInterval != 5*time.Second {
		t.Errorf("expected poll interval 5s, got %v", cfg.Telemetry.PollInterval)
	}
	if cfg.Telemetry.RefreshInterval != 30*time.Second {
		t.Errorf("expected refresh interval 30s, got %v", cfg.Telemetry.RefreshInterval)
	}
	if cfg.Telemetry.Alpha != 0.3 || !cfg.Telemetry.SmoothingEnabled {
		t.Errorf("unexpected smoothing defaults: %+v", cfg.Telemetry)
	}
	if cfg.Telemetry.TruncateOnRefresh {
		t.Error("truncate on refresh should be disabled by default")
	}
	if cfg.Telemetry.Rules.CO2Max != 1000 || cfg.Telemetry.Rules.PM25Max != 35 {
		t.Errorf("unexpected rule defaults: %+v", cfg.Telemetry.Rules)
	}
	if cfg.Database.Driver != "postgres" || cfg.Source.Kind != SourceSQL {
		t.Errorf("unexpected driver/source: %s/%s", cfg.Database.Driver, cfg.Source.Kind)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TELEMETRY_WINDOW_CAPACITY", "3")
	t.Setenv("TELEMETRY_SMOOTHING_ALPHA", "0.5")
	t.Setenv("TELEMETRY_TRUNCATE_ON_REFRESH", "true")
	t.Setenv("SOURCE_KIND", "http")
	t.Setenv("SOURCE_URL", "http://sensors.local:5000")
	t.Setenv("ALLOWED_ORIGINS", " http://a.local , ,http://b.local")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telemetry.Capacity != 3 || cfg.Telemetry.Alpha != 0.5 || !cfg.Telemetry.TruncateOnRefresh {
		t.Errorf("overrides not applied: %+v", cfg.Telemetry)
	}
	if cfg.Source.Kind != SourceHTTP || cfg.Source.URL != "http://sensors.local:5000" {
		t.Errorf("unexpected source: %+v", cfg.Source)
	}
	if len(cfg.Security.AllowedOrigins) != 2 || cfg.Security.AllowedOrigins[1] != "http://b.local" {
		t.Errorf("unexpected origins: %v", cfg.Security.AllowedOrigins)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"bad capacity", "TELEMETRY_WINDOW_CAPACITY", "fifty", "TELEMETRY_WINDOW_CAPACITY"},
		{"bad alpha", "TELEMETRY_SMOOTHING_ALPHA", "abc", "TELEMETRY_SMOOTHING_ALPHA"},
		{"bad interval", "TELEMETRY_POLL_INTERVAL", "5 seconds", "TELEMETRY_POLL_INTERVAL"},
		{"zero capacity", "TELEMETRY_WINDOW_CAPACITY", "0", "must be positive"},
		{"bad driver", "DB_DRIVER", "sqlite", "unsupported DB_DRIVER"},
		{"http without url", "SOURCE_KIND", "http", "SOURCE_URL is required"},
		{"auth without token", "AUTH_ENABLED", "true", "AUTH_BEARER_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SOURCE_URL", "")
			t.Setenv("AUTH_BEARER_TOKEN", "")
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", User: "u", Password: "p", Database: "cleanroom"}
	if got := pg.DSN(nil); got != "host=db port=5432 user=u password=p dbname=cleanroom sslmode=disable timezone=UTC" {
		t.Errorf("unexpected postgres DSN: %s", got)
	}

	my := DatabaseConfig{Driver: "mysql", Host: "db", User: "u", Password: "p", Database: "sensors"}
	got := my.DSN(time.UTC)
	if !strings.HasPrefix(got, "u:p@tcp(db:3306)/sensors?") {
		t.Errorf("unexpected mysql DSN: %s", got)
	}
	if !strings.Contains(got, "parseTime=true") {
		t.Errorf("expected parseTime in mysql DSN: %s", got)
	}
}

func TestTelemetryConfig_Location(t *testing.T) {
	cfg := TelemetryConfig{Timezone: "UTC"}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "UTC" {
		t.Fatalf("unexpected location %v, err %v", loc, err)
	}

	cfg.Timezone = "Mars/Olympus"
	if _, err := cfg.Location(); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
