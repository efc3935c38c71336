package redis

import "testing"

func TestRedisCache_KeyPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		want   string
	}{
		{"", "telemetry:hourly:1", "telemetry:hourly:1"},
		{"cleanroom", "telemetry:hourly:1", "cleanroom:telemetry:hourly:1"},
		{"cleanroom", "telemetry:*", "cleanroom:telemetry:*"},
	}

	for _, tt := range tests {
		c := NewRedisCache(nil, 0, tt.prefix)
		if got := c.key(tt.key); got != tt.want {
			t.Errorf("key(%q) with prefix %q = %q, want %q", tt.key, tt.prefix, got, tt.want)
		}
	}
}

func TestNewSettingsStore_DefaultKey(t *testing.T) {
	if s := NewSettingsStore(nil, ""); s.key != DefaultSettingsKey {
		t.Fatalf("expected default key %q, got %q", DefaultSettingsKey, s.key)
	}
}
