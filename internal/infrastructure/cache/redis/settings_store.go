package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dreschagin/cleanroom-telemetry/internal/application/dto"
)

// DefaultSettingsKey is the key holding persisted smoothing and rule settings.
const DefaultSettingsKey = "telemetry:settings"

// SettingsStore persists user settings in Redis without expiration.
type SettingsStore struct {
	client redis.UniversalClient
	key    string
}

// NewSettingsStore creates a settings store.
func NewSettingsStore(client redis.UniversalClient, key string) *SettingsStore {
	if key == "" {
		key = DefaultSettingsKey
	}
	return &SettingsStore{
		client: client,
		key:    key,
	}
}

// Load returns persisted settings or nil when nothing was saved yet.
func (s *SettingsStore) Load(ctx context.Context) (*dto.SettingsDTO, error) {
	val, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var settings dto.SettingsDTO
	if err := json.Unmarshal(val, &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	return &settings, nil
}

// Save stores settings.
func (s *SettingsStore) Save(ctx context.Context, settings *dto.SettingsDTO) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	return nil
}
