package port

import (
	"context"

	"github.com/dreschagin/cleanroom-telemetry/internal/application/dto"
)

// SettingsStore хранит пользовательские настройки сглаживания и правил между перезапусками (Port)
type SettingsStore interface {
	// Load возвращает сохраненные настройки или nil, если их еще нет
	Load(ctx context.Context) (*dto.SettingsDTO, error)

	// Save сохраняет настройки
	Save(ctx context.Context, settings *dto.SettingsDTO) error
}
