package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/application/dto"
	"github.com/dreschagin/cleanroom-telemetry/internal/application/port"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/service"
	"github.com/dreschagin/cleanroom-telemetry/pkg/logger"
)

// UpdateSettingsUseCase применяет настройки сглаживания и правил к сессии и сохраняет их
type UpdateSettingsUseCase struct {
	session  *service.TelemetrySession
	store    port.SettingsStore
	notifier port.NotificationService
	location *time.Location
	logger   *logger.Logger
}

// NewUpdateSettingsUseCase создает новый use case; store и notifier опциональны
func NewUpdateSettingsUseCase(
	session *service.TelemetrySession,
	store port.SettingsStore,
	notifier port.NotificationService,
	location *time.Location,
	logger *logger.Logger,
) *UpdateSettingsUseCase {
	return &UpdateSettingsUseCase{
		session:  session,
		store:    store,
		notifier: notifier,
		location: location,
		logger:   logger.With("usecase", "update_settings"),
	}
}

// Current возвращает активные настройки
func (uc *UpdateSettingsUseCase) Current() *dto.SettingsDTO {
	return dto.NewSettingsDTO(uc.session.SmoothingConfig(), uc.session.Rules())
}

// Execute проверяет настройки целиком и только затем применяет их.
// Невалидные α или правило возвращают ErrInvalidParameter, активные настройки не меняются.
// Ошибка сохранения не откатывает примененные настройки.
func (uc *UpdateSettingsUseCase) Execute(ctx context.Context, settings *dto.SettingsDTO) (*dto.SettingsDTO, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}

	// 1. Валидация
	smoothing, err := settings.Smoothing.ToSmoothingConfig()
	if err != nil {
		return nil, err
	}
	rules, err := settings.ToRuleSet()
	if err != nil {
		return nil, err
	}

	// 2. Применение одним шагом (синхронный пересчет сглаженных серий)
	changed, err := uc.session.ApplySettings(smoothing, rules)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("Settings updated",
		"smoothing_enabled", smoothing.Enabled,
		"alpha", smoothing.Alpha,
		"rules", rules.Len(),
		"rules_changed", len(changed))

	applied := uc.Current()

	// 3. Сохранение
	if uc.store != nil {
		if err := uc.store.Save(ctx, applied); err != nil {
			uc.logger.Error("Failed to persist settings", err)
		}
	}

	// 4. Клиенты получают пересчитанные серии
	broadcastSnapshot(uc.notifier, nil, uc.session, uc.location)

	return applied, nil
}

// LoadSettingsUseCase восстанавливает сохраненные настройки при старте
type LoadSettingsUseCase struct {
	session *service.TelemetrySession
	store   port.SettingsStore
	logger  *logger.Logger
}

// NewLoadSettingsUseCase создает новый use case
func NewLoadSettingsUseCase(session *service.TelemetrySession, store port.SettingsStore, logger *logger.Logger) *LoadSettingsUseCase {
	return &LoadSettingsUseCase{
		session: session,
		store:   store,
		logger:  logger.With("usecase", "load_settings"),
	}
}

// Execute применяет сохраненные настройки.
// Возвращает false, если настройки отсутствуют или невалидны: сессия остается с настройками по умолчанию.
func (uc *LoadSettingsUseCase) Execute(ctx context.Context) bool {
	if uc.store == nil {
		return false
	}

	settings, err := uc.store.Load(ctx)
	if err != nil {
		uc.logger.Warn("Failed to load persisted settings, using defaults", "error", err.Error())
		return false
	}
	if settings == nil {
		uc.logger.Debug("No persisted settings, using defaults")
		return false
	}

	smoothing, err := settings.Smoothing.ToSmoothingConfig()
	if err != nil {
		uc.logger.Warn("Persisted smoothing is invalid, using defaults", "error", err.Error())
		return false
	}
	rules, err := settings.ToRuleSet()
	if err != nil {
		uc.logger.Warn("Persisted rules are invalid, using defaults", "error", err.Error())
		return false
	}

	if _, err := uc.session.ApplySettings(smoothing, rules); err != nil {
		uc.logger.Warn("Failed to apply persisted settings", "error", err.Error())
		return false
	}

	uc.logger.Info("Persisted settings loaded", "alpha", smoothing.Alpha, "rules", rules.Len())
	return true
}
