package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/application/dto"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/repository"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/service"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
	"github.com/dreschagin/cleanroom-telemetry/pkg/logger"
)

// RecordReadingUseCase сохраняет наблюдение, присланное сенсором
type RecordReadingUseCase struct {
	repository repository.SensorRepository
	validator  *service.SampleValidator
	location   *time.Location
	logger     *logger.Logger
}

// NewRecordReadingUseCase создает новый use case
func NewRecordReadingUseCase(
	repository repository.SensorRepository,
	validator *service.SampleValidator,
	location *time.Location,
	logger *logger.Logger,
) *RecordReadingUseCase {
	if validator == nil {
		validator = service.NewSampleValidator()
	}
	return &RecordReadingUseCase{
		repository: repository,
		validator:  validator,
		location:   location,
		logger:     logger.With("usecase", "record_reading"),
	}
}

// Execute проверяет и сохраняет наблюдение
func (uc *RecordReadingUseCase) Execute(ctx context.Context, reading *dto.SampleDTO) error {
	if reading == nil {
		return fmt.Errorf("%w: reading cannot be nil", valueobject.ErrInvalidParameter)
	}

	sample, err := reading.ToEntity(uc.location)
	if err != nil {
		return fmt.Errorf("%w: invalid timestamp: %v", valueobject.ErrInvalidParameter, err)
	}
	if err := uc.validator.Validate(sample); err != nil {
		return fmt.Errorf("%w: %v", valueobject.ErrInvalidParameter, err)
	}
	if len(sample.Readings()) == 0 {
		return fmt.Errorf("%w: reading has no metrics", valueobject.ErrInvalidParameter)
	}

	sample, dropped := uc.validator.Sanitize(sample)
	if len(dropped) > 0 {
		uc.logger.Warn("Dropping non-finite readings", "count", len(dropped))
	}

	if err := uc.repository.Save(ctx, sample); err != nil {
		uc.logger.Error("Failed to save reading", err)
		return fmt.Errorf("failed to save reading: %w", err)
	}

	uc.logger.Debug("Reading saved", "timestamp", sample.Timestamp())
	return nil
}
