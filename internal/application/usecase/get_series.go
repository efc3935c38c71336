package usecase

import (
	"fmt"
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/application/dto"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/service"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

// GetSeriesUseCase возвращает snapshot окон сессии
type GetSeriesUseCase struct {
	session  *service.TelemetrySession
	location *time.Location
}

// NewGetSeriesUseCase создает новый use case
func NewGetSeriesUseCase(session *service.TelemetrySession, location *time.Location) *GetSeriesUseCase {
	return &GetSeriesUseCase{
		session:  session,
		location: location,
	}
}

// Execute возвращает все окна или окно одной метрики, если metric не пуст
func (uc *GetSeriesUseCase) Execute(metric string) (*dto.SeriesSnapshotDTO, error) {
	snapshot := dto.NewSeriesSnapshotDTO(uc.session.Snapshot(), uc.location)
	if metric == "" {
		return snapshot, nil
	}

	name := valueobject.MetricName(metric)
	if err := name.Validate(); err != nil {
		return nil, fmt.Errorf("%w: unknown metric %q", valueobject.ErrInvalidParameter, metric)
	}

	return snapshot.FilterMetric(name), nil
}
