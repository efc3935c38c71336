package dto

import (
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
)

// AlertDTO представляет alert для отправки клиентам
type AlertDTO struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Severity  string    `json:"severity"` // "info", "warning", "error"
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Message   string    `json:"message"`
	Rule      string    `json:"rule"`
}

// NewAlertDTO создает DTO из события классификатора
func NewAlertDTO(event *entity.AlertEvent) *AlertDTO {
	return &AlertDTO{
		ID:        event.ID(),
		Timestamp: event.Timestamp(),
		Severity:  event.Severity().String(),
		Metric:    event.Metric().String(),
		Value:     event.Value(),
		Unit:      event.Metric().Unit(),
		Message:   event.Message(),
		Rule:      event.Rule().Describe(event.Metric().Unit()),
	}
}

// EventID используется брокером сообщений для дедупликации
func (a *AlertDTO) EventID() string {
	return a.ID
}
