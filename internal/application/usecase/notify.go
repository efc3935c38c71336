package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/application/dto"
	"github.com/dreschagin/cleanroom-telemetry/internal/application/port"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/service"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
	"github.com/dreschagin/cleanroom-telemetry/pkg/logger"
)

// AlertSubjectPrefix префикс NATS subject для alert'ов: telemetry.alerts.<metric>
const AlertSubjectPrefix = "telemetry.alerts"

// AlertSubject возвращает subject для метрики
func AlertSubject(metric valueobject.MetricName) string {
	return fmt.Sprintf("%s.%s", AlertSubjectPrefix, metric)
}

// broadcastSnapshot рассылает актуальный snapshot сессии и обновляет размеры окон
func broadcastSnapshot(
	notifier port.NotificationService,
	metrics port.TelemetryMetrics,
	session *service.TelemetrySession,
	loc *time.Location,
) service.SessionSnapshot {
	snapshot := session.Snapshot()

	if metrics != nil {
		for _, series := range snapshot.Series {
			metrics.SetWindowSize(series.Metric, series.Len())
		}
	}

	if notifier != nil {
		notifier.Broadcast(dto.NewSeriesSnapshotDTO(snapshot, loc))
	}

	return snapshot
}

// sanitizeSample убирает нечисловые показания с предупреждением в лог
func sanitizeSample(
	validator *service.SampleValidator,
	metrics port.TelemetryMetrics,
	log *logger.Logger,
	sample *entity.Sample,
) *entity.Sample {
	clean, dropped := validator.Sanitize(sample)
	for _, metric := range dropped {
		log.Warn("Dropping non-finite reading", "metric", metric.String(), "timestamp", sample.Timestamp())
		if metrics != nil {
			metrics.ObserveDroppedReading(metric)
		}
	}

	for metric, value := range clean.Readings() {
		if !validator.IsReasonable(metric, value) {
			log.Warn("Reading is outside sensor range", "metric", metric.String(), "value", value)
		}
	}

	return clean
}

// publishAlerts рассылает события клиентам и в брокер сообщений
func publishAlerts(
	ctx context.Context,
	notifier port.NotificationService,
	events port.EventPublisher,
	metrics port.TelemetryMetrics,
	log *logger.Logger,
	alerts []*entity.AlertEvent,
) []*dto.AlertDTO {
	result := make([]*dto.AlertDTO, 0, len(alerts))

	for _, alert := range alerts {
		alertDTO := dto.NewAlertDTO(alert)
		result = append(result, alertDTO)

		log.Warn("Threshold violated",
			"metric", alert.Metric().String(),
			"severity", alert.Severity().String(),
			"value", alert.Value())

		if notifier != nil {
			notifier.BroadcastAlert(alertDTO)
		}
		if metrics != nil {
			metrics.ObserveAlert(alert.Metric(), alert.Severity())
		}
		if events != nil {
			if err := events.PublishEvent(ctx, AlertSubject(alert.Metric()), alertDTO); err != nil {
				log.Error("Failed to publish alert event", err, "metric", alert.Metric().String())
			}
		}
	}

	return result
}
