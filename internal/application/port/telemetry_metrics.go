package port

import (
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

// TelemetryMetrics собирает операционные метрики сервиса (Port)
// Реализация в Infrastructure слое (Prometheus)
type TelemetryMetrics interface {
	// ObservePoll фиксирует результат опроса: accepted=false для дубликатов
	ObservePoll(accepted bool, err error)

	// ObserveRefresh фиксирует длительность и результат полной загрузки
	ObserveRefresh(duration time.Duration, points int, err error)

	// ObserveAlert фиксирует сработавшее правило
	ObserveAlert(metric valueobject.MetricName, severity valueobject.Severity)

	// SetWindowSize публикует текущий размер окна метрики
	SetWindowSize(metric valueobject.MetricName, size int)

	// ObserveDroppedReading фиксирует отброшенное нечисловое показание
	ObserveDroppedReading(metric valueobject.MetricName)
}
