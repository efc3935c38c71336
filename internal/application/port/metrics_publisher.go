package port

import (
	"context"
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

// ReadingPoint is a single raw/smoothed pair exported to an external metrics platform.
type ReadingPoint struct {
	Metric    valueobject.MetricName
	Raw       float64
	Smoothed  float64
	Timestamp time.Time
}

// MetricsPublisher defines the interface for publishing sensor readings to external observability platforms.
// This port allows the application layer to publish readings without coupling to specific implementations.
type MetricsPublisher interface {
	// PublishBatch publishes multiple points in a single operation.
	// Implementations should handle batching constraints (e.g., CloudWatch's 1000 metrics/request limit).
	PublishBatch(ctx context.Context, points []ReadingPoint) error

	// Flush forces immediate publication of any buffered points.
	// Should be called during graceful shutdown to prevent data loss.
	Flush(ctx context.Context) error
}
