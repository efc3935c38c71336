package cloudwatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"github.com/dreschagin/cleanroom-telemetry/internal/application/port"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
	"github.com/dreschagin/cleanroom-telemetry/pkg/logger"
)

type fakeCloudWatch struct {
	mu       sync.Mutex
	inputs   []*cloudwatch.PutMetricDataInput
	failures int
}

func (f *fakeCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures > 0 {
		f.failures--
		return nil, errors.New("throttled")
	}
	f.inputs = append(f.inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func (f *fakeCloudWatch) datumCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, in := range f.inputs {
		total += len(in.MetricData)
	}
	return total
}

func newTestMetricsPublisher(client putMetricDataAPI, bufferSize int) *MetricsPublisher {
	cfg := MetricsPublisherConfig{
		Namespace:         "Cleanroom/Test",
		Region:            "us-east-1",
		BufferSize:        bufferSize,
		DefaultDimensions: map[string]string{"Room": "A1"},
	}
	_ = normalizeMetricsConfig(&cfg)
	return newMetricsPublisher(client, cfg, logger.New("error"))
}

func TestMapUnit(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected string
	}{
		{"humidity", valueobject.Humidity.Unit(), "Percent"},
		{"co2", valueobject.CO2.Unit(), "None"},
		{"temperature", valueobject.Temperature.Unit(), "None"},
		{"count", "count", "Count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := mapUnit(tt.unit)
			if string(result) != tt.expected {
				t.Errorf("mapUnit(%q) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestConvertToDatum(t *testing.T) {
	p := newTestMetricsPublisher(&fakeCloudWatch{}, 10)
	ts := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	datum := p.convertToDatum(valueobject.Humidity, SeriesSmoothed, 41.5, ts)

	if datum.MetricName == nil || *datum.MetricName != "humidity" {
		t.Errorf("Expected MetricName=humidity, got %v", datum.MetricName)
	}
	if datum.Value == nil || *datum.Value != 41.5 {
		t.Errorf("Expected Value=41.5, got %v", datum.Value)
	}
	if datum.Unit != "Percent" {
		t.Errorf("Expected Unit=Percent, got %v", datum.Unit)
	}
	if datum.Timestamp == nil || !datum.Timestamp.Equal(ts) {
		t.Errorf("Expected Timestamp=%v, got %v", ts, datum.Timestamp)
	}
	if datum.StorageResolution == nil || *datum.StorageResolution != 60 {
		t.Errorf("Expected StorageResolution=60, got %v", datum.StorageResolution)
	}

	expected := map[string]string{"Room": "A1", "Series": SeriesSmoothed}
	if len(datum.Dimensions) != len(expected) {
		t.Fatalf("Expected %d dimensions, got %d", len(expected), len(datum.Dimensions))
	}
	for _, dim := range datum.Dimensions {
		if want, ok := expected[*dim.Name]; !ok || want != *dim.Value {
			t.Errorf("Unexpected dimension %s=%s", *dim.Name, *dim.Value)
		}
	}
}

func TestPublishBatch_BuffersRawAndSmoothed(t *testing.T) {
	client := &fakeCloudWatch{}
	p := newTestMetricsPublisher(client, 100)
	ts := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	points := []port.ReadingPoint{
		{Metric: valueobject.CO2, Raw: 800, Smoothed: 760, Timestamp: ts},
		{Metric: valueobject.PM25, Raw: 12, Smoothed: 11, Timestamp: ts},
	}
	if err := p.PublishBatch(context.Background(), points); err != nil {
		t.Fatalf("PublishBatch() error = %v", err)
	}
	if got := client.datumCount(); got != 0 {
		t.Fatalf("Expected nothing sent before flush, got %d", got)
	}

	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if got := client.datumCount(); got != 4 {
		t.Fatalf("Expected 4 data points, got %d", got)
	}
	if *client.inputs[0].Namespace != "Cleanroom/Test" {
		t.Errorf("Unexpected namespace %s", *client.inputs[0].Namespace)
	}
}

func TestPublishBatch_AutoFlushAndChunking(t *testing.T) {
	client := &fakeCloudWatch{}
	p := newTestMetricsPublisher(client, 2000)
	ts := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	points := make([]port.ReadingPoint, 0, 1000)
	for i := 0; i < 1000; i++ {
		points = append(points, port.ReadingPoint{Metric: valueobject.Temperature, Raw: 21, Smoothed: 21, Timestamp: ts})
	}

	// 2000 data points reach the buffer limit and are sent as two requests
	if err := p.PublishBatch(context.Background(), points); err != nil {
		t.Fatalf("PublishBatch() error = %v", err)
	}
	if len(client.inputs) != 2 {
		t.Fatalf("Expected 2 requests, got %d", len(client.inputs))
	}
	for _, in := range client.inputs {
		if len(in.MetricData) > maxMetricsPerRequest {
			t.Errorf("Request exceeds CloudWatch limit: %d", len(in.MetricData))
		}
	}
}

func TestFlush_RetriesAndKeepsBufferOnFailure(t *testing.T) {
	client := &fakeCloudWatch{failures: 1}
	p := newTestMetricsPublisher(client, 100)
	point := port.ReadingPoint{Metric: valueobject.CO2, Raw: 900, Smoothed: 880, Timestamp: time.Now()}

	if err := p.PublishBatch(context.Background(), []port.ReadingPoint{point}); err != nil {
		t.Fatalf("PublishBatch() error = %v", err)
	}
	if err := p.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() should succeed after retry, got %v", err)
	}
	if got := client.datumCount(); got != 2 {
		t.Fatalf("Expected 2 data points, got %d", got)
	}

	client.failures = maxRetries
	if err := p.PublishBatch(context.Background(), []port.ReadingPoint{point}); err != nil {
		t.Fatalf("PublishBatch() error = %v", err)
	}
	if err := p.Flush(context.Background()); err == nil {
		t.Fatal("Expected flush error")
	}
	if len(p.buffer) != 2 {
		t.Errorf("Expected failed data points to stay buffered, got %d", len(p.buffer))
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		config    MetricsPublisherConfig
		expectErr bool
	}{
		{"valid config", MetricsPublisherConfig{Namespace: "Cleanroom/Telemetry", Region: "us-east-1"}, false},
		{"missing namespace", MetricsPublisherConfig{Region: "us-east-1"}, true},
		{"missing region", MetricsPublisherConfig{Namespace: "Cleanroom/Telemetry"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			err := normalizeMetricsConfig(&cfg)
			if (err != nil) != tt.expectErr {
				t.Fatalf("normalizeMetricsConfig() error = %v, expectErr %v", err, tt.expectErr)
			}
			if err != nil {
				return
			}
			if cfg.BufferSize != 100 {
				t.Errorf("BufferSize should default to 100, got %d", cfg.BufferSize)
			}
			if cfg.FlushInterval != 10*time.Second {
				t.Errorf("FlushInterval should default to 10s, got %v", cfg.FlushInterval)
			}
			if cfg.StorageResolution != 60 {
				t.Errorf("StorageResolution should default to 60, got %d", cfg.StorageResolution)
			}
		})
	}
}
