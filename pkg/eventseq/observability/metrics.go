package observability

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records resequencing metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordClassification counts one classified event.
	RecordClassification(ctx context.Context, classification string)

	// RecordAccepted counts events released in order, including drained ones.
	RecordAccepted(ctx context.Context, n int)

	// RecordShardCreated counts a newly seen aggregate.
	RecordShardCreated(ctx context.Context)

	// RecordViolation counts a consistency violation.
	RecordViolation(ctx context.Context)

	// RecordEviction counts futures dropped by the pending bound.
	RecordEviction(ctx context.Context, n int)

	// RecordPending adjusts the number of buffered futures.
	RecordPending(ctx context.Context, delta int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	classified metric.Int64Counter
	accepted   metric.Int64Counter
	shards     metric.Int64Counter
	violations metric.Int64Counter
	evicted    metric.Int64Counter
	pending    metric.Int64UpDownCounter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventseq")

	classified, err := meter.Int64Counter("eventseq.events.classified",
		metric.WithDescription("Number of events classified, by classification"),
	)
	if err != nil {
		return nil, err
	}

	accepted, err := meter.Int64Counter("eventseq.events.accepted",
		metric.WithDescription("Number of events released in version order"),
	)
	if err != nil {
		return nil, err
	}

	shards, err := meter.Int64Counter("eventseq.shards.created",
		metric.WithDescription("Number of aggregates seen for the first time"),
	)
	if err != nil {
		return nil, err
	}

	violations, err := meter.Int64Counter("eventseq.consistency.violations",
		metric.WithDescription("Number of buffer invariant violations"),
	)
	if err != nil {
		return nil, err
	}

	evicted, err := meter.Int64Counter("eventseq.futures.evicted",
		metric.WithDescription("Number of future events dropped by the pending bound"),
	)
	if err != nil {
		return nil, err
	}

	pending, err := meter.Int64UpDownCounter("eventseq.futures.pending",
		metric.WithDescription("Number of future events currently buffered"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		classified: classified,
		accepted:   accepted,
		shards:     shards,
		violations: violations,
		evicted:    evicted,
		pending:    pending,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordClassification counts one classified event.
func (m *otelMetrics) RecordClassification(ctx context.Context, classification string) {
	m.classified.Add(ctx, 1, metric.WithAttributes(
		attribute.String("classification", classification),
	))
}

// RecordAccepted counts released events.
func (m *otelMetrics) RecordAccepted(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	m.accepted.Add(ctx, int64(n))
}

// RecordShardCreated counts a new aggregate.
func (m *otelMetrics) RecordShardCreated(ctx context.Context) {
	m.shards.Add(ctx, 1)
}

// RecordViolation counts a consistency violation.
func (m *otelMetrics) RecordViolation(ctx context.Context) {
	m.violations.Add(ctx, 1)
}

// RecordEviction counts evicted futures.
func (m *otelMetrics) RecordEviction(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	m.evicted.Add(ctx, int64(n))
}

// RecordPending adjusts the buffered futures gauge.
func (m *otelMetrics) RecordPending(ctx context.Context, delta int) {
	if delta == 0 {
		return
	}
	m.pending.Add(ctx, int64(delta))
}
