package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordClassification does nothing.
func (NoopMetrics) RecordClassification(_ context.Context, _ string) {}

// RecordAccepted does nothing.
func (NoopMetrics) RecordAccepted(_ context.Context, _ int) {}

// RecordShardCreated does nothing.
func (NoopMetrics) RecordShardCreated(_ context.Context) {}

// RecordViolation does nothing.
func (NoopMetrics) RecordViolation(_ context.Context) {}

// RecordEviction does nothing.
func (NoopMetrics) RecordEviction(_ context.Context, _ int) {}

// RecordPending does nothing.
func (NoopMetrics) RecordPending(_ context.Context, _ int) {}

// NoopSpanManager is a SpanManager that does nothing.
// Use when tracing is disabled to avoid overhead.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartRouteSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartRouteSpan(ctx context.Context, _ string, _ uint64) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
