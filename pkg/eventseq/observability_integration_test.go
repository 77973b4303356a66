package eventseq_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/eventseq/pkg/eventseq"
	"github.com/randalmurphal/eventseq/pkg/eventseq/event"
	"github.com/randalmurphal/eventseq/pkg/eventseq/observability"
)

// countingMetrics is an in-memory MetricsRecorder.
type countingMetrics struct {
	mu         sync.Mutex
	classes    map[string]int
	accepted   int
	shards     int
	violations int
	evicted    int
	pending    int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{classes: make(map[string]int)}
}

func (m *countingMetrics) RecordClassification(_ context.Context, c string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes[c]++
}

func (m *countingMetrics) RecordAccepted(_ context.Context, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted += n
}

func (m *countingMetrics) RecordShardCreated(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shards++
}

func (m *countingMetrics) RecordViolation(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations++
}

func (m *countingMetrics) RecordEviction(_ context.Context, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evicted += n
}

func (m *countingMetrics) RecordPending(_ context.Context, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending += delta
}

var _ observability.MetricsRecorder = (*countingMetrics)(nil)

// sdkSpans is a SpanManager backed by an SDK tracer provider.
type sdkSpans struct {
	tracer trace.Tracer
}

func (s sdkSpans) StartRouteSpan(ctx context.Context, aggregateID string, version uint64) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "eventseq.route", trace.WithAttributes(
		attribute.String("aggregate.id", aggregateID),
		attribute.Int64("event.version", int64(version)),
	))
}

func (s sdkSpans) EndSpanWithError(span trace.Span, err error) {
	observability.EndSpanWithError(span, err)
}

func (s sdkSpans) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	observability.AddSpanEvent(ctx, name, attrs...)
}

func TestRouterMetrics(t *testing.T) {
	metrics := newCountingMetrics()
	r := newRouter(t, eventseq.RouterConfig{Metrics: metrics, MaxPending: 3})

	route(t, r, "a", "MsgA", 1, 3, 1, 4, 2)
	route(t, r, "b", "MsgA", 5, 6, 7, 8)
	require.NoError(t, r.Close())

	metrics.mu.Lock()
	defer metrics.mu.Unlock()

	assert.Equal(t, 2, metrics.shards)
	assert.Equal(t, map[string]int{
		"next":                    1,
		"duplicate":               1,
		"future":                  6,
		"gap_closed_with_missing": 1,
	}, metrics.classes)
	assert.Equal(t, 4, metrics.accepted)
	assert.Equal(t, 1, metrics.evicted)
	assert.Equal(t, 3, metrics.pending, "b keeps 5, 6 and 7 buffered")
	assert.Zero(t, metrics.violations)
}

func TestRouterSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r := newRouter(t, eventseq.RouterConfig{Spans: sdkSpans{tracer: tp.Tracer("test")}})
	route(t, r, "k", "MsgA", 2, 1)
	require.NoError(t, r.Close())

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	var events []string
	for _, s := range spans {
		assert.Equal(t, "eventseq.route", s.Name)
		for _, e := range s.Events {
			events = append(events, e.Name)
		}
	}
	assert.Equal(t, []string{"future", "gap_closed_with_missing"}, events)
}

func TestShardFaultEndsSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	var buf bytes.Buffer
	var mu sync.Mutex
	logger := slog.New(slog.NewJSONHandler(&lockedWriter{w: &buf, mu: &mu}, nil))

	r := newRouter(t, eventseq.RouterConfig{
		Interest: event.NewInterest("MsgA"),
		Spans:    sdkSpans{tracer: tp.Tracer("test")},
		Logger:   logger,
	})
	require.NoError(t, r.Route(context.Background(), explosive{id: "boom", v: 1}))

	_, err := r.QueryInternals(context.Background(), "boom")
	require.ErrorIs(t, err, eventseq.ErrShardGone)
	require.NoError(t, r.Close())

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "shard boom stopped: type tag unavailable", spans[0].Status.Description)

	mu.Lock()
	out := buf.String()
	mu.Unlock()
	assert.Contains(t, out, `"msg":"delivery failed"`)
	assert.Contains(t, out, `"version":1`)
	assert.Contains(t, out, `"msg":"shard stopped"`)
}

func TestRouterLogs(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	logger := slog.New(slog.NewJSONHandler(&lockedWriter{w: &buf, mu: &mu}, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := newRouter(t, eventseq.RouterConfig{Logger: logger, MaxPending: 1})
	route(t, r, "order-9", "MsgA", 1, 1, 5, 6)
	require.NoError(t, r.Close())

	mu.Lock()
	out := buf.String()
	mu.Unlock()

	assert.True(t, strings.Contains(out, `"msg":"shard created"`), out)
	assert.Contains(t, out, `"msg":"duplicate event"`)
	assert.Contains(t, out, `"msg":"future event buffered"`)
	assert.Contains(t, out, `"msg":"future event evicted"`)
	assert.Contains(t, out, `"aggregate_id":"order-9"`)
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
