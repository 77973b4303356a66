package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records for testing.
type testHandler struct {
	buf   *bytes.Buffer
	level slog.Level
	attrs []slog.Attr
}

func newTestHandler() *testHandler {
	return &testHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := &testHandler{
		buf:   h.buf,
		level: h.level,
		attrs: make([]slog.Attr, len(h.attrs)+len(attrs)),
	}
	copy(newH.attrs, h.attrs)
	copy(newH.attrs[len(h.attrs):], attrs)
	return newH
}

func (h *testHandler) WithGroup(string) slog.Handler {
	return h
}

func (h *testHandler) lastRecord() map[string]any {
	lines := bytes.Split(bytes.TrimSpace(h.buf.Bytes()), []byte("\n"))
	if len(lines) == 0 || len(lines[len(lines)-1]) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &m); err != nil {
		return nil
	}
	return m
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds aggregate_id", func(t *testing.T) {
		h := newTestHandler()
		enriched := EnrichLogger(slog.New(h), "order-1")
		enriched.Info("test message")

		record := h.lastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "order-1", record["aggregate_id"])
		assert.Equal(t, "test message", record["msg"])
	})

	t.Run("nil logger returns nil", func(t *testing.T) {
		assert.Nil(t, EnrichLogger(nil, "order-1"))
	})
}

func TestLogHelpers(t *testing.T) {
	tests := []struct {
		name  string
		log   func(*slog.Logger)
		level string
		msg   string
		check map[string]any
	}{
		{
			name:  "shard created",
			log:   func(l *slog.Logger) { LogShardCreated(l, "k", 10240) },
			level: "DEBUG",
			msg:   "shard created",
			check: map[string]any{"aggregate_id": "k", "initial_capacity": float64(10240)},
		},
		{
			name:  "duplicate",
			log:   func(l *slog.Logger) { LogDuplicate(l, "k", 2, 5, 3) },
			level: "DEBUG",
			msg:   "duplicate event",
			check: map[string]any{"version": float64(2), "max_accepted": float64(5), "duplicates": float64(3)},
		},
		{
			name:  "future",
			log:   func(l *slog.Logger) { LogFuture(l, "k", 4, 1, 1) },
			level: "DEBUG",
			msg:   "future event buffered",
			check: map[string]any{"version": float64(4), "pending": float64(1)},
		},
		{
			name:  "drain",
			log:   func(l *slog.Logger) { LogDrain(l, "k", 2, 6, 0) },
			level: "DEBUG",
			msg:   "gap closed",
			check: map[string]any{"from_version": float64(2), "to_version": float64(6), "remaining": float64(0)},
		},
		{
			name:  "violation",
			log:   func(l *slog.Logger) { LogConsistencyViolation(l, "k", 3, 4, 7) },
			level: "ERROR",
			msg:   "consistency violation",
			check: map[string]any{"expected_min_pending": float64(4), "actual_min_pending": float64(7)},
		},
		{
			name:  "eviction",
			log:   func(l *slog.Logger) { LogEviction(l, "k", 99, 8) },
			level: "WARN",
			msg:   "future event evicted",
			check: map[string]any{"version": float64(99), "max_pending": float64(8)},
		},
		{
			name:  "filter reset",
			log:   func(l *slog.Logger) { LogFilterReset(l, "k", 20, 16, 3) },
			level: "DEBUG",
			msg:   "membership filter rebuilt",
			check: map[string]any{"added": float64(20), "capacity": float64(16), "pending": float64(3)},
		},
		{
			name:  "delivery error",
			log:   func(l *slog.Logger) { LogDeliveryError(l, "k", 1, "sub-1", errors.New("sink down")) },
			level: "WARN",
			msg:   "delivery failed",
			check: map[string]any{"subscriber": "sub-1", "error": "sink down"},
		},
		{
			name:  "route error",
			log:   func(l *slog.Logger) { LogRouteError(l, "k", 1, errors.New("closed")) },
			level: "ERROR",
			msg:   "route failed",
			check: map[string]any{"error": "closed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler()
			tt.log(slog.New(h))

			record := h.lastRecord()
			require.NotNil(t, record)
			assert.Equal(t, tt.level, record["level"])
			assert.Equal(t, tt.msg, record["msg"])
			for k, v := range tt.check {
				assert.Equal(t, v, record[k], k)
			}
		})

		t.Run(tt.name+" nil logger", func(t *testing.T) {
			assert.NotPanics(t, func() { tt.log(nil) })
		})
	}
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	assert.GreaterOrEqual(t, done(), float64(0))
}
