package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/randalmurphal/eventseq/pkg/eventseq"
	"github.com/randalmurphal/eventseq/pkg/eventseq/event"
	"github.com/randalmurphal/eventseq/pkg/eventseq/journal"
	"github.com/randalmurphal/eventseq/pkg/eventseq/resequencer"
)

// maxLineSize bounds one input line.
const maxLineSize = 4 << 20

// line is the wire shape for both input and output.
type line struct {
	AggregateID string          `json:"aggregate_id"`
	Version     uint64          `json:"version"`
	Type        string          `json:"type"`
	ID          string          `json:"id,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

func (l line) validate() error {
	switch {
	case l.AggregateID == "":
		return errors.New("missing aggregate_id")
	case l.Version == 0:
		return errors.New("version must be at least 1")
	case l.Version > resequencer.MaxVersion:
		return fmt.Errorf("version must be at most %d", resequencer.MaxVersion)
	}
	return nil
}

func (l line) event() *event.Record[json.RawMessage] {
	var opts []event.Option
	if l.ID != "" {
		opts = append(opts, event.WithEventID(l.ID))
	}
	return event.New(l.AggregateID, l.Version, l.Type, l.Payload, opts...)
}

type feedStats struct {
	lines   int
	routed  int
	skipped int
}

// feed routes every well-formed input line. Malformed lines are logged and
// skipped; routing errors stop the feed.
func feed(ctx context.Context, router *eventseq.Router, r io.Reader, logger *slog.Logger) (feedStats, error) {
	var stats feedStats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		stats.lines++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var l line
		err := json.Unmarshal(raw, &l)
		if err == nil {
			err = l.validate()
		}
		if err != nil {
			stats.skipped++
			logger.Warn("skipping input line",
				slog.Int("line", stats.lines),
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := router.Route(ctx, l.event()); err != nil {
			return stats, fmt.Errorf("line %d: %w", stats.lines, err)
		}
		stats.routed++
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read input: %w", err)
	}
	return stats, nil
}

// lineWriter writes accepted events as JSON lines.
type lineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{enc: json.NewEncoder(w)}
}

func (w *lineWriter) Handle(_ context.Context, evt event.Event) error {
	e := journal.EntryOf(evt)

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(line{
		AggregateID: e.AggregateID,
		Version:     e.Version,
		Type:        e.Type,
		ID:          e.EventID,
		Payload:     e.Payload,
	})
}
