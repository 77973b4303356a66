// Package journal records accepted events downstream of the router.
//
// A journal is an ordinary consumer: subscribe it to a router and every
// accepted event in its interest is appended, per aggregate, in version
// order. Appends are idempotent on (aggregate id, version), so replaying a
// stream into the same journal is harmless. The journal does not persist
// resequencer state; it only keeps what was released.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/randalmurphal/eventseq/pkg/eventseq/event"
)

// Journal stores accepted events.
// Implementations must be safe for concurrent use.
type Journal interface {
	// Append stores evt. It reports false, without error, if the
	// aggregate already has an entry at that version. Versions above
	// MaxVersion fail with ErrVersionOutOfRange.
	Append(ctx context.Context, evt event.Event) (bool, error)

	// List returns the aggregate's entries in increasing version order.
	// Returns an empty slice (not error) for an unknown aggregate.
	List(ctx context.Context, aggregateID string) ([]Entry, error)

	// Head returns the highest stored version for the aggregate, 0 if none.
	Head(ctx context.Context, aggregateID string) (uint64, error)

	// Count returns the total number of entries.
	Count(ctx context.Context) (int, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Entry is one stored event.
type Entry struct {
	AggregateID string          `json:"aggregate_id"`
	Version     uint64          `json:"version"`
	Type        string          `json:"type"`
	EventID     string          `json:"id,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	RecordedAt  time.Time       `json:"recorded_at"`
}

// MaxVersion is the highest version a journal stores. SQLite integers are
// signed 64-bit.
const MaxVersion = math.MaxInt64

// Sentinel errors for journal operations.
var (
	// ErrJournalClosed indicates the journal has been closed.
	ErrJournalClosed = errors.New("journal closed")

	// ErrVersionOutOfRange is returned by Append for a version above MaxVersion.
	ErrVersionOutOfRange = errors.New("version out of range")
)

func checkVersion(evt event.Event) error {
	if evt.Version() > MaxVersion {
		return fmt.Errorf("append %s: %w", event.KeyOf(evt), ErrVersionOutOfRange)
	}
	return nil
}

// identified is implemented by events that carry their own id.
type identified interface {
	ID() string
}

// EntryOf captures evt as an Entry. The payload is taken from
// event.Payloader when the event implements it.
func EntryOf(evt event.Event) Entry {
	e := Entry{
		AggregateID: evt.AggregateID(),
		Version:     evt.Version(),
		Type:        evt.Type(),
		RecordedAt:  time.Now().UTC(),
	}
	if id, ok := evt.(identified); ok {
		e.EventID = id.ID()
	}
	if p, ok := evt.(event.Payloader); ok {
		if b := p.DataBytes(); len(b) > 0 && string(b) != "null" && json.Valid(b) {
			e.Payload = append(json.RawMessage(nil), b...)
		}
	}
	return e
}

// Event rebuilds a Record from the entry with the payload left as raw JSON.
func (e Entry) Event() *event.Record[json.RawMessage] {
	opts := []event.Option{event.WithTimestamp(e.RecordedAt)}
	if e.EventID != "" {
		opts = append(opts, event.WithEventID(e.EventID))
	}
	return event.New(e.AggregateID, e.Version, e.Type, e.Payload, opts...)
}
