package journal

import (
	"context"
	"slices"
	"sync"

	"github.com/randalmurphal/eventseq/pkg/eventseq/event"
)

// MemoryJournal is an in-memory journal for tests and short-lived tools.
// Data is lost when the process exits.
type MemoryJournal struct {
	mu      sync.RWMutex
	entries map[string]map[uint64]Entry // aggregate id -> version -> entry
	count   int
	closed  bool
}

// Compile-time interface check.
var _ Journal = (*MemoryJournal)(nil)

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		entries: make(map[string]map[uint64]Entry),
	}
}

// Append implements Journal.
func (m *MemoryJournal) Append(_ context.Context, evt event.Event) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, ErrJournalClosed
	}
	if err := checkVersion(evt); err != nil {
		return false, err
	}

	byVersion := m.entries[evt.AggregateID()]
	if byVersion == nil {
		byVersion = make(map[uint64]Entry)
		m.entries[evt.AggregateID()] = byVersion
	}
	if _, exists := byVersion[evt.Version()]; exists {
		return false, nil
	}

	byVersion[evt.Version()] = EntryOf(evt)
	m.count++
	return true, nil
}

// List implements Journal.
func (m *MemoryJournal) List(_ context.Context, aggregateID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrJournalClosed
	}

	out := make([]Entry, 0, len(m.entries[aggregateID]))
	for _, e := range m.entries[aggregateID] {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return event.Key{AggregateID: a.AggregateID, Version: a.Version}.
			Compare(event.Key{AggregateID: b.AggregateID, Version: b.Version})
	})
	return out, nil
}

// Head implements Journal.
func (m *MemoryJournal) Head(_ context.Context, aggregateID string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrJournalClosed
	}

	var head uint64
	for v := range m.entries[aggregateID] {
		head = max(head, v)
	}
	return head, nil
}

// Count implements Journal.
func (m *MemoryJournal) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrJournalClosed
	}
	return m.count, nil
}

// Close implements Journal.
func (m *MemoryJournal) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.entries = nil
	return nil
}
