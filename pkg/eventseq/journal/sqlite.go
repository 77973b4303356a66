package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/randalmurphal/eventseq/pkg/eventseq/event"
)

// SQLiteJournal persists accepted events to SQLite.
// It is suitable for single-process production use.
type SQLiteJournal struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// Compile-time interface check.
var _ Journal = (*SQLiteJournal)(nil)

// NewSQLiteJournal opens (creating if needed) a journal database.
// The path should be a file path (e.g., "./journal.db") or ":memory:" for testing.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and
	// serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			aggregate_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			type TEXT NOT NULL,
			event_id TEXT NOT NULL DEFAULT '',
			payload BLOB,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (aggregate_id, version)
		) WITHOUT ROWID
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

// Append implements Journal.
func (s *SQLiteJournal) Append(ctx context.Context, evt event.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrJournalClosed
	}
	if err := checkVersion(evt); err != nil {
		return false, err
	}

	e := EntryOf(evt)
	var payload []byte
	if len(e.Payload) > 0 {
		payload = e.Payload
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (aggregate_id, version, type, event_id, payload, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(aggregate_id, version) DO NOTHING
	`, e.AggregateID, int64(e.Version), e.Type, e.EventID, payload, e.RecordedAt.Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("append %s: %w", event.KeyOf(evt), err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append %s: %w", event.KeyOf(evt), err)
	}
	return n == 1, nil
}

// List implements Journal.
func (s *SQLiteJournal) List(ctx context.Context, aggregateID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrJournalClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT version, type, event_id, payload, recorded_at
		FROM events
		WHERE aggregate_id = ?
		ORDER BY version
	`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e          Entry
			version    int64
			payload    []byte
			recordedAt string
		)
		if err := rows.Scan(&version, &e.Type, &e.EventID, &payload, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.AggregateID = aggregateID
		e.Version = uint64(version)
		if len(payload) > 0 {
			e.Payload = payload
		}
		e.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return entries, nil
}

// Head implements Journal.
func (s *SQLiteJournal) Head(ctx context.Context, aggregateID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrJournalClosed
	}

	var head int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = ?
	`, aggregateID).Scan(&head)
	if err != nil {
		return 0, fmt.Errorf("head %s: %w", aggregateID, err)
	}
	return uint64(head), nil
}

// Count implements Journal.
func (s *SQLiteJournal) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrJournalClosed
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// Close implements Journal.
func (s *SQLiteJournal) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
