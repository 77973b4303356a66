// Package resequencer implements the per-aggregate ordering state machine.
//
// A Resequencer tracks the highest version released for one aggregate,
// counts duplicates and buffers events that arrive ahead of a gap. When the
// missing version turns up, the contiguous run of buffered events behind it
// is released in the same call:
//
//	r, _ := resequencer.New("order-42", resequencer.Config{})
//	r.Insert(v1) // Next: [v1]
//	r.Insert(v4) // Future: []
//	r.Insert(v3) // Future: []
//	r.Insert(v1) // Duplicate: []
//	r.Insert(v2) // GapClosedWithMissing: [v2 v3 v4]
//
// A Resequencer is not safe for concurrent use. The router gives each one
// its own goroutine.
package resequencer

import (
	"fmt"
	"log/slog"

	"github.com/google/btree"

	"github.com/randalmurphal/eventseq/pkg/eventseq/bloom"
	"github.com/randalmurphal/eventseq/pkg/eventseq/event"
	"github.com/randalmurphal/eventseq/pkg/eventseq/observability"
)

// DefaultInitialCapacity sizes the membership filter when Config leaves it zero.
const DefaultInitialCapacity = 10240

const btreeDegree = 32

// Config configures a Resequencer.
type Config struct {
	// InitialCapacity is the number of buffered futures the membership
	// filter is sized for. Default: DefaultInitialCapacity
	InitialCapacity int

	// ErrorRate is the membership filter's false-positive rate.
	// Default: bloom.BestErrorRate(InitialCapacity)
	ErrorRate float64

	// MaxPending bounds the future buffer. When exceeded, the furthest-future
	// event is evicted. Default: 0 (unbounded)
	MaxPending int

	// Logger receives debug and violation logs. Default: slog.Default()
	Logger *slog.Logger

	// PanicOnViolation panics on a consistency violation instead of
	// resynchronising and returning the error.
	PanicOnViolation bool
}

// Result is the outcome of one Insert.
type Result struct {
	Classification Classification

	// Accepted holds the released events in increasing version order.
	Accepted []event.Event

	// Buffered is true when a Future was newly added to the buffer and
	// false when it was already there.
	Buffered bool

	// Evicted holds futures dropped to respect Config.MaxPending.
	Evicted []event.Event
}

// Resequencer is the state machine for one aggregate.
type Resequencer struct {
	aggregateID string
	cfg         Config
	logger      *slog.Logger

	maxAccepted uint64
	minPending  uint64
	duplicates  uint64
	evicted     uint64

	pending *btree.BTreeG[event.Sortable]
	seen    *bloom.Filter[uint64] // versions that may be in pending
}

// New creates a resequencer for aggregateID. It fails only if the
// membership filter cannot be built from cfg.
func New(aggregateID string, cfg Config) (*Resequencer, error) {
	if cfg.InitialCapacity == 0 {
		cfg.InitialCapacity = DefaultInitialCapacity
	}
	if cfg.MaxPending < 0 {
		return nil, fmt.Errorf("resequencer %s: max pending must not be negative, got %d", aggregateID, cfg.MaxPending)
	}

	seen, err := newFilter(cfg.InitialCapacity, cfg.ErrorRate)
	if err != nil {
		return nil, fmt.Errorf("resequencer %s: %w", aggregateID, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Resequencer{
		aggregateID: aggregateID,
		cfg:         cfg,
		logger:      logger,
		minPending:  Unset,
		pending:     btree.NewG(btreeDegree, event.LessSortable),
		seen:        seen,
	}, nil
}

func newFilter(capacity int, errorRate float64) (*bloom.Filter[uint64], error) {
	var opts []bloom.Option[uint64]
	if errorRate != 0 {
		opts = append(opts, bloom.WithErrorRate[uint64](errorRate))
	}
	return bloom.New[uint64](capacity, opts...)
}

// AggregateID returns the aggregate this resequencer orders.
func (r *Resequencer) AggregateID() string {
	return r.aggregateID
}

// Classify evaluates version against the current state without changing it.
func (r *Resequencer) Classify(version uint64) Classification {
	return classify(version, r.maxAccepted, r.minPending)
}

// Insert applies evt to the state and returns what it released.
//
// Duplicates and futures are not errors. A non-nil error is either
// ErrAggregateMismatch or ErrVersionOutOfRange, in which case nothing
// changed, or a *ConsistencyError, in which case the result is still valid
// and the state has been repaired.
func (r *Resequencer) Insert(evt event.Event) (Result, error) {
	if evt.AggregateID() != r.aggregateID {
		return Result{}, fmt.Errorf("%w: got %q, want %q", ErrAggregateMismatch, evt.AggregateID(), r.aggregateID)
	}

	version := evt.Version()
	if version > MaxVersion {
		return Result{}, fmt.Errorf("%w: %d", ErrVersionOutOfRange, version)
	}
	res := Result{Classification: r.Classify(version)}

	switch res.Classification {
	case Duplicate:
		r.duplicates++
		observability.LogDuplicate(r.logger, r.aggregateID, version, r.maxAccepted, r.duplicates)
		return res, nil

	case Next:
		r.maxAccepted = version
		res.Accepted = []event.Event{evt}
		return res, nil

	case GapClosedWithMissing:
		r.maxAccepted = version
		res.Accepted = r.drain([]event.Event{evt})
		observability.LogDrain(r.logger, r.aggregateID, version, r.maxAccepted, r.pending.Len())
		return res, r.checkBuffer(version)

	default:
		res.Buffered, res.Evicted = r.buffer(evt)
		if res.Buffered {
			observability.LogFuture(r.logger, r.aggregateID, version, r.maxAccepted, r.pending.Len())
		}
		return res, r.checkBuffer(version)
	}
}

// drain releases buffered events while the smallest one is next in line.
func (r *Resequencer) drain(accepted []event.Event) []event.Event {
	for {
		head, ok := r.pending.Min()
		if !ok {
			break
		}
		v := head.Key().Version
		switch classify(v, r.maxAccepted, v) {
		case Next, GapClosedWithMissing:
			r.pending.DeleteMin()
			r.maxAccepted = v
			accepted = append(accepted, head.Event())
			continue
		case Duplicate:
			// Stale entry below the accepted version. Nothing to release.
			r.pending.DeleteMin()
			continue
		}
		break
	}

	r.minPending = Unset
	if head, ok := r.pending.Min(); ok {
		r.minPending = head.Key().Version
	}
	return accepted
}

// buffer adds a future event unless that version is already buffered.
func (r *Resequencer) buffer(evt event.Event) (bool, []event.Event) {
	version := evt.Version()
	item := event.SortableOf(evt)

	if r.seen.Contains(version) && r.pending.Has(item) {
		return false, nil
	}

	r.pending.ReplaceOrInsert(item)
	r.seen.Add(version)
	r.minPending = min(r.minPending, version)

	evicted := r.evict()
	r.resetFilter()

	return true, evicted
}

// evict trims the buffer to MaxPending by dropping the highest versions.
func (r *Resequencer) evict() []event.Event {
	if r.cfg.MaxPending <= 0 {
		return nil
	}

	var evicted []event.Event
	for r.pending.Len() > r.cfg.MaxPending {
		item, ok := r.pending.DeleteMax()
		if !ok {
			break
		}
		r.evicted++
		evicted = append(evicted, item.Event())
		observability.LogEviction(r.logger, r.aggregateID, item.Key().Version, r.cfg.MaxPending)
	}
	return evicted
}

// resetFilter rebuilds the membership filter from the live buffer once more
// versions went through it than it was sized for.
func (r *Resequencer) resetFilter() {
	if !r.seen.Saturated() {
		return
	}

	capacity := max(r.cfg.InitialCapacity, 2*r.pending.Len())
	seen, err := newFilter(capacity, r.cfg.ErrorRate)
	if err != nil {
		// The saturated filter is still correct, only less selective.
		return
	}

	r.pending.Ascend(func(item event.Sortable) bool {
		seen.Add(item.Key().Version)
		return true
	})
	observability.LogFilterReset(r.logger, r.aggregateID, r.seen.Added(), r.seen.Capacity(), r.pending.Len())
	r.seen = seen
}

// checkBuffer verifies MinPending against the buffered minimum and repairs
// it on mismatch.
func (r *Resequencer) checkBuffer(version uint64) error {
	expected := Unset
	if head, ok := r.pending.Min(); ok {
		expected = head.Key().Version
	}
	if expected == r.minPending {
		return nil
	}

	err := &ConsistencyError{
		AggregateID: r.aggregateID,
		Version:     version,
		Expected:    expected,
		Actual:      r.minPending,
	}
	observability.LogConsistencyViolation(r.logger, r.aggregateID, version, expected, r.minPending)
	if r.cfg.PanicOnViolation {
		panic(err)
	}

	r.minPending = expected
	return err
}

// State returns a snapshot of the book-keeping.
func (r *Resequencer) State() State {
	return State{
		AggregateID: r.aggregateID,
		MaxAccepted: r.maxAccepted,
		MinPending:  r.minPending,
		Duplicates:  r.duplicates,
		Pending:     r.pending.Len(),
		Evicted:     r.evicted,
	}
}

// Pending returns the buffered futures in increasing version order.
func (r *Resequencer) Pending() []event.Event {
	out := make([]event.Event, 0, r.pending.Len())
	r.pending.Ascend(func(item event.Sortable) bool {
		out = append(out, item.Event())
		return true
	})
	return out
}
