package resequencer

import "math"

// Unset marks MinPending when no future events are buffered. It is never a
// valid version.
const Unset uint64 = math.MaxUint64

// MaxVersion is the highest version Insert accepts.
const MaxVersion = Unset - 1

// State is a diagnostic snapshot of one aggregate's book-keeping.
type State struct {
	AggregateID string `json:"aggregate_id"`

	// MaxAccepted is the highest version released in order, 0 if none.
	MaxAccepted uint64 `json:"max_accepted"`

	// MinPending is the lowest buffered version, or Unset.
	MinPending uint64 `json:"min_pending"`

	// Duplicates counts events at or below MaxAccepted.
	Duplicates uint64 `json:"duplicates"`

	// Pending is the number of buffered future events.
	Pending int `json:"pending"`

	// Evicted counts futures dropped by Config.MaxPending.
	Evicted uint64 `json:"evicted"`
}

// EmptyState is the state of an aggregate that has never been seen.
func EmptyState(aggregateID string) State {
	return State{AggregateID: aggregateID, MinPending: Unset}
}

// HasPending reports whether any future events are buffered.
func (s State) HasPending() bool {
	return s.MinPending != Unset
}

// NextExpected is the version that would be accepted immediately.
func (s State) NextExpected() uint64 {
	return s.MaxAccepted + 1
}
