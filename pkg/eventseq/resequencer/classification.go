package resequencer

// Classification is the outcome of evaluating one event against the state.
type Classification int

const (
	// Duplicate: version <= MaxAccepted. Counted, never emitted.
	Duplicate Classification = iota

	// Next: version == MaxAccepted+1. Emitted immediately.
	Next

	// GapClosedWithMissing: version == MaxAccepted+1 and the lowest buffered
	// future sits right behind it. Emitted, then the buffer drains.
	GapClosedWithMissing

	// Future: version > MaxAccepted+1. Buffered until the gap closes.
	Future
)

// String returns the classification name.
func (c Classification) String() string {
	switch c {
	case Duplicate:
		return "duplicate"
	case Next:
		return "next"
	case GapClosedWithMissing:
		return "gap_closed_with_missing"
	case Future:
		return "future"
	default:
		return "unknown"
	}
}

// Accepts reports whether the event is released by this classification.
func (c Classification) Accepts() bool {
	return c == Next || c == GapClosedWithMissing
}

// classify is the pure transition table.
func classify(version, maxAccepted, minPending uint64) Classification {
	switch {
	case version <= maxAccepted:
		return Duplicate
	case version == maxAccepted+1 && minPending != Unset && minPending == maxAccepted+2:
		return GapClosedWithMissing
	case version == maxAccepted+1:
		return Next
	default:
		return Future
	}
}
