package resequencer

import (
	"errors"
	"fmt"
)

// Sentinel errors for resequencer operations.
var (
	// ErrConsistencyViolation means the buffered minimum and MinPending
	// disagreed. It always indicates a defect.
	ErrConsistencyViolation = errors.New("consistency violation")

	// ErrAggregateMismatch is returned when an event is routed to the
	// resequencer of a different aggregate.
	ErrAggregateMismatch = errors.New("event belongs to a different aggregate")

	// ErrVersionOutOfRange is returned for a version above MaxVersion.
	ErrVersionOutOfRange = errors.New("version out of range")
)

// ConsistencyError describes a broken buffer invariant. State has already
// been resynchronised from the buffer when it is returned.
type ConsistencyError struct {
	AggregateID string
	Version     uint64 // event being processed when the check failed
	Expected    uint64 // buffered minimum, or Unset when empty
	Actual      uint64 // MinPending before resync
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("aggregate %s at version %d: min pending is %s, buffer minimum is %s",
		e.AggregateID, e.Version, formatVersion(e.Actual), formatVersion(e.Expected))
}

// Unwrap returns ErrConsistencyViolation for errors.Is.
func (e *ConsistencyError) Unwrap() error {
	return ErrConsistencyViolation
}

func formatVersion(v uint64) string {
	if v == Unset {
		return "unset"
	}
	return fmt.Sprintf("%d", v)
}
