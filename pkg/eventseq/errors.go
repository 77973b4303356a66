package eventseq

import (
	"errors"
	"fmt"
)

// Sentinel errors for routing.
var (
	// ErrRouterClosed indicates Route or QueryInternals was called after Close.
	ErrRouterClosed = errors.New("router closed")

	// ErrShardGone indicates the shard for a key stopped after a fault.
	// The key's events are no longer processed; other keys are unaffected.
	ErrShardGone = errors.New("shard gone")

	// ErrNilEvent indicates Route was called without an event.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrNilContext indicates a nil context was passed.
	ErrNilContext = errors.New("context cannot be nil")
)

// ShardError reports why a shard stopped.
type ShardError struct {
	// AggregateID is the key whose shard stopped.
	AggregateID string
	// Cause is the recovered panic value.
	Cause any
}

// Error implements the error interface.
func (e *ShardError) Error() string {
	return fmt.Sprintf("shard %s stopped: %v", e.AggregateID, e.Cause)
}

// Unwrap returns ErrShardGone, and the cause when it is an error.
func (e *ShardError) Unwrap() []error {
	if err, ok := e.Cause.(error); ok {
		return []error{ErrShardGone, err}
	}
	return []error{ErrShardGone}
}
