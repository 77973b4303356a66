package event

import (
	"fmt"
	"time"
)

// EventError represents an error while delivering an event.
type EventError struct {
	Event     Event     // The event that failed
	Handler   string    // Handler or subscription that failed (if known)
	Message   string    // Error message
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
}

// Error implements error interface.
func (e *EventError) Error() string {
	key := "<nil>"
	if e.Event != nil {
		key = KeyOf(e.Event).String()
	}
	if e.Err != nil {
		return fmt.Sprintf("event %s: %s: %v", key, e.Message, e.Err)
	}
	return fmt.Sprintf("event %s: %s", key, e.Message)
}

// Unwrap returns the underlying error.
func (e *EventError) Unwrap() error {
	return e.Err
}
