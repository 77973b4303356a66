// Package errors classifies consumer failures and retries deliveries.
//
// A consumer of accepted events can fail. Transient failures (a timed-out
// append, a sink that is warming up) are worth another attempt; anything
// else is permanent and goes straight to the bus error hook.
package errors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Category says whether another attempt can help.
type Category int

const (
	// CategoryTransient failures are retried.
	CategoryTransient Category = iota

	// CategoryPermanent failures are reported without retrying.
	CategoryPermanent
)

func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	}
	return "unknown"
}

// CategorizedError attaches a category to a consumer error. Do also sets
// Retries to the number of attempts it made.
type CategorizedError struct {
	Err      error
	Category Category
	Retries  int

	// Context names the failing operation, e.g. "journal append".
	Context string
}

func (e *CategorizedError) Error() string {
	msg := fmt.Sprintf("%s (category: %s, attempts: %d)", e.Err, e.Category, e.Retries)
	if e.Context == "" {
		return msg
	}
	return e.Context + ": " + msg
}

func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Transient marks err as worth retrying.
func Transient(err error, op string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryTransient, Context: op}
}

// Permanent marks err as not worth retrying.
func Permanent(err error, op string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryPermanent, Context: op}
}

// TimeoutError reports an operation that ran past its own deadline.
// It is transient.
type TimeoutError struct {
	Operation string
	After     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s", e.Operation, e.After)
}

// Categorize returns the category of err. Errors that carry no category
// are permanent, except timeouts.
func Categorize(err error) Category {
	var ce *CategorizedError
	var te *TimeoutError
	switch {
	case err == nil:
		return CategoryPermanent
	case errors.As(err, &ce):
		return ce.Category
	case errors.As(err, &te), errors.Is(err, context.DeadlineExceeded):
		return CategoryTransient
	}
	return CategoryPermanent
}

// IsRetryable reports whether err is transient.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}

// Cause strips the categorized wrappers Do adds and returns the consumer's
// own error. Errors without a category are returned as they are.
func Cause(err error) error {
	var ce *CategorizedError
	for errors.As(err, &ce) && ce.Err != nil {
		err = ce.Err
	}
	return err
}

// Attempts returns the attempt count Do recorded on err, or zero.
func Attempts(err error) int {
	var ce *CategorizedError
	if errors.As(err, &ce) {
		return ce.Retries
	}
	return 0
}
