package event

import (
	"context"
	"fmt"
	"time"
)

// handlerName extracts a name for a handler (for logging/metrics).
func handlerName(h Handler) string {
	return fmt.Sprintf("%T", h)
}

// LoggingMiddleware reports each delivery with its duration and outcome.
func LoggingMiddleware(logFn func(evt Event, handlerName string, duration time.Duration, err error)) MiddlewareFunc {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, evt Event) error {
			start := time.Now()
			err := next.Handle(ctx, evt)
			logFn(evt, handlerName(next), time.Since(start), err)
			return err
		})
	}
}

// RecoveryMiddleware turns handler panics into errors so one misbehaving
// consumer cannot take down its delivery goroutine.
func RecoveryMiddleware() MiddlewareFunc {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, evt Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &EventError{
						Event:     evt,
						Handler:   handlerName(next),
						Message:   fmt.Sprintf("handler panic: %v", r),
						Timestamp: time.Now(),
					}
				}
			}()
			return next.Handle(ctx, evt)
		})
	}
}

// FilterMiddleware drops events outside the interest before they reach next.
func FilterMiddleware(interest Interest) MiddlewareFunc {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, evt Event) error {
			if !interest.Matches(evt) {
				return nil
			}
			return next.Handle(ctx, evt)
		})
	}
}
