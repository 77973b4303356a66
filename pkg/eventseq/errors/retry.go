package errors

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig bounds how often a failed delivery is attempted.
type RetryConfig struct {
	// MaxAttempts counts the first attempt. Values <= 0 mean one attempt.
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait. Zero leaves it uncapped.
	MaxBackoff time.Duration

	// BackoffFactor multiplies the wait after every failure.
	// Values <= 1 keep it constant.
	BackoffFactor float64

	// Jitter spreads each wait by up to this fraction either way (0.0-1.0).
	Jitter float64
}

// DefaultRetry is used for keys a configuration leaves out. Delivery blocks
// the consumer's queue, so backoff is kept short.
var DefaultRetry = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 50 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// NoRetry delivers once.
var NoRetry = RetryConfig{MaxAttempts: 1}

// Do calls fn until it succeeds, fails with a non-transient error, runs out
// of attempts or ctx is done. A failure comes back as a *CategorizedError
// whose Retries field holds the number of attempts made.
func Do(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	attempts := max(cfg.MaxAttempts, 1)
	wait := cfg.InitialBackoff

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return &CategorizedError{Err: err, Category: CategoryPermanent, Retries: n - 1, Context: "delivery canceled"}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if n >= attempts || !IsRetryable(err) {
			return withAttempts(err, n)
		}

		timer := time.NewTimer(cfg.jittered(wait))
		select {
		case <-ctx.Done():
			timer.Stop()
			return &CategorizedError{Err: ctx.Err(), Category: CategoryPermanent, Retries: n, Context: "delivery canceled"}
		case <-timer.C:
		}
		wait = cfg.grow(wait)
	}
}

// withAttempts records the attempt count on err without nesting a
// categorized error inside another.
func withAttempts(err error, attempts int) *CategorizedError {
	if ce, ok := err.(*CategorizedError); ok {
		out := *ce
		out.Retries = attempts
		return &out
	}
	return &CategorizedError{Err: err, Category: Categorize(err), Retries: attempts}
}

func (c RetryConfig) jittered(d time.Duration) time.Duration {
	if c.Jitter <= 0 || d <= 0 {
		return d
	}
	spread := float64(d) * min(c.Jitter, 1)
	return d + time.Duration(spread*(2*rand.Float64()-1))
}

func (c RetryConfig) grow(d time.Duration) time.Duration {
	if c.BackoffFactor > 1 {
		d = time.Duration(float64(d) * c.BackoffFactor)
	}
	if c.MaxBackoff > 0 && d > c.MaxBackoff {
		d = c.MaxBackoff
	}
	return d
}
