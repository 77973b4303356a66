package journal

import (
	"context"
	"errors"
	"time"

	seqerrors "github.com/randalmurphal/eventseq/pkg/eventseq/errors"
	"github.com/randalmurphal/eventseq/pkg/eventseq/event"
)

// DefaultAppendTimeout bounds one append made by a consumer.
const DefaultAppendTimeout = 5 * time.Second

// Option configures a Recorder.
type Option func(*consumer)

// WithAppendTimeout bounds each append. Zero or less disables the bound.
func WithAppendTimeout(d time.Duration) Option {
	return func(c *consumer) {
		c.timeout = d
	}
}

// Consumer adapts j into an event.Consumer for the given types. Pass it to
// Router.Subscribe; use Recorder with SubscribeAll to journal everything.
//
// An append that runs past DefaultAppendTimeout fails with a
// *errors.TimeoutError, and other storage failures are marked transient,
// so a bus retry policy applies to both. A closed journal, a version above
// MaxVersion or a done caller context is permanent.
func Consumer(j Journal, types ...string) event.Consumer {
	return &consumer{journal: j, types: types, timeout: DefaultAppendTimeout}
}

// Recorder returns an event.Handler that journals every event it is sent.
// Failures are classified as for Consumer.
func Recorder(j Journal, opts ...Option) event.Handler {
	c := &consumer{journal: j, timeout: DefaultAppendTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type consumer struct {
	journal Journal
	types   []string
	timeout time.Duration
}

func (c *consumer) Handle(ctx context.Context, evt event.Event) error {
	actx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	_, err := c.journal.Append(actx, evt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrJournalClosed), errors.Is(err, ErrVersionOutOfRange), ctx.Err() != nil:
		return seqerrors.Permanent(err, "journal append")
	case actx.Err() != nil:
		return &seqerrors.TimeoutError{Operation: "journal append", After: c.timeout}
	}
	return seqerrors.Transient(err, "journal append")
}

func (c *consumer) Interests() []string {
	return c.types
}
