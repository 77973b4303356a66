package event_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventseq/pkg/eventseq/event"
)

func TestChainMiddlewareOrder(t *testing.T) {
	var trace []string
	mw := func(name string) event.MiddlewareFunc {
		return func(next event.Handler) event.Handler {
			return event.HandlerFunc(func(ctx context.Context, evt event.Event) error {
				trace = append(trace, name)
				return next.Handle(ctx, evt)
			})
		}
	}

	h := event.ChainMiddleware(event.HandlerFunc(func(context.Context, event.Event) error {
		trace = append(trace, "handler")
		return nil
	}), mw("outer"), mw("inner"))

	require.NoError(t, h.Handle(context.Background(), event.NewAny("k", 1, "MsgA", nil)))
	assert.Equal(t, []string{"outer", "inner", "handler"}, trace)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := event.ChainMiddleware(event.HandlerFunc(func(context.Context, event.Event) error {
		panic("boom")
	}), event.RecoveryMiddleware())

	err := h.Handle(context.Background(), event.NewAny("k", 3, "MsgA", nil))

	var evtErr *event.EventError
	require.ErrorAs(t, err, &evtErr)
	assert.Contains(t, evtErr.Message, "boom")
	assert.Equal(t, uint64(3), evtErr.Event.Version())
}

func TestLoggingMiddleware(t *testing.T) {
	wantErr := errors.New("sink down")
	var (
		loggedErr error
		loggedFor string
	)

	h := event.ChainMiddleware(event.HandlerFunc(func(context.Context, event.Event) error {
		return wantErr
	}), event.LoggingMiddleware(func(evt event.Event, _ string, _ time.Duration, err error) {
		loggedFor = event.KeyOf(evt).String()
		loggedErr = err
	}))

	err := h.Handle(context.Background(), event.NewAny("k", 2, "MsgA", nil))
	assert.ErrorIs(t, err, wantErr)
	assert.ErrorIs(t, loggedErr, wantErr)
	assert.Equal(t, "k@2", loggedFor)
}

func TestFilterMiddleware(t *testing.T) {
	c := &collector{}
	h := event.ChainMiddleware(c, event.FilterMiddleware(event.NewInterest("MsgB")))

	ctx := context.Background()
	for v, typ := range []string{"MsgA", "MsgB", "MsgC", "MsgB"} {
		require.NoError(t, h.Handle(ctx, event.NewAny("k", uint64(v+1), typ, nil)))
	}

	assert.Equal(t, []uint64{2, 4}, c.got())
}
