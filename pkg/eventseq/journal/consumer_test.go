package journal_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventseq/pkg/eventseq"
	seqerrors "github.com/randalmurphal/eventseq/pkg/eventseq/errors"
	"github.com/randalmurphal/eventseq/pkg/eventseq/event"
	"github.com/randalmurphal/eventseq/pkg/eventseq/journal"
)

func TestConsumerJournalsRouterOutput(t *testing.T) {
	ctx := context.Background()
	j := journal.NewMemoryJournal()
	defer j.Close()

	r := eventseq.NewRouter(eventseq.RouterConfig{
		InitialCapacity: 64,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	sub := r.Subscribe(journal.Consumer(j, "MsgB"))
	require.NotNil(t, sub)

	types := map[uint64]string{1: "MsgA", 2: "MsgB", 3: "MsgB", 4: "MsgA", 5: "MsgB"}
	for _, v := range []uint64{5, 3, 1, 4, 2, 3} {
		require.NoError(t, r.Route(ctx, event.NewAny("k", v, types[v], nil)))
	}

	require.NoError(t, r.Close())
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("journal subscription did not complete")
	}

	entries, err := j.List(ctx, "k")
	require.NoError(t, err)

	var versions []uint64
	for _, e := range entries {
		versions = append(versions, e.Version)
	}
	assert.Equal(t, []uint64{2, 3, 5}, versions)
}

func TestRecorderJournalsEverything(t *testing.T) {
	ctx := context.Background()
	j := journal.NewMemoryJournal()
	defer j.Close()

	h := journal.Recorder(j)
	require.NoError(t, h.Handle(ctx, event.NewAny("k", 1, "MsgA", nil)))
	require.NoError(t, h.Handle(ctx, event.NewAny("k", 2, "MsgZ", nil)))

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestConsumerErrorCategories(t *testing.T) {
	ctx := context.Background()

	closed := journal.NewMemoryJournal()
	require.NoError(t, closed.Close())
	err := journal.Consumer(closed).Handle(ctx, event.NewAny("k", 1, "MsgA", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, journal.ErrJournalClosed)
	assert.False(t, seqerrors.IsRetryable(err))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	j, err := journal.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer j.Close()

	err = journal.Consumer(j).Handle(canceled, event.NewAny("k", 1, "MsgA", nil))
	require.Error(t, err)
	assert.False(t, seqerrors.IsRetryable(err))

	err = journal.Consumer(j).Handle(ctx, event.NewAny("k", journal.MaxVersion+1, "MsgA", nil))
	assert.ErrorIs(t, err, journal.ErrVersionOutOfRange)
	assert.False(t, seqerrors.IsRetryable(err))

	err = journal.Consumer(failingJournal{}).Handle(ctx, event.NewAny("k", 1, "MsgA", nil))
	require.Error(t, err)
	assert.True(t, seqerrors.IsRetryable(err))
}

// failingJournal fails every append.
type failingJournal struct {
	journal.Journal
}

func (failingJournal) Append(context.Context, event.Event) (bool, error) {
	return false, errors.New("disk I/O error")
}

func TestRecorderAppendTimeout(t *testing.T) {
	h := journal.Recorder(stalledJournal{}, journal.WithAppendTimeout(10*time.Millisecond))

	err := h.Handle(context.Background(), event.NewAny("k", 1, "MsgA", nil))
	require.Error(t, err)

	var timeout *seqerrors.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "journal append", timeout.Operation)
	assert.Equal(t, 10*time.Millisecond, timeout.After)
	assert.True(t, seqerrors.IsRetryable(err))
}

func TestRecorderTimeoutRetriedByBus(t *testing.T) {
	dead := event.NewDeadLetters(10)
	bus := event.NewBus(event.BusConfig{
		Retry:   seqerrors.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond},
		OnError: dead.Record,
	})

	sub := bus.SubscribeAll(journal.Recorder(stalledJournal{}, journal.WithAppendTimeout(5*time.Millisecond)))
	require.NotNil(t, sub)
	require.NoError(t, bus.Publish(context.Background(), event.NewAny("k", 1, "MsgA", nil)))
	require.NoError(t, bus.Close())

	letters := dead.List()
	require.Len(t, letters, 1)
	assert.Equal(t, 2, letters[0].Attempts)
	assert.Equal(t, "journal append: timed out after 5ms", letters[0].Error)
}

// stalledJournal blocks every append until its context ends.
type stalledJournal struct {
	journal.Journal
}

func (stalledJournal) Append(ctx context.Context, _ event.Event) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func TestConsumerInterests(t *testing.T) {
	c := journal.Consumer(journal.NewMemoryJournal(), "MsgA", "MsgB")
	assert.Equal(t, []string{"MsgA", "MsgB"}, c.Interests())
}
