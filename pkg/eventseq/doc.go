/*
Package eventseq restores per-aggregate order to an unordered event stream.

# Overview

Events arrive from an at-least-once transport out of order, duplicated or
with gaps. For every aggregate, eventseq releases them in strictly
increasing version order, exactly once, and keeps counters that show how
many duplicates and out-of-order ("future") events it has seen.

The package is built from four parts:

  - bloom: a sized Bloom filter used as a cheap "definitely not buffered" check
  - resequencer: the per-aggregate state machine (Duplicate, Next, Future,
    GapClosedWithMissing) with its ordered future buffer
  - Router: one goroutine and mailbox per aggregate, created on first sight
  - event: the event model, type interests and the outbound bus

# Basic Usage

	router := eventseq.NewRouter(eventseq.RouterConfig{})

	sub := router.Subscribe(event.NewConsumer(func(ctx context.Context, evt event.Event) error {
	    fmt.Println(evt.AggregateID(), evt.Version(), evt.Type())
	    return nil
	}, "order.placed", "order.shipped"))

	for evt := range incoming {
	    if err := router.Route(ctx, evt); err != nil {
	        return err
	    }
	}

	router.Close()
	<-sub.Done()

# Ordering

For a fixed aggregate, accepted events come out in version order no
matter how they arrived, provided every version eventually arrives. There
is no ordering between aggregates; each runs on its own goroutine.

A consumer's interest only decides what it is sent. Every event takes part
in the book-keeping of its aggregate, so an event nobody subscribes to
still closes the gap in front of the ones they do.

# Diagnostics

QueryInternals reports an aggregate's MaxAccepted, MinPending (or
resequencer.Unset), Duplicates and buffer size. Querying a key that was
never routed returns resequencer.EmptyState without creating it.

# Observability

RouterConfig accepts a slog.Logger, an observability.MetricsRecorder and
an observability.SpanManager:

	router := eventseq.NewRouter(eventseq.RouterConfig{
	    Logger:  slog.Default(),
	    Metrics: observability.NewMetricsRecorder(),
	    Spans:   observability.NewSpanManager(),
	})

Each routed event gets an "eventseq.route" span annotated with its
classification. Metrics cover classifications, accepted events, new shards,
consistency violations, evictions and buffered futures.

# Bounding the Buffer

An aggregate whose producer permanently skips a version buffers every later
event. Set RouterConfig.MaxPending to cap the buffer per aggregate; the
furthest-future events are evicted first and logged at warn level.
*/
package eventseq
