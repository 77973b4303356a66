// Package event provides the event model and delivery primitives for eventseq.
//
// # Overview
//
//   - Event: the versioned fact being resequenced (aggregate id, version, type)
//   - Record[T]: the standard immutable Event with a typed payload
//   - Key and Sortable: identity and ordering by (aggregate id, version)
//   - Interest: the set of types a consumer wants delivered
//   - Bus: pub/sub fan-out of accepted events with completion signalling
//
// # Events
//
// Any type with AggregateID, Version and Type satisfies Event. Use Record[T]
// when you don't already have one:
//
//	evt := event.New("order-42", 3, "order.shipped", ShippedPayload{...})
//
// Two events are the same event when aggregate id and version match
// (see Equal). The type tag plays no part in identity or ordering.
//
// # Interest
//
// Consumers declare the types they care about by implementing Consumer:
//
//	c := event.NewConsumer(func(ctx context.Context, evt event.Event) error {
//	    return project(evt)
//	}, "order.placed", "order.shipped")
//
//	interest := event.InterestOf(c)
//
// Interest is applied on delivery only. Events of other types are still
// ordered and counted for their aggregate, so an uninteresting event can
// close a gap and release interesting ones behind it.
//
// # Bus
//
// LocalBus delivers each subscription's events on its own goroutine in
// publish order:
//
//	bus := event.NewBus(event.DefaultBusConfig)
//	sub := bus.Subscribe(event.NewInterest("order.placed"), handler)
//	...
//	bus.Close()
//	<-sub.Done() // every queued event has been handled
//
// Close never discards queued events. Unsubscribe does.
package event
