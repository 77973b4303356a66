package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	seqerrors "github.com/randalmurphal/eventseq/pkg/eventseq/errors"
)

// Bus provides pub/sub distribution of accepted events with fan-out support.
type Bus interface {
	// Publish sends an event to every subscription whose interest matches.
	Publish(ctx context.Context, evt Event) error

	// Subscribe creates a subscription for the types in interest.
	Subscribe(interest Interest, handler Handler) Subscription

	// SubscribeAll subscribes to all events.
	SubscribeAll(handler Handler) Subscription

	// Close delivers whatever is still queued, then completes every subscription.
	Close() error
}

// Subscription represents an active subscription.
type Subscription interface {
	// ID identifies the subscription in callbacks.
	ID() string

	// Interest returns the types delivered to this subscription.
	Interest() Interest

	// Unsubscribe removes the subscription. Queued events are discarded.
	Unsubscribe()

	// Pause temporarily stops delivery. Events published while paused are skipped.
	Pause()

	// Resume continues delivery after pause.
	Resume()

	// IsPaused returns true if the subscription is paused.
	IsPaused() bool

	// Done is closed once no further events will be delivered.
	Done() <-chan struct{}
}

// BusConfig configures bus behavior.
type BusConfig struct {
	// BufferSize is the channel buffer size per subscription.
	// Default: 256
	BufferSize int

	// MaxSubscribers limits total subscriptions.
	// Default: 0 (unlimited)
	MaxSubscribers int

	// NonBlocking makes Publish non-blocking (drops events if buffer full).
	// Default: false (blocking), which preserves every accepted event.
	NonBlocking bool

	// Retry controls redelivery when a handler fails.
	// Default: errors.NoRetry
	Retry seqerrors.RetryConfig

	// OnDrop is called when an event is dropped (non-blocking mode).
	OnDrop func(evt Event, subscriberID string)

	// OnError is called when a handler still fails after retries.
	OnError func(evt Event, subscriberID string, err error)
}

// DefaultBusConfig provides reasonable defaults.
var DefaultBusConfig = BusConfig{
	BufferSize: 256,
	Retry:      seqerrors.NoRetry,
}

// LocalBus is an in-memory event bus implementation.
// Each subscription owns one goroutine, so delivery to a subscription is FIFO.
type LocalBus struct {
	config BusConfig

	mu            sync.RWMutex
	subscriptions map[string]*subscription
	byType        map[string]map[string]*subscription // event type -> subscription ID -> subscription
	wildcards     map[string]*subscription            // subscriptions for all events

	// publishMu is held shared by Publish and exclusively by Close so no
	// send races with shutdown.
	publishMu sync.RWMutex

	nextID  atomic.Int64
	closed  atomic.Bool
	closeCh chan struct{}
}

// Compile-time interface check.
var _ Bus = (*LocalBus)(nil)

// NewBus creates a new local event bus.
func NewBus(config BusConfig) *LocalBus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBusConfig.BufferSize
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry = DefaultBusConfig.Retry
	}

	return &LocalBus{
		config:        config,
		subscriptions: make(map[string]*subscription),
		byType:        make(map[string]map[string]*subscription),
		wildcards:     make(map[string]*subscription),
		closeCh:       make(chan struct{}),
	}
}

// subscription is an internal subscription implementation.
type subscription struct {
	id       string
	interest Interest
	handler  Handler
	events   chan Event
	paused   atomic.Bool
	dropped  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	bus      *LocalBus
}

// Publish sends an event to all matching subscribers.
func (b *LocalBus) Publish(ctx context.Context, evt Event) error {
	b.publishMu.RLock()
	defer b.publishMu.RUnlock()

	if b.closed.Load() {
		return &EventError{
			Event:     evt,
			Message:   "bus is closed",
			Timestamp: time.Now(),
		}
	}

	b.mu.RLock()
	subs := b.getMatchingSubscriptions(evt.Type())
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.paused.Load() {
			continue
		}

		if b.config.NonBlocking {
			select {
			case sub.events <- evt:
			default:
				if b.config.OnDrop != nil {
					b.config.OnDrop(evt, sub.id)
				}
			}
			continue
		}

		select {
		case sub.events <- evt:
		case <-sub.stop:
			// unsubscribed while we were waiting
		case <-ctx.Done():
			return ctx.Err()
		case <-b.closeCh:
			return &EventError{
				Event:     evt,
				Message:   "bus closed during publish",
				Timestamp: time.Now(),
			}
		}
	}

	return nil
}

// Subscribe creates a subscription for the types in interest.
// Returns nil if the bus is closed or the subscriber limit is reached.
func (b *LocalBus) Subscribe(interest Interest, handler Handler) Subscription {
	sub := b.subscribe(interest, handler)
	if sub == nil {
		return nil
	}
	return sub
}

// SubscribeAll subscribes to all events.
func (b *LocalBus) SubscribeAll(handler Handler) Subscription {
	return b.Subscribe(AllTypes(), handler)
}

func (b *LocalBus) subscribe(interest Interest, handler Handler) *subscription {
	if b.closed.Load() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.config.MaxSubscribers > 0 && len(b.subscriptions) >= b.config.MaxSubscribers {
		return nil
	}

	id := b.nextID.Add(1)
	sub := &subscription{
		id:       fmt.Sprintf("sub-%d", id),
		interest: interest,
		handler:  handler,
		events:   make(chan Event, b.config.BufferSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		bus:      b,
	}

	b.subscriptions[sub.id] = sub

	if interest.MatchesAll() {
		b.wildcards[sub.id] = sub
	} else {
		for _, t := range interest.Types() {
			if b.byType[t] == nil {
				b.byType[t] = make(map[string]*subscription)
			}
			b.byType[t][sub.id] = sub
		}
	}

	go sub.process()

	return sub
}

// getMatchingSubscriptions returns all subscriptions matching an event type.
func (b *LocalBus) getMatchingSubscriptions(eventType string) []*subscription {
	subs := make([]*subscription, 0, len(b.byType[eventType])+len(b.wildcards))

	for _, sub := range b.byType[eventType] {
		subs = append(subs, sub)
	}
	for _, sub := range b.wildcards {
		subs = append(subs, sub)
	}

	return subs
}

// Len returns the number of live subscriptions.
func (b *LocalBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}

// Close shuts down the bus. Events already queued are delivered before each
// subscription's Done channel closes; Close returns once all are done.
func (b *LocalBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil // Already closed
	}

	close(b.closeCh)

	// Wait out in-flight publishers.
	b.publishMu.Lock()
	b.publishMu.Unlock() //nolint:staticcheck // barrier only

	b.mu.Lock()
	subs := make([]*subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.finish()
	}
	for _, sub := range subs {
		<-sub.done
	}

	return nil
}

// process handles events for a subscription.
func (s *subscription) process() {
	defer close(s.done)

	for {
		select {
		case evt := <-s.events:
			s.deliver(evt)

		case <-s.stop:
			for {
				select {
				case evt := <-s.events:
					s.deliver(evt)
				default:
					return
				}
			}
		}
	}
}

func (s *subscription) deliver(evt Event) {
	if s.dropped.Load() || s.paused.Load() {
		return
	}

	err := seqerrors.Do(context.Background(), s.bus.config.Retry, func(ctx context.Context) error {
		return s.handler.Handle(ctx, evt)
	})
	if err != nil && s.bus.config.OnError != nil {
		s.bus.config.OnError(evt, s.id, err)
	}
}

func (s *subscription) finish() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// ID returns the subscription identifier.
func (s *subscription) ID() string {
	return s.id
}

// Interest returns the types delivered to this subscription.
func (s *subscription) Interest() Interest {
	return s.interest
}

// Unsubscribe removes the subscription.
func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subscriptions, s.id)
	delete(s.bus.wildcards, s.id)
	for _, t := range s.interest.Types() {
		if typeSubs, ok := s.bus.byType[t]; ok {
			delete(typeSubs, s.id)
		}
	}
	s.bus.mu.Unlock()

	s.dropped.Store(true)
	s.finish()
}

// Pause temporarily stops delivery.
func (s *subscription) Pause() {
	s.paused.Store(true)
}

// Resume continues delivery after pause.
func (s *subscription) Resume() {
	s.paused.Store(false)
}

// IsPaused returns true if the subscription is paused.
func (s *subscription) IsPaused() bool {
	return s.paused.Load()
}

// Done is closed once the subscription has delivered its last event.
func (s *subscription) Done() <-chan struct{} {
	return s.done
}
