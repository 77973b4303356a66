package eventseq

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/eventseq/pkg/eventseq/event"
	"github.com/randalmurphal/eventseq/pkg/eventseq/observability"
	"github.com/randalmurphal/eventseq/pkg/eventseq/resequencer"
)

// Router fans a single stream out to one resequencer per aggregate and
// publishes what they release on its bus.
type Router struct {
	cfg    RouterConfig
	logger *slog.Logger
	bus    *event.LocalBus

	mu     sync.RWMutex
	shards map[string]*shard

	// sendMu is held shared while a request is handed to a shard and
	// exclusively by Close, so no mailbox is closed under a sender.
	sendMu sync.RWMutex
	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewRouter creates a router. Shards are created lazily by Route.
func NewRouter(cfg RouterConfig) *Router {
	cfg = cfg.withDefaults()

	r := &Router{
		cfg:    cfg,
		logger: cfg.Logger,
		shards: make(map[string]*shard),
	}

	busCfg := cfg.Bus
	onError := busCfg.OnError
	if onError == nil {
		onError = func(evt event.Event, subscriberID string, err error) {
			observability.LogDeliveryError(r.logger, evt.AggregateID(), evt.Version(), subscriberID, err)
		}
	}
	if dl := cfg.DeadLetters; dl != nil {
		busCfg.OnError = func(evt event.Event, subscriberID string, err error) {
			onError(evt, subscriberID, err)
			dl.Record(evt, subscriberID, err)
		}
	} else {
		busCfg.OnError = onError
	}
	r.bus = event.NewBus(busCfg)

	return r
}

// Route hands evt to the shard for its aggregate, creating the shard on
// first sight. It returns once the event is queued; ordering, counting and
// publishing happen on the shard's goroutine.
//
// Route blocks while the shard's mailbox is full, until ctx is done.
// Versions above resequencer.MaxVersion are rejected.
func (r *Router) Route(ctx context.Context, evt event.Event) error {
	if ctx == nil {
		return ErrNilContext
	}
	if evt == nil {
		return ErrNilEvent
	}

	if v := evt.Version(); v > resequencer.MaxVersion {
		return fmt.Errorf("route %s@%d: %w", evt.AggregateID(), v, resequencer.ErrVersionOutOfRange)
	}

	r.sendMu.RLock()
	defer r.sendMu.RUnlock()

	if r.closed.Load() {
		return ErrRouterClosed
	}

	s, err := r.shardFor(ctx, evt.AggregateID())
	if err != nil {
		observability.LogRouteError(r.logger, evt.AggregateID(), evt.Version(), err)
		return err
	}

	return s.send(ctx, message{ctx: ctx, evt: evt})
}

// shardFor returns the shard for aggregateID, starting one if needed.
// Concurrent first sightings of a key create exactly one shard.
func (r *Router) shardFor(ctx context.Context, aggregateID string) (*shard, error) {
	r.mu.RLock()
	s, ok := r.shards[aggregateID]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.shards[aggregateID]; ok {
		return s, nil
	}

	logger := observability.EnrichLogger(r.logger, aggregateID)
	reseq, err := resequencer.New(aggregateID, resequencer.Config{
		InitialCapacity:  r.cfg.InitialCapacity,
		ErrorRate:        r.cfg.ErrorRate,
		MaxPending:       r.cfg.MaxPending,
		Logger:           logger,
		PanicOnViolation: r.cfg.HaltOnViolation,
	})
	if err != nil {
		return nil, err
	}

	s = newShard(aggregateID, reseq, r.cfg.MailboxSize, logger)
	r.shards[aggregateID] = s

	r.wg.Add(1)
	go s.run(r)

	observability.LogShardCreated(r.logger, aggregateID, r.cfg.InitialCapacity)
	r.cfg.Metrics.RecordShardCreated(ctx)

	return s, nil
}

// lookup returns the shard for aggregateID without creating one.
func (r *Router) lookup(aggregateID string) *shard {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.shards[aggregateID]
}

// QueryInternals returns the book-keeping for aggregateID. The query is
// queued behind every event already routed for the key. A key that was
// never routed reports resequencer.EmptyState and is not created.
func (r *Router) QueryInternals(ctx context.Context, aggregateID string) (resequencer.State, error) {
	if ctx == nil {
		return resequencer.State{}, ErrNilContext
	}

	r.sendMu.RLock()
	defer r.sendMu.RUnlock()

	if r.closed.Load() {
		return resequencer.State{}, ErrRouterClosed
	}

	s := r.lookup(aggregateID)
	if s == nil {
		return resequencer.EmptyState(aggregateID), nil
	}

	reply := make(chan resequencer.State, 1)
	if err := s.send(ctx, message{ctx: ctx, reply: reply}); err != nil {
		return resequencer.State{}, err
	}

	select {
	case st := <-reply:
		return st, nil
	case <-s.gone:
		return resequencer.State{}, s.failure()
	case <-ctx.Done():
		return resequencer.State{}, ctx.Err()
	}
}

// States queries every known key and returns the results sorted by
// aggregate id. Keys whose shard stopped are skipped.
func (r *Router) States(ctx context.Context) ([]resequencer.State, error) {
	states := make([]resequencer.State, 0, r.Len())
	for _, id := range r.Keys() {
		st, err := r.QueryInternals(ctx, id)
		if err != nil {
			if isShardGone(err) {
				continue
			}
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}

// Subscribe delivers accepted events in the consumer's interest to it.
// Panics in the consumer are recovered and reported like errors.
// Returns nil once the router is closed.
func (r *Router) Subscribe(consumer event.Consumer) event.Subscription {
	return r.bus.Subscribe(event.InterestOf(consumer), event.ChainMiddleware(consumer, event.RecoveryMiddleware()))
}

// SubscribeAll delivers every accepted event to handler.
func (r *Router) SubscribeAll(handler event.Handler) event.Subscription {
	return r.bus.SubscribeAll(event.ChainMiddleware(handler, event.RecoveryMiddleware()))
}

// Keys returns the aggregate ids seen so far, sorted.
func (r *Router) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.shards))
	for id := range r.shards {
		keys = append(keys, id)
	}
	r.mu.RUnlock()

	slices.Sort(keys)
	return keys
}

// Len returns the number of aggregates seen so far.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shards)
}

// Close stops accepting events, lets every shard finish its mailbox and
// then closes the bus. When Close returns, every accepted event has been
// handed to its subscribers and each subscription's Done channel is closed.
func (r *Router) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	r.sendMu.Lock()
	r.mu.Lock()
	for _, s := range r.shards {
		close(s.mailbox)
	}
	r.mu.Unlock()
	r.sendMu.Unlock()

	r.wg.Wait()

	return r.bus.Close()
}
