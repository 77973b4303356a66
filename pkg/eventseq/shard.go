package eventseq

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/eventseq/pkg/eventseq/event"
	"github.com/randalmurphal/eventseq/pkg/eventseq/observability"
	"github.com/randalmurphal/eventseq/pkg/eventseq/resequencer"
)

// message is one mailbox request: an insert when evt is set, a state
// query when reply is set.
type message struct {
	ctx   context.Context
	evt   event.Event
	reply chan<- resequencer.State
}

// shard owns one aggregate's resequencer. Only its goroutine touches reseq.
type shard struct {
	id      string
	reseq   *resequencer.Resequencer
	mailbox chan message
	logger  *slog.Logger

	gone chan struct{} // closed if the goroutine stopped on a fault
	err  error         // set before gone is closed
}

func newShard(id string, reseq *resequencer.Resequencer, mailboxSize int, logger *slog.Logger) *shard {
	return &shard{
		id:      id,
		reseq:   reseq,
		mailbox: make(chan message, mailboxSize),
		logger:  logger,
		gone:    make(chan struct{}),
	}
}

// send queues msg unless the shard has stopped or ctx is done.
func (s *shard) send(ctx context.Context, msg message) error {
	// A stopped shard may still have mailbox space; never queue into it.
	select {
	case <-s.gone:
		return s.failure()
	default:
	}

	select {
	case s.mailbox <- msg:
		return nil
	case <-s.gone:
		return s.failure()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *shard) failure() error {
	return s.err
}

// run processes the mailbox until it is closed.
func (s *shard) run(r *Router) {
	defer r.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			s.err = &ShardError{AggregateID: s.id, Cause: p}
			if s.logger != nil {
				s.logger.Error("shard stopped", slog.String("error", s.err.Error()))
			}
			close(s.gone)
		}
	}()

	for msg := range s.mailbox {
		if msg.reply != nil {
			msg.reply <- s.reseq.State()
			continue
		}
		r.process(msg.ctx, s, msg.evt)
	}
}

// process runs one event through the shard's resequencer and publishes
// what it releases. A panic ends the span and reports every accepted event
// not yet published before it stops the shard.
func (r *Router) process(ctx context.Context, s *shard, evt event.Event) {
	// The caller may cancel as soon as Route returns.
	ctx = context.WithoutCancel(ctx)
	ctx, span := r.cfg.Spans.StartRouteSpan(ctx, s.id, evt.Version())

	var unpublished []event.Event
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		fault := &ShardError{AggregateID: s.id, Cause: p}
		for _, lost := range unpublished {
			observability.LogDeliveryError(s.logger, s.id, lost.Version(), "bus", fault)
		}
		r.cfg.Spans.EndSpanWithError(span, fault)
		panic(p)
	}()

	before := s.reseq.State().Pending
	res, err := s.reseq.Insert(evt)
	unpublished = res.Accepted
	if err != nil && !errors.Is(err, resequencer.ErrConsistencyViolation) {
		observability.LogRouteError(s.logger, s.id, evt.Version(), err)
		r.cfg.Spans.EndSpanWithError(span, err)
		return
	}

	class := res.Classification.String()
	r.cfg.Metrics.RecordClassification(ctx, class)
	if err != nil {
		r.cfg.Metrics.RecordViolation(ctx)
	}
	r.cfg.Metrics.RecordPending(ctx, s.reseq.State().Pending-before)
	r.cfg.Metrics.RecordEviction(ctx, len(res.Evicted))
	r.cfg.Metrics.RecordAccepted(ctx, len(res.Accepted))
	r.cfg.Spans.AddSpanEvent(ctx, class,
		attribute.Int("accepted", len(res.Accepted)),
		attribute.Int("evicted", len(res.Evicted)),
	)

	for i, accepted := range res.Accepted {
		unpublished = res.Accepted[i:]
		if !r.cfg.Interest.Matches(accepted) {
			continue
		}
		if perr := r.bus.Publish(ctx, accepted); perr != nil {
			observability.LogDeliveryError(s.logger, s.id, accepted.Version(), "bus", perr)
		}
	}
	unpublished = nil

	r.cfg.Spans.EndSpanWithError(span, err)
}

func isShardGone(err error) bool {
	return errors.Is(err, ErrShardGone)
}
