package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is a versioned fact about one aggregate. Events are immutable once
// created; the resequencer only classifies and relays them.
type Event interface {
	// AggregateID is the key under which versions are ordered.
	AggregateID() string

	// Version is monotonic per aggregate and starts at 1.
	Version() uint64

	// Type is a stable type discriminator (e.g. "order.placed").
	Type() string
}

// Payloader is implemented by events that carry a serialisable payload.
type Payloader interface {
	Data() any
	DataBytes() []byte
}

// Metadata contains the identifying fields of a Record.
type Metadata struct {
	EventID       string    `json:"id"`
	AggregateID   string    `json:"aggregate_id"`
	Version       uint64    `json:"version"`
	EventType     string    `json:"type"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Record is the standard Event implementation.
// T is the payload type for type-safe access.
type Record[T any] struct {
	Meta    Metadata `json:"metadata"`
	Payload T        `json:"payload"`

	// Cached serialization (computed lazily)
	cachedBytes []byte
}

// Compile-time interface checks.
var (
	_ Event     = (*Record[any])(nil)
	_ Payloader = (*Record[any])(nil)
)

// AggregateID returns the aggregate key.
func (e *Record[T]) AggregateID() string {
	return e.Meta.AggregateID
}

// Version returns the per-aggregate version.
func (e *Record[T]) Version() uint64 {
	return e.Meta.Version
}

// Type returns the event type tag.
func (e *Record[T]) Type() string {
	return e.Meta.EventType
}

// ID returns the unique event identifier.
func (e *Record[T]) ID() string {
	return e.Meta.EventID
}

// Timestamp returns when the event was created.
func (e *Record[T]) Timestamp() time.Time {
	return e.Meta.Timestamp
}

// Data returns the event payload.
func (e *Record[T]) Data() any {
	return e.Payload
}

// TypedData returns the strongly-typed payload.
func (e *Record[T]) TypedData() T {
	return e.Payload
}

// DataBytes returns the serialized payload.
// The result is cached for efficiency.
func (e *Record[T]) DataBytes() []byte {
	if e.cachedBytes == nil {
		// Best effort - errors are ignored for interface compliance
		e.cachedBytes, _ = json.Marshal(e.Payload)
	}
	return e.cachedBytes
}

// MarshalJSON implements json.Marshaler.
func (e *Record[T]) MarshalJSON() ([]byte, error) {
	type alias Record[T]
	return json.Marshal((*alias)(e))
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Record[T]) UnmarshalJSON(data []byte) error {
	type alias Record[T]
	if err := json.Unmarshal(data, (*alias)(e)); err != nil {
		return err
	}
	e.cachedBytes = nil
	return nil
}

// Option configures event creation.
type Option func(*eventConfig)

type eventConfig struct {
	id            string
	correlationID string
	timestamp     time.Time
}

// WithEventID sets a specific event ID (default: auto-generated UUID).
func WithEventID(id string) Option {
	return func(cfg *eventConfig) {
		cfg.id = id
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func WithCorrelationID(id string) Option {
	return func(cfg *eventConfig) {
		cfg.correlationID = id
	}
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) Option {
	return func(cfg *eventConfig) {
		cfg.timestamp = t
	}
}

// New creates an event for an aggregate at a version.
func New[T any](aggregateID string, version uint64, eventType string, payload T, opts ...Option) *Record[T] {
	cfg := &eventConfig{
		id:        uuid.New().String(),
		timestamp: time.Now(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &Record[T]{
		Meta: Metadata{
			EventID:       cfg.id,
			AggregateID:   aggregateID,
			Version:       version,
			EventType:     eventType,
			CorrelationID: cfg.correlationID,
			Timestamp:     cfg.timestamp,
		},
		Payload: payload,
	}
}

// NewAny creates an event with an untyped (any) payload.
func NewAny(aggregateID string, version uint64, eventType string, payload any, opts ...Option) *Record[any] {
	return New(aggregateID, version, eventType, payload, opts...)
}

// Equal reports whether two events share aggregate and version. The type
// tag is not part of identity: an aggregate never publishes two different
// events at the same version.
func Equal(a, b Event) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.AggregateID() == b.AggregateID() && a.Version() == b.Version()
}

// Handler processes an accepted event.
type Handler interface {
	Handle(ctx context.Context, evt Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// Consumer is a Handler that declares which event types it wants.
type Consumer interface {
	Handler

	// Interests returns the type tags this consumer wants delivered.
	Interests() []string
}

// NewConsumer wraps fn as a Consumer interested in the given types.
func NewConsumer(fn HandlerFunc, types ...string) Consumer {
	return &funcConsumer{fn: fn, types: types}
}

type funcConsumer struct {
	fn    HandlerFunc
	types []string
}

func (c *funcConsumer) Handle(ctx context.Context, evt Event) error {
	return c.fn(ctx, evt)
}

func (c *funcConsumer) Interests() []string {
	return c.types
}

// MiddlewareFunc wraps handlers to add cross-cutting concerns.
type MiddlewareFunc func(next Handler) Handler

// ChainMiddleware applies middleware in order, with first middleware outermost.
func ChainMiddleware(handler Handler, middleware ...MiddlewareFunc) Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}
