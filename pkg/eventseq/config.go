package eventseq

import (
	"log/slog"

	"github.com/randalmurphal/eventseq/pkg/eventseq/config"
	seqerrors "github.com/randalmurphal/eventseq/pkg/eventseq/errors"
	"github.com/randalmurphal/eventseq/pkg/eventseq/event"
	"github.com/randalmurphal/eventseq/pkg/eventseq/observability"
	"github.com/randalmurphal/eventseq/pkg/eventseq/resequencer"
)

// DefaultMailboxSize is the per-key mailbox buffer when RouterConfig leaves it zero.
const DefaultMailboxSize = 256

// RouterConfig configures a Router.
type RouterConfig struct {
	// InitialCapacity sizes each key's membership filter.
	// Default: resequencer.DefaultInitialCapacity (10240)
	InitialCapacity int

	// ErrorRate is the membership filter false-positive rate.
	// Default: derived from InitialCapacity
	ErrorRate float64

	// MaxPending bounds each key's future buffer. Default: 0 (unbounded)
	MaxPending int

	// MailboxSize is the number of requests a key can queue before Route blocks.
	// Default: DefaultMailboxSize
	MailboxSize int

	// Interest limits which accepted events are published. Events outside it
	// are still ordered and counted. Default: zero Interest (all types)
	Interest event.Interest

	// Bus configures the outbound bus. OnError defaults to logging.
	Bus event.BusConfig

	// DeadLetters, when set, also receives every delivery that failed
	// after its retries.
	DeadLetters *event.DeadLetters

	// HaltOnViolation stops a key's shard on a consistency violation
	// instead of repairing and continuing.
	HaltOnViolation bool

	// Logger for routing and shard logs. Default: slog.Default()
	Logger *slog.Logger

	// Metrics recorder. Default: observability.NoopMetrics{}
	Metrics observability.MetricsRecorder

	// Spans manager. Default: observability.NoopSpanManager{}
	Spans observability.SpanManager
}

// withDefaults fills zero fields.
func (c RouterConfig) withDefaults() RouterConfig {
	if c.InitialCapacity == 0 {
		c.InitialCapacity = resequencer.DefaultInitialCapacity
	}
	if c.MailboxSize <= 0 {
		c.MailboxSize = DefaultMailboxSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Metrics == nil {
		c.Metrics = observability.NoopMetrics{}
	}
	if c.Spans == nil {
		c.Spans = observability.NoopSpanManager{}
	}
	return c
}

// ConfigFrom reads router settings from cfg. Recognised keys:
//
//	initial_capacity   int
//	error_rate         float
//	max_pending        int
//	mailbox_size       int
//	interests          list or comma-separated string
//	halt_on_violation  bool
//	dead_letters       int (queue size; unset means no queue)
//	bus:
//	  buffer_size      int
//	  non_blocking     bool
//	delivery:
//	  attempts         int
//	  backoff          duration
//	  max_backoff      duration
//	  backoff_factor   float
//	  jitter           float (0.0-1.0)
//
// Observability fields are left unset.
func ConfigFrom(cfg config.Config) RouterConfig {
	rc := RouterConfig{
		InitialCapacity: cfg.Int("initial_capacity", resequencer.DefaultInitialCapacity),
		ErrorRate:       cfg.Float("error_rate", 0),
		MaxPending:      cfg.Int("max_pending", 0),
		MailboxSize:     cfg.Int("mailbox_size", DefaultMailboxSize),
		HaltOnViolation: cfg.Bool("halt_on_violation", false),
	}

	if cfg.Has("dead_letters") {
		rc.DeadLetters = event.NewDeadLetters(cfg.Int("dead_letters", event.DefaultDeadLetterSize))
	}

	if cfg.Has("interests") {
		rc.Interest = event.NewInterest(cfg.StringSlice("interests", nil)...)
	}

	bus := cfg.Sub("bus")
	rc.Bus = event.BusConfig{
		BufferSize:  bus.Int("buffer_size", event.DefaultBusConfig.BufferSize),
		NonBlocking: bus.Bool("non_blocking", false),
		Retry:       seqerrors.NoRetry,
	}

	if delivery := cfg.Sub("delivery"); delivery.Has("attempts") {
		def := seqerrors.DefaultRetry
		rc.Bus.Retry = seqerrors.RetryConfig{
			MaxAttempts:    delivery.Int("attempts", 1),
			InitialBackoff: delivery.Duration("backoff", def.InitialBackoff),
			MaxBackoff:     delivery.Duration("max_backoff", def.MaxBackoff),
			BackoffFactor:  delivery.Float("backoff_factor", def.BackoffFactor),
			Jitter:         delivery.Float("jitter", def.Jitter),
		}
	}

	return rc
}
