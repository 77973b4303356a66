package event

import (
	"context"
	"sync"
	"time"

	seqerrors "github.com/randalmurphal/eventseq/pkg/eventseq/errors"
)

// DefaultDeadLetterSize bounds a DeadLetters queue when no size is given.
const DefaultDeadLetterSize = 10000

// DeadLetter is one delivery that still failed after its retries.
type DeadLetter struct {
	Event        Event     `json:"-"`
	Key          Key       `json:"key"`
	Type         string    `json:"type"`
	Subscription string    `json:"subscription"`
	Error        string    `json:"error"`
	Attempts     int       `json:"attempts"`
	FailedAt     time.Time `json:"failed_at"`
}

// DeadLetters keeps failed deliveries in arrival order so they can be
// inspected or redelivered. When full, the oldest entry is dropped.
// It is safe for concurrent use.
type DeadLetters struct {
	mu      sync.Mutex
	letters []DeadLetter
	size    int
	dropped int
}

// NewDeadLetters creates a queue holding at most size letters.
// Size <= 0 uses DefaultDeadLetterSize.
func NewDeadLetters(size int) *DeadLetters {
	if size <= 0 {
		size = DefaultDeadLetterSize
	}
	return &DeadLetters{size: size}
}

// Record adds a failed delivery. Its signature matches BusConfig.OnError.
// The letter keeps the consumer's own error text; the attempt count the
// bus retry loop attached goes to Attempts.
func (d *DeadLetters) Record(evt Event, subscriptionID string, err error) {
	letter := DeadLetter{
		Event:        evt,
		Key:          KeyOf(evt),
		Type:         evt.Type(),
		Subscription: subscriptionID,
		FailedAt:     time.Now(),
	}
	letter.fail(err)

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.letters) >= d.size {
		d.letters = d.letters[1:]
		d.dropped++
	}
	d.letters = append(d.letters, letter)
}

// List returns a copy of the queued letters, oldest first.
func (d *DeadLetters) List() []DeadLetter {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DeadLetter(nil), d.letters...)
}

// Len returns the number of queued letters.
func (d *DeadLetters) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.letters)
}

// Dropped returns how many letters were discarded because the queue was full.
func (d *DeadLetters) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Redeliver hands every queued letter to handler, oldest first. Letters
// the handler accepts are removed; the rest stay queued in order. It
// returns the number redelivered and stops early if ctx is done.
func (d *DeadLetters) Redeliver(ctx context.Context, handler Handler) (int, error) {
	d.mu.Lock()
	pending := d.letters
	d.letters = nil
	d.mu.Unlock()

	var (
		kept      []DeadLetter
		delivered int
		ctxErr    error
	)
	for i, letter := range pending {
		if ctxErr = ctx.Err(); ctxErr != nil {
			kept = append(kept, pending[i:]...)
			break
		}
		if err := handler.Handle(ctx, letter.Event); err != nil {
			letter.fail(err)
			letter.Attempts++
			letter.FailedAt = time.Now()
			kept = append(kept, letter)
			continue
		}
		delivered++
	}

	d.mu.Lock()
	// Letters recorded while redelivering go after the ones kept back.
	d.letters = append(kept, d.letters...)
	if over := len(d.letters) - d.size; over > 0 {
		d.letters = d.letters[over:]
		d.dropped += over
	}
	d.mu.Unlock()

	return delivered, ctxErr
}

func (l *DeadLetter) fail(err error) {
	if err == nil {
		return
	}
	l.Error = seqerrors.Cause(err).Error()
	l.Attempts += seqerrors.Attempts(err)
}
