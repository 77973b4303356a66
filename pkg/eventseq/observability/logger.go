// Package observability provides structured logging, metrics, and
// distributed tracing for eventseq.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
// Every log helper accepts a nil logger.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds aggregate context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "order-42")
//	enriched.Info("shard ready") // includes aggregate_id
func EnrichLogger(logger *slog.Logger, aggregateID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("aggregate_id", aggregateID))
}

// LogShardCreated logs the first sighting of an aggregate.
func LogShardCreated(logger *slog.Logger, aggregateID string, initialCapacity int) {
	if logger == nil {
		return
	}
	logger.Debug("shard created",
		slog.String("aggregate_id", aggregateID),
		slog.Int("initial_capacity", initialCapacity),
	)
}

// LogDuplicate logs an event at or below the accepted version.
func LogDuplicate(logger *slog.Logger, aggregateID string, version, maxAccepted, duplicates uint64) {
	if logger == nil {
		return
	}
	logger.Debug("duplicate event",
		slog.String("aggregate_id", aggregateID),
		slog.Uint64("version", version),
		slog.Uint64("max_accepted", maxAccepted),
		slog.Uint64("duplicates", duplicates),
	)
}

// LogFuture logs an event buffered behind a gap.
func LogFuture(logger *slog.Logger, aggregateID string, version, maxAccepted uint64, pending int) {
	if logger == nil {
		return
	}
	logger.Debug("future event buffered",
		slog.String("aggregate_id", aggregateID),
		slog.Uint64("version", version),
		slog.Uint64("max_accepted", maxAccepted),
		slog.Int("pending", pending),
	)
}

// LogDrain logs a gap closing and the run of buffered events it released.
func LogDrain(logger *slog.Logger, aggregateID string, from, to uint64, remaining int) {
	if logger == nil {
		return
	}
	logger.Debug("gap closed",
		slog.String("aggregate_id", aggregateID),
		slog.Uint64("from_version", from),
		slog.Uint64("to_version", to),
		slog.Int("remaining", remaining),
	)
}

// LogConsistencyViolation logs a broken buffer invariant. This is always a
// defect, so it is logged at error level.
func LogConsistencyViolation(logger *slog.Logger, aggregateID string, version, expected, actual uint64) {
	if logger == nil {
		return
	}
	logger.Error("consistency violation",
		slog.String("aggregate_id", aggregateID),
		slog.Uint64("version", version),
		slog.Uint64("expected_min_pending", expected),
		slog.Uint64("actual_min_pending", actual),
	)
}

// LogEviction logs a future event dropped to respect the pending bound.
func LogEviction(logger *slog.Logger, aggregateID string, version uint64, maxPending int) {
	if logger == nil {
		return
	}
	logger.Warn("future event evicted",
		slog.String("aggregate_id", aggregateID),
		slog.Uint64("version", version),
		slog.Int("max_pending", maxPending),
	)
}

// LogFilterReset logs the membership filter being rebuilt after saturation.
func LogFilterReset(logger *slog.Logger, aggregateID string, added, capacity, pending int) {
	if logger == nil {
		return
	}
	logger.Debug("membership filter rebuilt",
		slog.String("aggregate_id", aggregateID),
		slog.Int("added", added),
		slog.Int("capacity", capacity),
		slog.Int("pending", pending),
	)
}

// LogDeliveryError logs a consumer that failed to handle an accepted event.
func LogDeliveryError(logger *slog.Logger, aggregateID string, version uint64, subscriberID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("delivery failed",
		slog.String("aggregate_id", aggregateID),
		slog.Uint64("version", version),
		slog.String("subscriber", subscriberID),
		slog.String("error", err.Error()),
	)
}

// LogRouteError logs an event the router could not hand to its shard.
func LogRouteError(logger *slog.Logger, aggregateID string, version uint64, err error) {
	if logger == nil {
		return
	}
	logger.Error("route failed",
		slog.String("aggregate_id", aggregateID),
		slog.Uint64("version", version),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
