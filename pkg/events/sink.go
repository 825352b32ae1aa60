// Package events carries lifecycle event emission. Emission is
// fire-and-forget: a sink may log or publish, but it never returns an
// error and never affects the result of the operation that emitted.
package events

import (
	"context"

	"go.uber.org/zap"
)

// Lifecycle event names.
const (
	EventMemoriesPruned     = "memories_pruned"
	EventMemoriesArchived   = "memories_archived"
	EventCapEnforced        = "cap_enforced"
	EventMemoryPinned       = "memory_pinned"
	EventMemoryUnpinned     = "memory_unpinned"
	EventMemoryDeleted      = "memory_deleted"
	EventLifecycleCompleted = "lifecycle_completed"
)

// Sink receives lifecycle events.
type Sink interface {
	Emit(ctx context.Context, event string, payload interface{})
}

// LogSink writes events to the structured log. It is the fallback sink
// when no event bus is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a Sink that logs events.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("events")}
}

var _ Sink = (*LogSink)(nil)

func (s *LogSink) Emit(ctx context.Context, event string, payload interface{}) {
	s.logger.Info("Lifecycle event",
		zap.String("event", event),
		zap.Any("payload", payload))
}
