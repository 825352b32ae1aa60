package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventChannel is the Redis pub/sub channel lifecycle events are
// published on.
const EventChannel = "mnemo.lifecycle.events"

type envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// RedisSink publishes events on a Redis pub/sub channel. Publish
// failures are logged and swallowed; event delivery is best-effort.
type RedisSink struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSink creates a Sink that publishes to Redis.
func NewRedisSink(client *redis.Client, logger *zap.Logger) *RedisSink {
	return &RedisSink{
		client: client,
		logger: logger.Named("events"),
	}
}

var _ Sink = (*RedisSink)(nil)

func (s *RedisSink) Emit(ctx context.Context, event string, payload interface{}) {
	body, err := json.Marshal(envelope{Event: event, Payload: payload})
	if err != nil {
		s.logger.Warn("Failed to encode lifecycle event",
			zap.String("event", event),
			zap.Error(err))
		return
	}

	if err := s.client.Publish(ctx, EventChannel, body).Err(); err != nil {
		s.logger.Warn("Failed to publish lifecycle event",
			zap.String("event", event),
			zap.Error(err))
	}
}
