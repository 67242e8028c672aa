package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/waitlist-service/internal/events"
)

// EventRelay forwards every engine event to a Redis channel so consumers
// outside the process (dashboards, pagers) can follow the queue. Publish
// failures are logged and dropped; the relay never blocks or retries.
type EventRelay struct {
	dispatcher events.Dispatcher
	client     *redis.Client
	logger     *zap.Logger
	channel    string
}

// NewEventRelay creates the relay.
func NewEventRelay(dispatcher events.Dispatcher, client *redis.Client, logger *zap.Logger, channel string) *EventRelay {
	return &EventRelay{
		dispatcher: dispatcher,
		client:     client,
		logger:     logger,
		channel:    channel,
	}
}

// RegisterHandlers subscribes the relay to all engine events.
func (r *EventRelay) RegisterHandlers() {
	if r.dispatcher == nil {
		return
	}
	r.dispatcher.SubscribeAll(r.relay)
}

func (r *EventRelay) relay(ctx context.Context, event events.Event) error {
	r.logger.Debug("relaying event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))

	if r.client == nil {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("marshal event failed", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}
	if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
		r.logger.Warn("redis publish failed",
			zap.String("channel", r.channel),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
	return nil
}
