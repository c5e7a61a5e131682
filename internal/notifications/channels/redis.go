package channels

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/NikhilSetiya/hello-world-aggregator/internal/notifications"
)

// redisPublisher is satisfied by *cache.RedisClient
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// RedisHandler publishes events on a Redis pub/sub channel named after the
// event subject
type RedisHandler struct {
	logger *zap.Logger
	client redisPublisher
}

// NewRedisHandler creates a Redis pub/sub notification handler
func NewRedisHandler(logger *zap.Logger, client redisPublisher) *RedisHandler {
	return &RedisHandler{logger: logger, client: client}
}

// Send publishes the event
func (h *RedisHandler) Send(ctx context.Context, event notifications.Event) error {
	data, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := subjectFor(event)
	if err := h.client.Publish(ctx, channel, data); err != nil {
		return err
	}

	h.logger.Debug("Published Redis notification",
		zap.String("channel", channel),
		zap.String("event_id", event.ID.String()))
	return nil
}

// Type returns the channel type
func (h *RedisHandler) Type() notifications.ChannelType {
	return notifications.ChannelTypeRedis
}

// Close is a no-op; the Redis client is owned by the caller
func (h *RedisHandler) Close() error {
	return nil
}
