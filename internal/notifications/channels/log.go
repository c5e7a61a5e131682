package channels

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/NikhilSetiya/hello-world-aggregator/internal/notifications"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LogHandler writes events to the service log
type LogHandler struct {
	logger *zap.Logger
}

// NewLogHandler creates a log-only notification handler
func NewLogHandler(logger *zap.Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

// Send logs the event
func (h *LogHandler) Send(ctx context.Context, event notifications.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", string(event.Type)),
		zap.String("subject", event.Subject),
	}
	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}
	if c := event.Composition; c != nil {
		fields = append(fields,
			zap.String("result_id", c.ID),
			zap.String("message", c.Message),
			zap.String("source", string(c.Source)),
			zap.Int64("generation_time_ms", c.GenerationTimeMillis))
	}
	if f := event.Fragment; f != nil {
		fields = append(fields,
			zap.String("family", f.Family),
			zap.String("text", f.Text),
			zap.String("strategy", f.Strategy))
	}

	h.logger.Info("Notification event", fields...)
	return nil
}

// Type returns the channel type
func (h *LogHandler) Type() notifications.ChannelType {
	return notifications.ChannelTypeLog
}

// Close is a no-op
func (h *LogHandler) Close() error {
	return nil
}
