package channels

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/NikhilSetiya/hello-world-aggregator/internal/notifications"
)

// natsConn is the subset of *nats.Conn the handler needs
type natsConn interface {
	Publish(subj string, data []byte) error
	Close()
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL
	URL string

	// Name identifies the connection on the server
	Name string

	// ConnectTimeout is the connection timeout
	ConnectTimeout time.Duration
}

// NATSHandler publishes events on a NATS subject. Composition events go to
// the event subject, fragment events to "<subject>.fragments".
type NATSHandler struct {
	logger *zap.Logger
	conn   natsConn
}

// NewNATSHandler connects to NATS and returns a handler
func NewNATSHandler(logger *zap.Logger, cfg NATSConfig) (*NATSHandler, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Name == "" {
		cfg.Name = "hello-world-aggregator"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.ConnectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return newNATSHandler(logger, conn), nil
}

func newNATSHandler(logger *zap.Logger, conn natsConn) *NATSHandler {
	return &NATSHandler{logger: logger, conn: conn}
}

// Send publishes the event
func (h *NATSHandler) Send(ctx context.Context, event notifications.Event) error {
	data, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := subjectFor(event)
	if err := h.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	h.logger.Debug("Published NATS notification",
		zap.String("subject", subject),
		zap.String("event_id", event.ID.String()))
	return nil
}

// Type returns the channel type
func (h *NATSHandler) Type() notifications.ChannelType {
	return notifications.ChannelTypeNATS
}

// Close closes the NATS connection
func (h *NATSHandler) Close() error {
	h.conn.Close()
	return nil
}

func subjectFor(event notifications.Event) string {
	if event.Type == notifications.EventTypeFragmentGenerated {
		return event.Subject + ".fragments"
	}
	return event.Subject
}
