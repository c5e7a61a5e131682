package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher receives every completed composition
type Publisher interface {
	// Publish announces a finished composition
	Publish(ctx context.Context, result types.CompositeResult) error
}

// Channel delivers events to one destination
type Channel interface {
	// Send delivers a single event
	Send(ctx context.Context, event Event) error

	// Type returns the channel type
	Type() ChannelType

	// Close releases the channel's connection, if any
	Close() error
}

// FailureRecorder counts failed deliveries
type FailureRecorder interface {
	RecordNotificationFailure(channel string)
}

// ChannelType represents the type of notification channel
type ChannelType string

const (
	ChannelTypeLog     ChannelType = "log"
	ChannelTypeNATS    ChannelType = "nats"
	ChannelTypeRedis   ChannelType = "redis"
	ChannelTypeWebhook ChannelType = "webhook"
)

// EventType represents the type of notification event
type EventType string

const (
	EventTypeCompositionCompleted EventType = "composition_completed"
	EventTypeFragmentGenerated    EventType = "fragment_generated"
)

// Event is the envelope delivered to every channel
type Event struct {
	ID          uuid.UUID              `json:"id"`
	Type        EventType              `json:"type"`
	Subject     string                 `json:"subject"`
	RequestID   string                 `json:"requestId,omitempty"`
	Composition *types.CompositeResult `json:"composition,omitempty"`
	Fragment    *types.FragmentEvent   `json:"fragment,omitempty"`
	OccurredAt  time.Time              `json:"occurredAt"`
}

// Marshal encodes the event as JSON
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEvent decodes an event produced by Marshal
func ParseEvent(data []byte) (Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return event, err
}
