package notifications

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/logging"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

// DefaultSubject is the subject composition events are published under
const DefaultSubject = "hello-world-events"

// Service fans events out to every registered channel
type Service struct {
	logger   *zap.Logger
	subject  string
	recorder FailureRecorder
	channels map[ChannelType]Channel
	mu       sync.RWMutex
}

// NewService creates a new notification service. recorder may be nil.
func NewService(logger *zap.Logger, subject string, recorder FailureRecorder) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if subject == "" {
		subject = DefaultSubject
	}
	return &Service{
		logger:   logger,
		subject:  subject,
		recorder: recorder,
		channels: make(map[ChannelType]Channel),
	}
}

// RegisterChannel registers a channel, replacing any channel of the same type
func (s *Service) RegisterChannel(channel Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[channel.Type()] = channel
}

// SupportedChannels returns the registered channel types in sorted order
func (s *Service) SupportedChannels() []ChannelType {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channelTypes := make([]ChannelType, 0, len(s.channels))
	for t := range s.channels {
		channelTypes = append(channelTypes, t)
	}
	sort.Slice(channelTypes, func(i, j int) bool { return channelTypes[i] < channelTypes[j] })
	return channelTypes
}

// Subject returns the subject events are published under
func (s *Service) Subject() string {
	return s.subject
}

// Publish announces a finished composition on every channel
func (s *Service) Publish(ctx context.Context, result types.CompositeResult) error {
	s.logger.Debug("Publishing composition event",
		zap.String("result_id", result.ID),
		zap.String("source", string(result.Source)))

	return s.dispatch(ctx, Event{
		ID:          uuid.New(),
		Type:        EventTypeCompositionCompleted,
		Subject:     s.subject,
		RequestID:   logging.GetRequestID(ctx),
		Composition: &result,
		OccurredAt:  time.Now().UTC(),
	})
}

// FragmentGenerated publishes a generated-fragment event. Delivery failures
// are logged and never reach the generator.
func (s *Service) FragmentGenerated(ctx context.Context, fragment types.FragmentEvent) {
	err := s.dispatch(ctx, Event{
		ID:         uuid.New(),
		Type:       EventTypeFragmentGenerated,
		Subject:    s.subject,
		RequestID:  logging.GetRequestID(ctx),
		Fragment:   &fragment,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("Fragment event not delivered",
			zap.String("family", fragment.Family),
			zap.Error(err))
	}
}

// Close closes every registered channel
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for t, channel := range s.channels {
		if err := channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t, err))
		}
	}
	return stderrors.Join(errs...)
}

func (s *Service) dispatch(ctx context.Context, event Event) error {
	s.mu.RLock()
	channels := make([]Channel, 0, len(s.channels))
	for _, channel := range s.channels {
		channels = append(channels, channel)
	}
	s.mu.RUnlock()

	var errs []error
	for _, channel := range channels {
		if err := channel.Send(ctx, event); err != nil {
			s.logger.Error("Failed to send notification",
				zap.String("channel_type", string(channel.Type())),
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID.String()),
				zap.Error(err))
			if s.recorder != nil {
				s.recorder.RecordNotificationFailure(string(channel.Type()))
			}
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to send to %d channels: %w", len(errs), stderrors.Join(errs...))
	}
	return nil
}
