package channels

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/NikhilSetiya/hello-world-aggregator/internal/notifications"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

func compositionEvent() notifications.Event {
	return notifications.Event{
		ID:      uuid.New(),
		Type:    notifications.EventTypeCompositionCompleted,
		Subject: "hello-world-events",
		Composition: &types.CompositeResult{
			ID:                   "result-1",
			Message:              "Hello World",
			Source:               types.SourceLive,
			GenerationTimeMillis: 12,
		},
		OccurredAt: time.Now().UTC(),
	}
}

func fragmentEvent() notifications.Event {
	return notifications.Event{
		ID:      uuid.New(),
		Type:    notifications.EventTypeFragmentGenerated,
		Subject: "hello-world-events",
		Fragment: &types.FragmentEvent{
			Family:   "hello",
			Text:     "Hola",
			Strategy: "STANDARD",
			Language: "es",
		},
	}
}

func TestWebhookHandler_Send(t *testing.T) {
	var received WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Token"))

		err := json.NewDecoder(r.Body).Decode(&received)
		require.NoError(t, err)

		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	handler := NewWebhookHandler(zaptest.NewLogger(t), server.URL, map[string]string{"X-Token": "secret"})
	event := compositionEvent()

	require.NoError(t, handler.Send(context.Background(), event))
	assert.Equal(t, `Composed "Hello World" (LIVE, 12ms)`, received.Text)
	assert.Equal(t, event.ID, received.Event.ID)
	require.NotNil(t, received.Event.Composition)
	assert.Equal(t, "result-1", received.Event.Composition.ID)
}

func TestWebhookHandler_Send_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	handler := NewWebhookHandler(zaptest.NewLogger(t), server.URL, nil)

	err := handler.Send(context.Background(), compositionEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookHandler_Send_MissingURL(t *testing.T) {
	handler := NewWebhookHandler(zaptest.NewLogger(t), "", nil)

	err := handler.Send(context.Background(), compositionEvent())
	assert.EqualError(t, err, "webhook URL not configured")
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, `Generated hello fragment "Hola" with STANDARD`, summarize(fragmentEvent()))
	assert.Equal(t, "composition_completed", summarize(notifications.Event{Type: notifications.EventTypeCompositionCompleted}))
}

func TestMaskWebhookURL(t *testing.T) {
	assert.Equal(t, "***", maskWebhookURL("http://short"))
	assert.Equal(t, "https://hooks.exampl***", maskWebhookURL("https://hooks.example.com/abc"))
}

func TestLogHandler_Send(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := NewLogHandler(zap.New(core))

	require.NoError(t, handler.Send(context.Background(), compositionEvent()))

	entries := logs.FilterMessage("Notification event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "result-1", fields["result_id"])
	assert.Equal(t, "Hello World", fields["message"])
	assert.Equal(t, "LIVE", fields["source"])
	assert.Equal(t, notifications.ChannelTypeLog, handler.Type())
}

type fakeNATSConn struct {
	mu        sync.Mutex
	published map[string][][]byte
	err       error
	closed    bool
}

func (c *fakeNATSConn) Publish(subj string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.published == nil {
		c.published = make(map[string][][]byte)
	}
	c.published[subj] = append(c.published[subj], data)
	return nil
}

func (c *fakeNATSConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func TestNATSHandler_Send(t *testing.T) {
	conn := &fakeNATSConn{}
	handler := newNATSHandler(zaptest.NewLogger(t), conn)
	ctx := context.Background()

	require.NoError(t, handler.Send(ctx, compositionEvent()))
	require.NoError(t, handler.Send(ctx, fragmentEvent()))

	require.Len(t, conn.published["hello-world-events"], 1)
	require.Len(t, conn.published["hello-world-events.fragments"], 1)

	event, err := notifications.ParseEvent(conn.published["hello-world-events"][0])
	require.NoError(t, err)
	assert.Equal(t, notifications.EventTypeCompositionCompleted, event.Type)
	assert.Equal(t, "Hello World", event.Composition.Message)

	require.NoError(t, handler.Close())
	assert.True(t, conn.closed)
}

func TestNATSHandler_Send_Error(t *testing.T) {
	conn := &fakeNATSConn{err: errors.New("nats: connection closed")}
	handler := newNATSHandler(zaptest.NewLogger(t), conn)

	err := handler.Send(context.Background(), compositionEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish to hello-world-events")
}

type fakeRedisPublisher struct {
	channel string
	message interface{}
}

func (p *fakeRedisPublisher) Publish(ctx context.Context, channel string, message interface{}) error {
	p.channel = channel
	p.message = message
	return nil
}

func TestRedisHandler_Send(t *testing.T) {
	publisher := &fakeRedisPublisher{}
	handler := NewRedisHandler(zaptest.NewLogger(t), publisher)

	require.NoError(t, handler.Send(context.Background(), compositionEvent()))
	assert.Equal(t, "hello-world-events", publisher.channel)

	data, ok := publisher.message.([]byte)
	require.True(t, ok)
	event, err := notifications.ParseEvent(data)
	require.NoError(t, err)
	assert.Equal(t, "result-1", event.Composition.ID)
}
