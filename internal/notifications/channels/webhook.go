package channels

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/NikhilSetiya/hello-world-aggregator/internal/notifications"
)

// WebhookHandler posts events as JSON to an HTTP endpoint
type WebhookHandler struct {
	logger     *zap.Logger
	httpClient *http.Client
	url        string
	headers    map[string]string
}

// WebhookPayload is the body posted for every event
type WebhookPayload struct {
	Text  string              `json:"text"`
	Event notifications.Event `json:"event"`
}

// NewWebhookHandler creates a new webhook notification handler
func NewWebhookHandler(logger *zap.Logger, url string, headers map[string]string) *WebhookHandler {
	return &WebhookHandler{
		logger: logger,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		url:     url,
		headers: headers,
	}
}

// Send posts the event to the webhook
func (h *WebhookHandler) Send(ctx context.Context, event notifications.Event) error {
	if h.url == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	payload, err := json.Marshal(WebhookPayload{Text: summarize(event), Event: event})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	h.logger.Debug("Sent webhook notification",
		zap.String("event_id", event.ID.String()),
		zap.String("webhook_url", maskWebhookURL(h.url)))

	return nil
}

// Type returns the channel type
func (h *WebhookHandler) Type() notifications.ChannelType {
	return notifications.ChannelTypeWebhook
}

// Close is a no-op
func (h *WebhookHandler) Close() error {
	return nil
}

// summarize renders a one-line description of the event
func summarize(event notifications.Event) string {
	switch {
	case event.Composition != nil:
		return fmt.Sprintf("Composed %q (%s, %dms)",
			event.Composition.Message, event.Composition.Source, event.Composition.GenerationTimeMillis)
	case event.Fragment != nil:
		return fmt.Sprintf("Generated %s fragment %q with %s",
			event.Fragment.Family, event.Fragment.Text, event.Fragment.Strategy)
	default:
		return string(event.Type)
	}
}

// maskWebhookURL masks the webhook URL for logging
func maskWebhookURL(url string) string {
	if len(url) < 20 {
		return "***"
	}
	return url[:20] + "***"
}
