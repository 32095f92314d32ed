package sender

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/alertgate/gateway/internal/models"
)

// WebhookResult describes the outcome of one webhook delivery attempt.
type WebhookResult struct {
	Sent       bool
	StatusCode int
	Err        error
}

// WebhookSender POSTs a rendered payload to an arbitrary URL as plain
// JSON. There is no retry policy: a single non-2xx response or
// transport error is a failed send, matching the distilled spec's
// "no built-in retries" design.
type WebhookSender struct {
	pool *ClientPool
}

// NewWebhookSender returns a WebhookSender backed by a shared client pool.
func NewWebhookSender(pool *ClientPool) *WebhookSender {
	return &WebhookSender{pool: pool}
}

// Send posts body (already rendered by the template store) to ch.URL.
func (s *WebhookSender) Send(ctx context.Context, ch models.Channel, body string) WebhookResult {
	client, err := s.pool.Get(resolveProxy(ch))
	if err != nil {
		return WebhookResult{Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, channelTimeout(ch))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.URL, bytes.NewReader([]byte(body)))
	if err != nil {
		return WebhookResult{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return WebhookResult{Err: fmt.Errorf("webhook request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return WebhookResult{StatusCode: resp.StatusCode, Err: fmt.Errorf("webhook returned status %d", resp.StatusCode)}
	}
	return WebhookResult{Sent: true, StatusCode: resp.StatusCode}
}
