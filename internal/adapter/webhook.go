package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// webhookRequest is the JSON body posted to the channel's delivery endpoint.
type webhookRequest struct {
	Destination string `json:"destination"`
	Text        string `json:"text"`
	Format      string `json:"format,omitempty"`
}

// WebhookSender delivers messages by POSTing to a per-channel HTTP
// endpoint (a channel gateway in front of the real Telegram/WhatsApp/
// email transport). The URL is injected from config so tests can point
// at a local mock.
type WebhookSender struct {
	url        string
	httpClient *http.Client
}

func NewWebhookSender(url string, timeout time.Duration) *WebhookSender {
	return &WebhookSender{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts the message and treats any non-2xx response as a delivery
// failure subject to retry.
func (s *WebhookSender) Send(ctx context.Context, destination, text, formatHint string) error {
	body, err := json.Marshal(webhookRequest{
		Destination: destination,
		Text:        text,
		Format:      formatHint,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected gateway status: %d", resp.StatusCode)
	}
	return nil
}

// compile-time check that WebhookSender implements Sender
var _ Sender = (*WebhookSender)(nil)
