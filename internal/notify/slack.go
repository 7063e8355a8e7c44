package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SlackMessage is the webhook payload: fallback text plus block layout.
type SlackMessage struct {
	Text   string       `json:"text"`
	Blocks []SlackBlock `json:"blocks,omitempty"`
}

// SlackBlock is one Block Kit element.
type SlackBlock struct {
	Type string          `json:"type"`
	Text *SlackBlockText `json:"text,omitempty"`
}

// SlackBlockText is the text object inside a block.
type SlackBlockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// WebhookSender posts messages to a Slack incoming webhook.
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhookSender creates a Slack webhook sender.
func NewWebhookSender(url string) *WebhookSender {
	return &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one message. Delivery retries are the dispatch cycle's job,
// not this sender's.
func (s *WebhookSender) Send(ctx context.Context, msg *SlackMessage) error {
	if s.url == "" {
		return fmt.Errorf("slack webhook not configured")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}
