package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// WebhookChannel POSTs the payload as JSON to the recipient URL, falling
// back to a configured default URL when the recipient is empty.
type WebhookChannel struct {
	defaultURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookChannel creates the webhook channel. defaultURL may be empty,
// in which case every task must carry its own URL recipient.
func NewWebhookChannel(defaultURL string, timeout time.Duration, logger *slog.Logger) *WebhookChannel {
	return &WebhookChannel{
		defaultURL: defaultURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *WebhookChannel) Name() string { return "webhook" }

// ValidateRecipient accepts http(s) URLs, or anything when a default URL is
// configured to fall back on.
func (c *WebhookChannel) ValidateRecipient(recipient string) bool {
	if strings.HasPrefix(recipient, "http://") || strings.HasPrefix(recipient, "https://") {
		return true
	}
	return c.defaultURL != ""
}

func (c *WebhookChannel) Send(ctx context.Context, payload Payload) (Result, error) {
	url := payload.Recipient
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = c.defaultURL
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Result{}, fmt.Errorf("webhook status %d: %s", resp.StatusCode, snippet)
	}

	c.logger.Debug("webhook delivered", "url", url, "status", resp.StatusCode)
	return Result{
		Channel:   c.Name(),
		Success:   true,
		MessageID: newMessageID("wh"),
	}, nil
}
