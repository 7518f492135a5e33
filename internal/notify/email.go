package notify

import (
	"context"
	"log/slog"
	"strings"
)

// EmailChannel delivers address-style notifications. The SMTP handoff is
// acknowledged locally; real provider integration lives outside this core.
type EmailChannel struct {
	host     string
	port     int
	username string
	logger   *slog.Logger
}

// NewEmailChannel creates the email channel.
func NewEmailChannel(host string, port int, username string, logger *slog.Logger) *EmailChannel {
	return &EmailChannel{host: host, port: port, username: username, logger: logger}
}

func (c *EmailChannel) Name() string { return "email" }

// ValidateRecipient accepts address-shaped recipients.
func (c *EmailChannel) ValidateRecipient(recipient string) bool {
	return strings.Contains(recipient, "@") && strings.Contains(recipient, ".")
}

func (c *EmailChannel) Send(_ context.Context, payload Payload) (Result, error) {
	c.logger.Info("sending email",
		"recipient", payload.Recipient,
		"title", payload.Title,
		"priority", payload.Priority,
	)
	return Result{
		Channel:   c.Name(),
		Success:   true,
		MessageID: newMessageID("msg"),
	}, nil
}
