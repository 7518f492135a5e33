package notify

import (
	"context"
	"log/slog"
	"strings"
)

// SMSChannel delivers number-style notifications. Like email, the provider
// handoff is acknowledged locally.
type SMSChannel struct {
	fromNumber string
	logger     *slog.Logger
}

// NewSMSChannel creates the sms channel.
func NewSMSChannel(fromNumber string, logger *slog.Logger) *SMSChannel {
	return &SMSChannel{fromNumber: fromNumber, logger: logger}
}

func (c *SMSChannel) Name() string { return "sms" }

// ValidateRecipient accepts E.164-style numbers.
func (c *SMSChannel) ValidateRecipient(recipient string) bool {
	return strings.HasPrefix(recipient, "+") && len(recipient) >= 10
}

func (c *SMSChannel) Send(_ context.Context, payload Payload) (Result, error) {
	c.logger.Info("sending sms",
		"recipient", payload.Recipient,
		"priority", payload.Priority,
	)
	return Result{
		Channel:   c.Name(),
		Success:   true,
		MessageID: newMessageID("sms"),
	}, nil
}
