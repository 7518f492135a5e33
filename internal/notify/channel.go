// Package notify fans alert notifications out across named delivery
// channels with partial-failure accounting.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/storm-alert-triage/internal/priority"
)

// Payload is the notification content handed to a channel.
type Payload struct {
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Priority  priority.Tier  `json:"priority"`
	Data      map[string]any `json:"data,omitempty"` // opaque pass-through
	Recipient string         `json:"recipient"`
}

// Result is the outcome of one channel's delivery attempt.
type Result struct {
	Channel   string `json:"channel"`
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Channel is a delivery transport behind a uniform send/validate contract.
type Channel interface {
	Name() string
	// ValidateRecipient reports whether the recipient string is deliverable
	// on this channel.
	ValidateRecipient(recipient string) bool
	// Send delivers the payload. A returned error is converted by the
	// coordinator into a failure Result, never surfaced to the caller.
	Send(ctx context.Context, payload Payload) (Result, error)
}

// Task is one unit of work in the delivery queue. Owned by the queue until
// terminal; Attempts increments on each delivery pass.
type Task struct {
	ID          string
	Payload     Payload
	Channels    []string
	CreatedAt   time.Time
	Attempts    int
	MaxAttempts int
}

// NewTask builds a Task with a generated ID and the default retry budget.
func NewTask(payload Payload, channels []string) *Task {
	return &Task{
		ID:          uuid.NewString(),
		Payload:     payload,
		Channels:    channels,
		CreatedAt:   time.Now().UTC(),
		MaxAttempts: 3,
	}
}

// Report is the terminal, immutable record of one delivery pass.
type Report struct {
	TaskID        string
	Results       []Result
	CompletedAt   time.Time
	TotalChannels int
	Successful    int
	Failed        int
}

// FailedChannels lists the channels whose attempt did not succeed.
func (r Report) FailedChannels() []string {
	var failed []string
	for _, res := range r.Results {
		if !res.Success {
			failed = append(failed, res.Channel)
		}
	}
	return failed
}

// newMessageID generates a channel-scoped message identifier.
func newMessageID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
