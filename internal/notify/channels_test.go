package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-alert-triage/internal/priority"
)

func TestEmailChannel_ValidateRecipient(t *testing.T) {
	ch := NewEmailChannel("smtp.example.com", 587, "alerts", slog.Default())

	tests := []struct {
		recipient string
		want      bool
	}{
		{"ops@example.com", true},
		{"first.last@sub.example.org", true},
		{"not-valid", false},
		{"missing-dot@example", false},
		{"missing-at.example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ch.ValidateRecipient(tt.recipient), "recipient %q", tt.recipient)
	}
}

func TestEmailChannel_Send(t *testing.T) {
	ch := NewEmailChannel("smtp.example.com", 587, "alerts", slog.Default())

	res, err := ch.Send(context.Background(), Payload{Recipient: "ops@example.com", Priority: priority.TierHigh})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "email", res.Channel)
	assert.NotEmpty(t, res.MessageID)
}

func TestSMSChannel_ValidateRecipient(t *testing.T) {
	ch := NewSMSChannel("+15550100", slog.Default())

	tests := []struct {
		recipient string
		want      bool
	}{
		{"+15551234567", true},
		{"+449116754321", true},
		{"+123", false}, // too short
		{"15551234567", false},
		{"not-valid", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ch.ValidateRecipient(tt.recipient), "recipient %q", tt.recipient)
	}
}

func TestWebhookChannel_ValidateRecipient(t *testing.T) {
	t.Run("without default URL", func(t *testing.T) {
		ch := NewWebhookChannel("", time.Second, slog.Default())
		assert.True(t, ch.ValidateRecipient("https://hooks.example.com/x"))
		assert.True(t, ch.ValidateRecipient("http://hooks.example.com/x"))
		assert.False(t, ch.ValidateRecipient("ftp://hooks.example.com/x"))
		assert.False(t, ch.ValidateRecipient(""))
	})

	t.Run("default URL accepts anything", func(t *testing.T) {
		ch := NewWebhookChannel("https://default.example.com", time.Second, slog.Default())
		assert.True(t, ch.ValidateRecipient(""))
		assert.True(t, ch.ValidateRecipient("not-a-url"))
	})
}

func TestWebhookChannel_Send(t *testing.T) {
	t.Run("posts payload as JSON", func(t *testing.T) {
		var got Payload
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		}))
		defer srv.Close()

		ch := NewWebhookChannel("", time.Second, slog.Default())
		defer ch.httpClient.CloseIdleConnections()
		payload := Payload{
			Title:     "Tornado warning",
			Message:   "Take cover",
			Priority:  priority.TierCritical,
			Recipient: srv.URL,
		}

		res, err := ch.Send(context.Background(), payload)

		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.NotEmpty(t, res.MessageID)
		assert.Equal(t, "Tornado warning", got.Title)
	})

	t.Run("falls back to default URL", func(t *testing.T) {
		hit := false
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hit = true
		}))
		defer srv.Close()

		ch := NewWebhookChannel(srv.URL, time.Second, slog.Default())
		defer ch.httpClient.CloseIdleConnections()
		_, err := ch.Send(context.Background(), Payload{Recipient: "not-a-url"})

		require.NoError(t, err)
		assert.True(t, hit)
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		}))
		defer srv.Close()

		ch := NewWebhookChannel("", time.Second, slog.Default())
		defer ch.httpClient.CloseIdleConnections()
		_, err := ch.Send(context.Background(), Payload{Recipient: srv.URL})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("unreachable endpoint is an error", func(t *testing.T) {
		ch := NewWebhookChannel("", 100*time.Millisecond, slog.Default())
		_, err := ch.Send(context.Background(), Payload{Recipient: "http://127.0.0.1:1/unreachable"})
		require.Error(t, err)
	})
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewEmailChannel("smtp.example.com", 587, "alerts", slog.Default()))
	reg.Register(NewSMSChannel("+15550100", slog.Default()))

	ch, ok := reg.Get("email")
	require.True(t, ok)
	assert.Equal(t, "email", ch.Name())

	_, ok = reg.Get("pager")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"email", "sms"}, reg.Names())
}
