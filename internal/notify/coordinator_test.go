package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/couchcryptid/storm-alert-triage/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeChannel scripts validation and send outcomes per test.
type fakeChannel struct {
	name      string
	validates bool
	sendErr   error

	mu   sync.Mutex
	sent []Payload
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) ValidateRecipient(string) bool { return f.validates }

func (f *fakeChannel) Send(_ context.Context, payload Payload) (Result, error) {
	f.mu.Lock()
	f.sent = append(f.sent, payload)
	f.mu.Unlock()
	if f.sendErr != nil {
		return Result{}, f.sendErr
	}
	return Result{Channel: f.name, Success: true, MessageID: "fake-1"}, nil
}

func (f *fakeChannel) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestCoordinator(channels ...Channel) *Coordinator {
	reg := NewRegistry()
	for _, ch := range channels {
		reg.Register(ch)
	}
	return NewCoordinator(reg, slog.Default(), observability.NewMetricsForTesting())
}

func TestDeliver_AllSuccessful(t *testing.T) {
	email := &fakeChannel{name: "email", validates: true}
	sms := &fakeChannel{name: "sms", validates: true}
	c := newTestCoordinator(email, sms)

	task := NewTask(Payload{Recipient: "ops@example.com"}, []string{"email", "sms"})
	report := c.Deliver(context.Background(), task)

	assert.Equal(t, task.ID, report.TaskID)
	assert.Equal(t, 2, report.TotalChannels)
	assert.Equal(t, 2, report.Successful)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 1, task.Attempts)
}

func TestDeliver_ChannelNotFound(t *testing.T) {
	c := newTestCoordinator(&fakeChannel{name: "email", validates: true})

	task := NewTask(Payload{Recipient: "ops@example.com"}, []string{"email", "pager"})
	report := c.Deliver(context.Background(), task)

	require.Len(t, report.Results, 2)
	assert.True(t, report.Results[0].Success)
	assert.False(t, report.Results[1].Success)
	assert.Equal(t, "channel not found", report.Results[1].Error)
	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, 1, report.Failed)
}

func TestDeliver_InvalidRecipientOnBothChannels(t *testing.T) {
	email := &fakeChannel{name: "email"} // validates=false
	sms := &fakeChannel{name: "sms"}
	c := newTestCoordinator(email, sms)

	task := NewTask(Payload{Recipient: "not-valid"}, []string{"email", "sms"})
	report := c.Deliver(context.Background(), task)

	require.Len(t, report.Results, 2)
	for _, res := range report.Results {
		assert.False(t, res.Success)
		assert.Equal(t, "invalid recipient", res.Error)
	}
	assert.Zero(t, email.sentCount(), "send is never attempted for an invalid recipient")
}

func TestDeliver_SendErrorDoesNotShortCircuit(t *testing.T) {
	failing := &fakeChannel{name: "email", validates: true, sendErr: errors.New("smtp: connection reset")}
	healthy := &fakeChannel{name: "sms", validates: true}
	c := newTestCoordinator(failing, healthy)

	task := NewTask(Payload{Recipient: "+15551234567"}, []string{"email", "sms"})
	report := c.Deliver(context.Background(), task)

	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "smtp: connection reset", report.Results[0].Error)
	assert.Equal(t, 1, healthy.sentCount(), "healthy channel still attempted")
}

func TestDeliver_ReportClosure(t *testing.T) {
	// Every combination of registered/unregistered channels and
	// valid/invalid recipients must satisfy successful+failed==total.
	combos := [][]string{
		{"email"},
		{"pager"},
		{"email", "pager"},
		{"email", "sms", "pager", "fax"},
		{},
	}
	for _, validates := range []bool{true, false} {
		c := newTestCoordinator(
			&fakeChannel{name: "email", validates: validates},
			&fakeChannel{name: "sms", validates: validates},
		)
		for _, channels := range combos {
			task := NewTask(Payload{Recipient: "ops@example.com"}, channels)
			report := c.Deliver(context.Background(), task)
			assert.Equal(t, len(channels), report.TotalChannels)
			assert.Equal(t, report.TotalChannels, report.Successful+report.Failed,
				"channels=%v validates=%v", channels, validates)
		}
	}
}

func TestRun_DeliversQueuedTasks(t *testing.T) {
	email := &fakeChannel{name: "email", validates: true}
	c := newTestCoordinator(email)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	for i := 0; i < 3; i++ {
		c.Enqueue(NewTask(Payload{Recipient: "ops@example.com"}, []string{"email"}))
	}

	require.Eventually(t, func() bool { return email.sentCount() == 3 },
		2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.Zero(t, c.QueueDepth())
}

func TestRun_RetriesFailedChannelsOnly(t *testing.T) {
	failing := &fakeChannel{name: "sms", validates: true, sendErr: errors.New("carrier timeout")}
	healthy := &fakeChannel{name: "email", validates: true}
	c := newTestCoordinator(failing, healthy)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	task := NewTask(Payload{Recipient: "ops@example.com"}, []string{"email", "sms"})
	task.MaxAttempts = 3
	c.Enqueue(task)

	// The sms leg is retried until the budget runs out, then abandoned.
	require.Eventually(t, func() bool { return failing.sentCount() == 3 },
		2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, 1, healthy.sentCount(), "successful channel is not re-sent on retry")
	assert.Equal(t, 3, task.Attempts)
}

func TestRun_BadTaskDoesNotHaltConsumer(t *testing.T) {
	email := &fakeChannel{name: "email", validates: true}
	c := newTestCoordinator(email)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	bad := NewTask(Payload{Recipient: "x"}, []string{"pager"})
	bad.MaxAttempts = 1
	c.Enqueue(bad)
	c.Enqueue(NewTask(Payload{Recipient: "ops@example.com"}, []string{"email"}))

	require.Eventually(t, func() bool { return email.sentCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestRun_DrainsBacklogOnCancellation(t *testing.T) {
	email := &fakeChannel{name: "email", validates: true}
	c := newTestCoordinator(email)

	// Everything is enqueued before the consumer even starts, under an
	// already-cancelled context: the shutdown-flush ordering.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		c.Enqueue(NewTask(Payload{Recipient: "ops@example.com"}, []string{"email"}))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain and stop")
	}

	assert.Equal(t, 3, email.sentCount(), "queued tasks are delivered before the consumer stops")
	assert.Zero(t, c.QueueDepth())
}

func TestTaskQueue_FIFO(t *testing.T) {
	q := newTaskQueue()
	ctx := context.Background()

	first := NewTask(Payload{}, nil)
	second := NewTask(Payload{}, nil)
	q.Enqueue(first)
	q.Enqueue(second)

	assert.Equal(t, 2, q.Len())
	assert.Same(t, first, q.Dequeue(ctx))
	assert.Same(t, second, q.Dequeue(ctx))
}

func TestTaskQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := newTaskQueue()

	got := make(chan *Task, 1)
	go func() {
		got <- q.Dequeue(context.Background())
	}()

	task := NewTask(Payload{}, nil)
	q.Enqueue(task)

	select {
	case dequeued := <-got:
		assert.Same(t, task, dequeued)
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue never woke up")
	}
}

func TestTaskQueue_DequeueCancellation(t *testing.T) {
	q := newTaskQueue()

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan *Task, 1)
	go func() {
		got <- q.Dequeue(ctx)
	}()

	cancel()

	select {
	case task := <-got:
		assert.Nil(t, task)
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue did not observe cancellation")
	}
}

func TestTaskQueue_DequeueDrainsBacklogAfterCancellation(t *testing.T) {
	q := newTaskQueue()
	task := NewTask(Payload{}, nil)
	q.Enqueue(task)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Same(t, task, q.Dequeue(ctx), "a queued task outlives cancellation")
	assert.Nil(t, q.Dequeue(ctx), "nil only once the queue is empty")
}
