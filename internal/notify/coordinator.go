package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-alert-triage/internal/observability"
)

// Coordinator delivers tasks across channels and runs the background queue
// consumer. Deliver never returns an error for per-channel problems; they
// degrade to failure results in the report.
type Coordinator struct {
	registry *Registry
	queue    *taskQueue
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewCoordinator creates a Coordinator over the given registry.
func NewCoordinator(registry *Registry, logger *slog.Logger, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{
		registry: registry,
		queue:    newTaskQueue(),
		logger:   logger,
		metrics:  metrics,
	}
}

// Enqueue adds a task to the delivery queue.
func (c *Coordinator) Enqueue(task *Task) {
	c.queue.Enqueue(task)
	c.metrics.QueueDepth.Set(float64(c.queue.Len()))
	c.logger.Debug("task enqueued", "task_id", task.ID, "channels", task.Channels)
}

// QueueDepth returns the number of waiting tasks.
func (c *Coordinator) QueueDepth() int {
	return c.queue.Len()
}

// Deliver attempts the task on every listed channel independently; one
// channel's outcome never short-circuits another's attempt. The report
// always satisfies successful + failed == total.
func (c *Coordinator) Deliver(ctx context.Context, task *Task) Report {
	task.Attempts++
	start := time.Now()
	results := make([]Result, 0, len(task.Channels))

	for _, name := range task.Channels {
		results = append(results, c.deliverOne(ctx, name, task.Payload))
	}

	successful := 0
	for _, res := range results {
		outcome := "failure"
		if res.Success {
			successful++
			outcome = "success"
		}
		c.metrics.Deliveries.WithLabelValues(res.Channel, outcome).Inc()
	}
	c.metrics.DeliveryDuration.Observe(time.Since(start).Seconds())

	return Report{
		TaskID:        task.ID,
		Results:       results,
		CompletedAt:   time.Now().UTC(),
		TotalChannels: len(task.Channels),
		Successful:    successful,
		Failed:        len(task.Channels) - successful,
	}
}

// deliverOne classifies and attempts a single channel. First match wins:
// unknown channel, invalid recipient, then the send itself.
func (c *Coordinator) deliverOne(ctx context.Context, name string, payload Payload) Result {
	channel, ok := c.registry.Get(name)
	if !ok {
		return Result{Channel: name, Error: "channel not found"}
	}
	if !channel.ValidateRecipient(payload.Recipient) {
		return Result{Channel: name, Error: "invalid recipient"}
	}

	result, err := channel.Send(ctx, payload)
	if err != nil {
		return Result{Channel: name, Error: err.Error()}
	}
	return result
}

// Run consumes the queue sequentially until the context is cancelled and
// the backlog is drained; callers can wait on Run returning instead of
// polling the queue depth. A task's failure is logged, retried with its
// failed channels while the attempt budget lasts, and never halts the
// loop. An in-flight delivery always completes before the loop exits.
func (c *Coordinator) Run(ctx context.Context) {
	c.logger.Info("delivery consumer started")
	defer c.logger.Info("delivery consumer stopped")

	for {
		task := c.queue.Dequeue(ctx)
		if task == nil {
			return
		}
		c.metrics.QueueDepth.Set(float64(c.queue.Len()))

		// The stop signal is honored between tasks, not mid-send.
		report := c.Deliver(context.WithoutCancel(ctx), task)

		if report.Failed == 0 {
			c.logger.Info("task delivered",
				"task_id", task.ID,
				"channels", report.TotalChannels,
				"attempt", task.Attempts,
			)
			continue
		}

		c.logger.Warn("task partially delivered",
			"task_id", task.ID,
			"successful", report.Successful,
			"failed", report.Failed,
			"attempt", task.Attempts,
		)

		if task.Attempts >= task.MaxAttempts {
			c.metrics.TasksAbandoned.Inc()
			c.logger.Error("task abandoned after max attempts",
				"task_id", task.ID,
				"attempts", task.Attempts,
				"failed_channels", report.FailedChannels(),
			)
			continue
		}

		// Retry only what failed; successful channels are never re-sent.
		task.Channels = report.FailedChannels()
		c.Enqueue(task)
	}
}
