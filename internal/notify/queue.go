package notify

import (
	"context"
	"sync"
)

// taskQueue is an unbounded FIFO with a blocking, cancellable dequeue.
// Enqueue never blocks; urgency ordering, if wanted, must be applied before
// enqueueing — the queue itself never reorders.
type taskQueue struct {
	mu    sync.Mutex
	items []*Task
	ready chan struct{} // capacity 1, signals a non-empty queue
}

func newTaskQueue() *taskQueue {
	return &taskQueue{ready: make(chan struct{}, 1)}
}

// Enqueue appends the task and signals any waiting consumer.
func (q *taskQueue) Enqueue(task *Task) {
	q.mu.Lock()
	q.items = append(q.items, task)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Dequeue pops the oldest task, blocking until one is available or the
// context is cancelled. Tasks already queued at cancellation are still
// handed out; nil is returned only once the queue is empty.
func (q *taskQueue) Dequeue(ctx context.Context) *Task {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			task := q.items[0]
			q.items = q.items[1:]
			if len(q.items) > 0 {
				// More work pending: keep the signal hot for the next call.
				select {
				case q.ready <- struct{}{}:
				default:
				}
			}
			q.mu.Unlock()
			return task
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-ctx.Done():
			// A task enqueued just before cancellation may have lost the
			// select race; take one last look before giving up.
			q.mu.Lock()
			empty := len(q.items) == 0
			q.mu.Unlock()
			if empty {
				return nil
			}
		}
	}
}

// Len returns the number of queued tasks.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
