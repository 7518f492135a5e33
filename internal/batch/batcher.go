// Package batch buffers items and flushes them to a handler on size or
// time thresholds.
package batch

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// FlushFunc receives a flushed buffer. It runs while the batcher's lock is
// held, so no two flushes of one batcher ever overlap; handlers should stay
// quick and must not call back into the same batcher.
type FlushFunc[T any] func(items []T)

// Batcher accumulates items and flushes when the buffer reaches maxSize or
// when more than interval has elapsed since the last flush. Both conditions
// are evaluated synchronously inside Add; there is no background timer, so
// a buffer below threshold sits until the next Add or an explicit Flush.
type Batcher[T any] struct {
	maxSize  int
	interval time.Duration
	flush    FlushFunc[T]
	clock    clockwork.Clock

	mu        sync.Mutex
	buffer    []T
	lastFlush time.Time
}

// New creates a Batcher. maxSize must be positive; interval non-positive
// disables the time trigger.
func New[T any](maxSize int, interval time.Duration, clock clockwork.Clock, flush FlushFunc[T]) *Batcher[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Batcher[T]{
		maxSize:   maxSize,
		interval:  interval,
		flush:     flush,
		clock:     clock,
		lastFlush: clock.Now(),
	}
}

// Add buffers an item and flushes if a trigger fires. The append, the
// flush decision, and the buffer swap are one critical section, so
// concurrent producers never interleave partial flushes.
func (b *Batcher[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buffer = append(b.buffer, item)

	sizeTrigger := len(b.buffer) >= b.maxSize
	timeTrigger := b.interval > 0 && b.clock.Since(b.lastFlush) > b.interval
	if sizeTrigger || timeTrigger {
		b.flushLocked()
	}
}

// Flush forces out whatever is buffered, if anything.
func (b *Batcher[T]) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

// Pending returns the current buffer size.
func (b *Batcher[T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}

func (b *Batcher[T]) flushLocked() {
	if len(b.buffer) == 0 {
		return
	}
	items := b.buffer
	b.buffer = nil
	b.lastFlush = b.clock.Now()
	b.flush(items)
}
