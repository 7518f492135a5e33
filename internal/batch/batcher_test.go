package batch

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatcher_SizeTrigger(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var flushed [][]int

	b := New(3, time.Minute, clock, func(items []int) {
		flushed = append(flushed, items)
	})

	b.Add(1)
	b.Add(2)
	assert.Empty(t, flushed, "below threshold, no flush")
	assert.Equal(t, 2, b.Pending())

	b.Add(3)
	require.Len(t, flushed, 1)
	assert.Equal(t, []int{1, 2, 3}, flushed[0])
	assert.Zero(t, b.Pending(), "buffer cleared after flush")
}

func TestBatcher_TimeTrigger(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var flushed [][]int

	b := New(100, time.Minute, clock, func(items []int) {
		flushed = append(flushed, items)
	})

	b.Add(1)
	clock.Advance(61 * time.Second)
	assert.Empty(t, flushed, "time trigger only fires on the next Add")

	b.Add(2)
	require.Len(t, flushed, 1)
	assert.Equal(t, []int{1, 2}, flushed[0])
}

func TestBatcher_FlushClockResets(t *testing.T) {
	clock := clockwork.NewFakeClock()
	count := 0

	b := New(2, time.Minute, clock, func([]int) { count++ })

	b.Add(1)
	b.Add(2) // size flush, resets the interval clock
	clock.Advance(30 * time.Second)
	b.Add(3)
	assert.Equal(t, 1, count, "30s since last flush is under the interval")
}

func TestBatcher_ExplicitFlush(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var flushed [][]int

	b := New(100, 0, clock, func(items []int) {
		flushed = append(flushed, items)
	})

	b.Flush()
	assert.Empty(t, flushed, "flushing an empty buffer is a no-op")

	b.Add(1)
	b.Flush()
	require.Len(t, flushed, 1)
	assert.Equal(t, []int{1}, flushed[0])
}

func TestBatcher_ConcurrentProducers(t *testing.T) {
	clock := clockwork.NewFakeClock()

	var mu sync.Mutex
	total := 0
	b := New(10, 0, clock, func(items []int) {
		mu.Lock()
		total += len(items)
		mu.Unlock()
	})

	const producers, perProducer = 8, 125
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				b.Add(j)
			}
		}()
	}
	wg.Wait()
	b.Flush()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, producers*perProducer, total, "every item flushed exactly once")
}
