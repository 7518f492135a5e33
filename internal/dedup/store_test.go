package dedup

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetAndExists(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.SetWithTTL(ctx, "k1", time.Hour))

	exists, err = store.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "k1", time.Hour))

	clock.Advance(59 * time.Minute)
	exists, err := store.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, exists, "still inside the TTL window")

	clock.Advance(2 * time.Minute)
	exists, err = store.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, exists, "expired after the TTL window")
}

func TestMemoryStore_BoundedGrowth(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ctx := context.Background()

	// Write a full sweep interval of short-lived keys, let them expire, then
	// keep writing. The opportunistic sweep must reclaim the dead keys.
	for i := 0; i < sweepEvery; i++ {
		require.NoError(t, store.SetWithTTL(ctx, fmt.Sprintf("old-%d", i), time.Minute))
	}
	clock.Advance(2 * time.Minute)

	for i := 0; i < sweepEvery; i++ {
		require.NoError(t, store.SetWithTTL(ctx, fmt.Sprintf("new-%d", i), time.Hour))
	}

	assert.LessOrEqual(t, store.Len(), sweepEvery, "expired keys must be swept, not accumulated")
}

func TestMemoryStore_ExplicitSweep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "short", time.Minute))
	require.NoError(t, store.SetWithTTL(ctx, "long", time.Hour))

	clock.Advance(5 * time.Minute)

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())
}
