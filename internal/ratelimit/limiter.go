// Package ratelimit implements a per-key token bucket with a hard block on
// exceed, for throttling deliveries per recipient.
package ratelimit

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Config holds the limiter tuning knobs.
type Config struct {
	RequestsPerMinute int
	BurstSize         int
	BlockDuration     time.Duration
}

// DefaultConfig mirrors the operational defaults: sustained 1 req/s,
// bursts of 10, five-minute penalty box.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		BurstSize:         10,
		BlockDuration:     5 * time.Minute,
	}
}

// Result describes the outcome of one check.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration // zero when allowed
}

// bucket is the per-key state: tokens, last refill, and an optional block.
type bucket struct {
	tokens     float64
	lastRefill time.Time
	blockUntil time.Time
	lastSeen   time.Time
}

// Limiter tracks a token bucket per key. All methods are synchronous and
// never suspend; refill is computed lazily from elapsed wall time.
type Limiter struct {
	cfg   Config
	rate  float64 // tokens per second
	clock clockwork.Clock

	mu      sync.Mutex
	buckets map[string]*bucket
}

// New creates a Limiter.
func New(cfg Config, clock clockwork.Clock) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Limiter{
		cfg:     cfg,
		rate:    float64(cfg.RequestsPerMinute) / 60.0,
		clock:   clock,
		buckets: make(map[string]*bucket),
	}
}

// Check consumes one token for the key if available. A denial puts the key
// into a hard block for the configured duration; while blocked, every check
// is denied regardless of token state. Previously unseen keys start with a
// full bucket.
func (l *Limiter) Check(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	b := l.bucketFor(key, now)
	b.lastSeen = now

	if b.blockUntil.After(now) {
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    b.blockUntil,
			RetryAfter: b.blockUntil.Sub(now),
		}
	}
	b.blockUntil = time.Time{} // block expired

	l.refill(b, now)

	if b.tokens >= 1 {
		b.tokens--
		return Result{
			Allowed:   true,
			Remaining: int(b.tokens),
			ResetAt:   l.fullAt(b, now),
		}
	}

	b.blockUntil = now.Add(l.cfg.BlockDuration)
	return Result{
		Allowed:    false,
		Remaining:  0,
		ResetAt:    b.blockUntil,
		RetryAfter: l.cfg.BlockDuration,
	}
}

// Reset clears the bucket and any block for the key. The next check starts
// from a full bucket.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}

// SweepIdle drops buckets not seen for at least horizon and not blocked,
// bounding state growth across many one-off recipients. Returns the number
// of buckets removed.
func (l *Limiter) SweepIdle(horizon time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	dropped := 0
	for key, b := range l.buckets {
		if b.blockUntil.After(now) {
			continue // a blocked key must keep serving its penalty
		}
		if now.Sub(b.lastSeen) >= horizon {
			delete(l.buckets, key)
			dropped++
		}
	}
	return dropped
}

// Keys returns the number of tracked buckets.
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) bucketFor(key string, now time.Time) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{
			tokens:     float64(l.cfg.BurstSize),
			lastRefill: now,
		}
		l.buckets[key] = b
	}
	return b
}

// refill credits tokens for the elapsed time, capped at capacity.
func (l *Limiter) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = min(float64(l.cfg.BurstSize), b.tokens+elapsed*l.rate)
	}
	b.lastRefill = now
}

// fullAt estimates when the bucket refills completely.
func (l *Limiter) fullAt(b *bucket, now time.Time) time.Time {
	if l.rate <= 0 {
		return now
	}
	missing := float64(l.cfg.BurstSize) - b.tokens
	return now.Add(time.Duration(missing / l.rate * float64(time.Second)))
}
