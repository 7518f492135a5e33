package dedup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/storm-alert-triage/internal/domain"
)

// CacheTTL is how long a fingerprint stays authoritative once recorded.
const CacheTTL = 24 * time.Hour

// Stats is a snapshot of deduplication counters.
type Stats struct {
	Processed     int64   `json:"processed"`
	Duplicates    int64   `json:"duplicates"`
	DuplicateRate float64 `json:"duplicate_rate"`
	FallbackSize  int     `json:"fallback_size"`
}

// Deduplicator classifies incoming records as fresh or duplicate.
//
// When a shared store is configured it is the source of truth; the local
// fallback only serves calls where the shared store errors, trading strict
// consistency for availability. A narrow race letting two near-simultaneous
// duplicates through is accepted.
type Deduplicator struct {
	shared   Store // nil when no shared store is configured
	fallback *MemoryStore
	logger   *slog.Logger

	mu         sync.Mutex
	processed  int64
	duplicates int64
}

// New creates a Deduplicator. shared may be nil, in which case the
// in-process fallback store is authoritative.
func New(shared Store, fallback *MemoryStore, logger *slog.Logger) *Deduplicator {
	return &Deduplicator{
		shared:   shared,
		fallback: fallback,
		logger:   logger,
	}
}

// IsDuplicate reports whether the record's fingerprint has been seen within
// its TTL window, recording it if not. The first call for a fresh
// fingerprint returns false; repeats return true until expiry.
func (d *Deduplicator) IsDuplicate(ctx context.Context, rec domain.AlertRecord) bool {
	d.mu.Lock()
	d.processed++
	d.mu.Unlock()

	key := NewFingerprint(rec).Key()

	if d.shared != nil {
		dup, err := d.checkStore(ctx, d.shared, key)
		if err == nil {
			if dup {
				d.countDuplicate()
			}
			return dup
		}
		d.logger.Warn("shared fingerprint store unavailable, using local fallback",
			"error", err, "alert_id", rec.ID)
	}

	dup, _ := d.checkStore(ctx, d.fallback, key) // MemoryStore never errors
	if dup {
		d.countDuplicate()
	}
	return dup
}

// checkStore performs the exists-then-set protocol against one store.
func (d *Deduplicator) checkStore(ctx context.Context, store Store, key string) (bool, error) {
	exists, err := store.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}
	if err := store.SetWithTTL(ctx, key, CacheTTL); err != nil {
		return false, err
	}
	return false, nil
}

func (d *Deduplicator) countDuplicate() {
	d.mu.Lock()
	d.duplicates++
	d.mu.Unlock()
}

// DuplicateRate returns duplicates/processed, or 0 before any processing.
func (d *Deduplicator) DuplicateRate() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.processed == 0 {
		return 0
	}
	return float64(d.duplicates) / float64(d.processed)
}

// Stats returns a snapshot of the counters and fallback cache size.
func (d *Deduplicator) Stats() Stats {
	d.mu.Lock()
	processed, duplicates := d.processed, d.duplicates
	d.mu.Unlock()

	rate := 0.0
	if processed > 0 {
		rate = float64(duplicates) / float64(processed)
	}
	return Stats{
		Processed:     processed,
		Duplicates:    duplicates,
		DuplicateRate: rate,
		FallbackSize:  d.fallback.Len(),
	}
}
