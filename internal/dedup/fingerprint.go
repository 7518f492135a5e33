// Package dedup decides whether an incoming alert duplicates a recently
// seen hazard report. Two reports of the same hazard may arrive minutes
// apart with slightly different GPS coordinates; the fingerprint collapses
// both kinds of jitter before the cache lookup.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/couchcryptid/storm-alert-triage/internal/domain"
)

const (
	// bucketSize coalesces near-simultaneous reports of the same hazard.
	bucketSize = 15 * time.Minute

	// keyPrefix namespaces fingerprint keys in a shared store.
	keyPrefix = "alert:fp:"
)

// Fingerprint identifies "the same hazard report" for dedup purposes.
// Equal for logically identical records regardless of arrival order.
type Fingerprint struct {
	AlertType    string
	LocationHash string
	Severity     string
	TimeBucket   string
}

// NewFingerprint derives a fingerprint from a record. Location is rounded
// to 2 decimal degrees (~1km) before hashing to tolerate GPS jitter, and
// the timestamp is floored to a 15-minute bucket to tolerate out-of-order
// or repeated transmission within a window.
func NewFingerprint(rec domain.AlertRecord) Fingerprint {
	return Fingerprint{
		AlertType:    rec.Type,
		LocationHash: hashLocation(rec.Latitude, rec.Longitude),
		Severity:     rec.Severity,
		TimeBucket:   rec.Timestamp.UTC().Truncate(bucketSize).Format(time.RFC3339),
	}
}

// String renders the four fields as the dedup cache key component.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", f.AlertType, f.LocationHash, f.Severity, f.TimeBucket)
}

// Key returns the namespaced shared-store key.
func (f Fingerprint) Key() string {
	return keyPrefix + f.String()
}

// hashLocation produces a fixed-width digest of the rounded coordinates.
func hashLocation(lat, lon float64) string {
	loc := fmt.Sprintf("%.2f,%.2f", lat, lon)
	sum := sha256.Sum256([]byte(loc))
	return hex.EncodeToString(sum[:8])
}
