// Package spatial provides a coarse grid index for geographic grouping.
package spatial

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultResolution is the grid cell size in degrees (~11km of latitude).
const DefaultResolution = 0.1

// Cell identifies one grid square.
type Cell struct {
	Row int // floor(lat / resolution)
	Col int // floor(lon / resolution)
}

// entry pairs an item with its insertion time so sweeps can age it out.
type entry[T any] struct {
	item T
	at   time.Time
}

// Index is a grid-based spatial store supporting coarse radius queries.
// Queries return everything in the Chebyshev neighborhood without Euclidean
// re-filtering; callers accept over-inclusion as a speed/precision trade.
// Entries age out via Sweep, bounding growth to the retention window.
type Index[T any] struct {
	resolution float64
	clock      clockwork.Clock

	mu   sync.RWMutex
	grid map[Cell][]entry[T]
}

// NewIndex creates an index with the given cell resolution in degrees.
// Non-positive resolutions fall back to the default; a nil clock uses the
// real one.
func NewIndex[T any](resolution float64, clock clockwork.Clock) *Index[T] {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Index[T]{
		resolution: resolution,
		clock:      clock,
		grid:       make(map[Cell][]entry[T]),
	}
}

// Insert adds an item at the given coordinates, stamped with the current
// time for later sweeping.
func (ix *Index[T]) Insert(item T, lat, lon float64) {
	cell := ix.cellFor(lat, lon)
	e := entry[T]{item: item, at: ix.clock.Now()}

	ix.mu.Lock()
	ix.grid[cell] = append(ix.grid[cell], e)
	ix.mu.Unlock()
}

// QueryRadius returns all items within radius cells of the given point,
// scanning the (2r+1)x(2r+1) neighborhood. A radius of 0 is just the
// center cell; negative radii are treated as 0.
func (ix *Index[T]) QueryRadius(lat, lon float64, radius int) []T {
	if radius < 0 {
		radius = 0
	}
	center := ix.cellFor(lat, lon)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var results []T
	for dr := -radius; dr <= radius; dr++ {
		for dc := -radius; dc <= radius; dc++ {
			cell := Cell{Row: center.Row + dr, Col: center.Col + dc}
			for _, e := range ix.grid[cell] {
				results = append(results, e.item)
			}
		}
	}
	return results
}

// Len returns the total number of indexed items.
func (ix *Index[T]) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := 0
	for _, items := range ix.grid {
		n += len(items)
	}
	return n
}

// Sweep drops entries older than maxAge and removes emptied cells, bounding
// the index to the recent window. Returns the number of entries dropped.
func (ix *Index[T]) Sweep(maxAge time.Duration) int {
	cutoff := ix.clock.Now().Add(-maxAge)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	dropped := 0
	for cell, entries := range ix.grid {
		kept := entries[:0]
		for _, e := range entries {
			if e.at.After(cutoff) {
				kept = append(kept, e)
			} else {
				dropped++
			}
		}
		if len(kept) == 0 {
			delete(ix.grid, cell)
		} else {
			ix.grid[cell] = kept
		}
	}
	return dropped
}

// cellFor floors the coordinates onto the grid. Floor (not truncation)
// keeps cells contiguous across the equator and prime meridian.
func (ix *Index[T]) cellFor(lat, lon float64) Cell {
	return Cell{
		Row: int(math.Floor(lat / ix.resolution)),
		Col: int(math.Floor(lon / ix.resolution)),
	}
}
