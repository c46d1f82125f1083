// Package buffer implements the bounded dual-ring in-memory store that
// sits between log producers and the transport layer: a main ring
// holding the most recent entries up to a configurable capacity, and a
// priority ring that additionally protects error/fatal entries from
// being evicted by a burst of lower-severity traffic.
package buffer

import (
	"sort"
	"sync"

	"github.com/porby-sdk/porby/pkg/model"
)

const (
	DefaultMainCapacity     = 1000
	DefaultPriorityCapacity = 100

	minReducedCapacity   = 50
	defaultBytesPerEntry = 512
)

// Ring is a bounded dual-ring buffer. Zero value is not usable; use New.
type Ring struct {
	mu       sync.Mutex
	main     []model.LogEntry
	priority []model.LogEntry
	mainCap  int
	prioCap  int
}

// New constructs a Ring with the given main and priority capacities.
// A non-positive capacity is replaced by the corresponding default.
func New(mainCap, priorityCap int) *Ring {
	if mainCap <= 0 {
		mainCap = DefaultMainCapacity
	}
	if priorityCap <= 0 {
		priorityCap = DefaultPriorityCapacity
	}
	return &Ring{
		main:     make([]model.LogEntry, 0, mainCap),
		priority: make([]model.LogEntry, 0, priorityCap),
		mainCap:  mainCap,
		prioCap:  priorityCap,
	}
}

// Append never fails; on overflow it silently evicts the oldest
// entries. If the entry's level is error or fatal, it is additionally
// pushed into the priority ring under the same drop-oldest rule.
func (r *Ring) Append(e model.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.main = pushBounded(r.main, e, r.mainCap)
	if e.Level.IsPriority() {
		r.priority = pushBounded(r.priority, e, r.prioCap)
	}
}

func pushBounded(ring []model.LogEntry, e model.LogEntry, capacity int) []model.LogEntry {
	if len(ring) >= capacity {
		drop := len(ring) - capacity + 1
		ring = ring[drop:]
	}
	return append(ring, e)
}

// Drain takes the union of the main and priority rings, deduplicates
// by entry ID (keeping first occurrence), sorts ascending by timestamp
// with a stable sort so ties preserve relative order, clears both
// rings, and returns the merged batch.
func (r *Ring) Drain() []model.LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drainLocked()
}

func (r *Ring) drainLocked() []model.LogEntry {
	if len(r.main) == 0 && len(r.priority) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(r.main)+len(r.priority))
	merged := make([]model.LogEntry, 0, len(r.main)+len(r.priority))

	for _, e := range r.main {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		merged = append(merged, e)
	}
	for _, e := range r.priority {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		merged = append(merged, e)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})

	r.main = r.main[:0]
	r.priority = r.priority[:0]

	return merged
}

// Len returns the current size of the main and priority rings.
func (r *Ring) Len() (main, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.main), len(r.priority)
}

// ReduceMaxSize atomically lowers the main ring's capacity, trimming
// the oldest excess entries immediately.
func (r *Ring) ReduceMaxSize(newCap int) {
	if newCap <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mainCap = newCap
	if len(r.main) > newCap {
		r.main = r.main[len(r.main)-newCap:]
	}
}

// MainCapacity returns the current main ring capacity.
func (r *Ring) MainCapacity() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mainCap
}

// DrainAndHalve drains the buffer (as Drain would) and then halves the
// main capacity, floored at minReducedCapacity. This is the handler for
// a host-reported memory-pressure warning.
func (r *Ring) DrainAndHalve() []model.LogEntry {
	r.mu.Lock()
	batch := r.drainLocked()
	newCap := r.mainCap / 2
	if newCap < minReducedCapacity {
		newCap = minReducedCapacity
	}
	r.mainCap = newCap
	r.mu.Unlock()
	return batch
}

// DrainIfOverEstimatedBytes drains and shrinks the main ring to
// target = capBytes/bytesPerEntry if the estimated in-memory footprint
// (entries * bytesPerEntry) exceeds capBytes. bytesPerEntry <= 0 uses
// the default per-entry estimate. Returns the drained batch, or nil if
// the estimated usage was within budget.
func (r *Ring) DrainIfOverEstimatedBytes(capBytes int64, bytesPerEntry int64) []model.LogEntry {
	if bytesPerEntry <= 0 {
		bytesPerEntry = defaultBytesPerEntry
	}

	r.mu.Lock()
	estimated := int64(len(r.main)+len(r.priority)) * bytesPerEntry
	if estimated <= capBytes {
		r.mu.Unlock()
		return nil
	}

	batch := r.drainLocked()
	target := capBytes / bytesPerEntry
	if target < minReducedCapacity {
		target = minReducedCapacity
	}
	r.mainCap = int(target)
	r.mu.Unlock()
	return batch
}
