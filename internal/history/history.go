// Package history keeps a bounded ring buffer of past tool-call interception
// results; aggregate stats are folded fresh from the ring's live contents on
// every read, so an evicted entry can never keep contributing to them.
package history

import (
	"sync"

	"github.com/palisade-dev/palisade-go/internal/engine"
)

// Entry is an alias for engine.HistoryEntry so callers never need to import
// both packages to build one: engine owns the type to avoid an import cycle
// (history depends on engine.AggregatedResult, not the other way around).
type Entry = engine.HistoryEntry

// DefaultCapacity is the ring size used when Tracker is constructed with a
// non-positive capacity.
const DefaultCapacity = 100

// Tracker is a fixed-capacity ring buffer of Entry. The zero value is not
// usable; use New.
type Tracker struct {
	capacity int

	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// New creates a Tracker holding at most capacity entries. A non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker{
		capacity: capacity,
		entries:  make([]Entry, capacity),
	}
}

// Record appends entry to the ring, evicting the oldest entry once the
// tracker is at capacity.
func (t *Tracker) Record(entry Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[t.next] = entry
	t.next = (t.next + 1) % t.capacity
	if t.next == 0 {
		t.full = true
	}
}

// Recent returns the tracked entries oldest-first, up to the ring's current
// fill level.
func (t *Tracker) Recent() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.liveEntries()
}

// liveEntries returns the ring's current contents, oldest-first. Callers
// must hold t.mu.
func (t *Tracker) liveEntries() []Entry {
	if !t.full {
		out := make([]Entry, t.next)
		copy(out, t.entries[:t.next])
		return out
	}

	out := make([]Entry, t.capacity)
	copy(out, t.entries[t.next:])
	copy(out[t.capacity-t.next:], t.entries[:t.next])
	return out
}

// Stats is a point-in-time snapshot of the ring's aggregates, folded fresh
// from its current contents every time GetStats is called.
type Stats struct {
	TotalCalls       int64
	AllowedCalls     int64
	DeniedCalls      int64
	CallsByTool      map[string]int64
	AverageLatencyMs float64
}

// GetStats folds the ring's current contents into a Stats snapshot in a
// single pass. Evicted entries never contribute: the result always equals a
// fresh fold over exactly what Recent() would return.
func (t *Tracker) GetStats() Stats {
	t.mu.Lock()
	entries := t.liveEntries()
	t.mu.Unlock()

	stats := Stats{CallsByTool: make(map[string]int64)}
	var latencySum float64
	for _, e := range entries {
		stats.TotalCalls++
		switch e.Result.FinalResult.Decision {
		case engine.DecisionAllow:
			stats.AllowedCalls++
		case engine.DecisionDeny:
			stats.DeniedCalls++
		}
		stats.CallsByTool[e.Call.Name]++
		latencySum += e.LatencyMs
	}
	if stats.TotalCalls > 0 {
		stats.AverageLatencyMs = latencySum / float64(stats.TotalCalls)
	}
	return stats
}

// Clear resets the ring to empty.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make([]Entry, t.capacity)
	t.next = 0
	t.full = false
}
