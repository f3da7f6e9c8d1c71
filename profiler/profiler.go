// Package profiler tracks per-category usage frequency over cache keys.
//
// The rendering cache feeds it every lookup; precompilation passes consume
// its usage-ranked traversal to decide which shader variants are worth
// compiling up front when startup time is limited. Counts influence ordering
// only, never correctness.
package profiler

import (
	"sort"
	"sync"
)

// DefaultCountCap is the saturation ceiling applied when a Profiler is
// created with a cap of zero. Counts stop growing there so long-running
// sessions cannot overflow or skew persisted rankings.
const DefaultCountCap = 1 << 20

// Hasher computes a stable hash for a key. It breaks ties between keys with
// equal counts so traversal order is deterministic.
type Hasher[K comparable] func(K) uint64

// Profiler counts key usage grouped by an opaque category, typically the
// identity hash of the running workload.
//
// Profiler is safe for concurrent use.
type Profiler[K comparable] struct {
	mu         sync.Mutex
	hash       Hasher[K]
	cap        uint32
	categories map[uint64]map[K]uint32
}

// Entry is one key/count pair in a category snapshot.
type Entry[K comparable] struct {
	Key   K
	Count uint32
}

// New creates a profiler. Counts saturate at countCap; zero selects
// DefaultCountCap.
func New[K comparable](countCap uint32, hash Hasher[K]) *Profiler[K] {
	if countCap == 0 {
		countCap = DefaultCountCap
	}
	return &Profiler[K]{
		hash:       hash,
		cap:        countCap,
		categories: make(map[uint64]map[K]uint32),
	}
}

// Add records one use of key under category, saturating at the count cap.
func (p *Profiler[K]) Add(category uint64, key K) {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys := p.categories[category]
	if keys == nil {
		keys = make(map[K]uint32)
		p.categories[category] = keys
	}
	if c := keys[key]; c < p.cap {
		keys[key] = c + 1
	}
}

// Count returns the recorded count for key under category.
func (p *Profiler[K]) Count(category uint64, key K) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.categories[category][key]
}

// Len returns the number of distinct keys known for category.
func (p *Profiler[K]) Len(category uint64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.categories[category])
}

// ForEachMostUsed visits every key known for category that skip does not
// filter out. When mostUsedFirst is set, keys are visited by descending
// count (ties broken by key hash); otherwise by ascending count.
//
// visit receives the running index, starting at zero, and the total number
// of keys that survived the skip filter, so callers can report progress.
// skip may be nil. The traversal runs over a snapshot: visit and skip may
// touch the profiler without deadlocking.
func (p *Profiler[K]) ForEachMostUsed(category uint64, visit func(key K, index, total int), skip func(K) bool, mostUsedFirst bool) {
	entries := p.Snapshot(category)

	if skip != nil {
		kept := entries[:0]
		for _, e := range entries {
			if !skip(e.Key) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			if mostUsedFirst {
				return entries[i].Count > entries[j].Count
			}
			return entries[i].Count < entries[j].Count
		}
		return p.hash(entries[i].Key) < p.hash(entries[j].Key)
	})

	total := len(entries)
	for i, e := range entries {
		visit(e.Key, i, total)
	}
}

// Snapshot returns the current entries for category in unspecified order.
func (p *Profiler[K]) Snapshot(category uint64) []Entry[K] {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys := p.categories[category]
	entries := make([]Entry[K], 0, len(keys))
	for k, c := range keys {
		entries = append(entries, Entry[K]{Key: k, Count: c})
	}
	return entries
}

// Restore merges persisted entries into category, keeping the larger count
// when a key is already known. Counts above the cap are clamped.
func (p *Profiler[K]) Restore(category uint64, entries []Entry[K]) {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys := p.categories[category]
	if keys == nil {
		keys = make(map[K]uint32, len(entries))
		p.categories[category] = keys
	}
	for _, e := range entries {
		c := e.Count
		if c > p.cap {
			c = p.cap
		}
		if c > keys[e.Key] {
			keys[e.Key] = c
		}
	}
}

// Reset discards every count in every category.
func (p *Profiler[K]) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.categories = make(map[uint64]map[K]uint32)
}
