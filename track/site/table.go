package site

import (
	"sync"
	"sync/atomic"

	"github.com/joshuapare/memtrack/internal/debug"
	"github.com/joshuapare/memtrack/track/stats"
)

const (
	// DefaultBuckets is the hash table width. Prime, to spread stacks whose
	// program counters share low bits.
	DefaultBuckets = 4099

	// DefaultMaxSites bounds the total number of registered sites. Refs are
	// 16-bit, and a bounded table keeps the detail overhead predictable; a
	// full table degrades the tracker to summary mode instead of growing.
	DefaultMaxSites = 65535

	// maxChain is the largest 1-based position a Ref can express within one
	// bucket.
	maxChain = 65535
)

// FixedTable is a fixed-width hash table of call sites. Chains only ever
// append, so a site's position — and therefore every Ref handed out for
// it — stays stable for the life of the table.
type FixedTable struct {
	mu       sync.RWMutex
	buckets  []*siteEntry
	sites    int
	maxSites int
	down     atomic.Bool
}

type siteEntry struct {
	site Site
	next *siteEntry
}

// NewFixedTable builds a table with the given hash width and site capacity.
// Both must be positive; buckets must fit a 16-bit Ref.
func NewFixedTable(buckets, maxSites int) *FixedTable {
	debug.Assert(buckets > 0 && buckets <= 1<<16, "site: bucket count %d out of range", buckets)
	debug.Assert(maxSites > 0, "site: max sites must be positive")
	return &FixedTable{
		buckets:  make([]*siteEntry, buckets),
		maxSites: maxSites,
	}
}

// Register records one allocation of size bytes at stack. A site is keyed by
// both its stack and its category; the same frames allocating under two
// categories are two sites. Returns false when the table is shut down, at
// capacity, or the bucket chain outgrew what a Ref can address.
func (t *FixedTable) Register(stack Stack, size uint64, cat stats.Category) (Ref, bool) {
	if t.down.Load() {
		return Ref{}, false
	}
	bucket := int(stack.Hash() % uint64(len(t.buckets)))

	t.mu.Lock()
	defer t.mu.Unlock()

	pos := 1
	var tail *siteEntry
	for e := t.buckets[bucket]; e != nil; e = e.next {
		if e.site.cat == cat && e.site.stack.Equal(stack) {
			e.site.counter.Allocate(size)
			return Ref{Bucket: uint16(bucket), Pos: uint16(pos)}, true
		}
		tail = e
		pos++
	}

	if t.sites >= t.maxSites || pos > maxChain {
		return Ref{}, false
	}
	e := &siteEntry{site: Site{stack: stack, cat: cat}}
	e.site.counter.Allocate(size)
	if tail == nil {
		t.buckets[bucket] = e
	} else {
		tail.next = e
	}
	t.sites++
	return Ref{Bucket: uint16(bucket), Pos: uint16(pos)}, true
}

// Unregister reverses one allocation registered under ref. A zero or stale
// ref reports false and changes nothing.
func (t *FixedTable) Unregister(ref Ref, size uint64) bool {
	s, ok := t.Lookup(ref)
	if !ok {
		return false
	}
	s.counter.Deallocate(size)
	return true
}

// Lookup resolves ref to its site.
func (t *FixedTable) Lookup(ref Ref) (*Site, bool) {
	if ref.IsZero() || int(ref.Bucket) >= len(t.buckets) {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	pos := 1
	for e := t.buckets[int(ref.Bucket)]; e != nil; e = e.next {
		if pos == int(ref.Pos) {
			return &e.site, true
		}
		pos++
	}
	return nil, false
}

// Walk visits every registered site until fn returns false. Sites are
// visited in bucket order; registration during a walk may or may not be
// seen.
func (t *FixedTable) Walk(fn func(*Site) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, head := range t.buckets {
		for e := head; e != nil; e = e.next {
			if !fn(&e.site) {
				return
			}
		}
	}
}

// Sites returns the number of registered sites.
func (t *FixedTable) Sites() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sites
}

// Shutdown stops the table from taking new sites. Lookups and walks keep
// working so in-flight blocks can still be attributed while tracking winds
// down.
func (t *FixedTable) Shutdown() {
	t.down.Store(true)
}
