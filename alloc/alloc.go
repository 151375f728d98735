package alloc

import (
	"fmt"
	"os"
	"sync"

	"github.com/joshuapare/memtrack/internal/debug"
	"github.com/joshuapare/memtrack/internal/layout"
	"github.com/joshuapare/memtrack/internal/osmem"
	"github.com/joshuapare/memtrack/track"
	"github.com/joshuapare/memtrack/track/site"
	"github.com/joshuapare/memtrack/track/stats"
)

// MaxAllocSize caps a single request. Anything larger is refused with
// ErrTooLarge rather than mapped.
const MaxAllocSize = 64 << 30

// blocksPerSlab is how many blocks a fresh slab is carved into.
const blocksPerSlab = 64

// debugAlloc enables verbose allocation logging at build time.
const debugAlloc = false

// logAlloc enables the same logging at run time via the environment.
var logAlloc = os.Getenv("MEMTRACK_LOG_ALLOC") != ""

func debugLogf(format string, args ...interface{}) {
	if debugAlloc || logAlloc {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// AllocatorStats is a point-in-time copy of allocator counters, separate
// from the tracker's accounting. GetStats fills LiveBlocks at read time.
type AllocatorStats struct {
	Mallocs        uint64
	Frees          uint64
	FreeListHits   uint64
	SlabsMapped    uint64
	SlabBytes      uint64
	DedicatedMaps  uint64
	DedicatedBytes uint64
	LiveBlocks     int
}

// liveBlock records what Free needs to recycle one outstanding block.
type liveBlock struct {
	data   []byte        // full raw block, header included when tracked
	class  int           // size class, -1 for dedicated mappings
	region *osmem.Region // backing region for dedicated mappings, else nil
}

// freeList is one size class's stack of recycled blocks.
type freeList struct {
	blocks [][]byte
}

func (l *freeList) push(b []byte) {
	l.blocks = append(l.blocks, b)
}

func (l *freeList) pop() ([]byte, bool) {
	n := len(l.blocks)
	if n == 0 {
		return nil, false
	}
	b := l.blocks[n-1]
	l.blocks[n-1] = nil
	l.blocks = l.blocks[:n-1]
	return b, true
}

// Allocator hands out tracked blocks carved from page-backed slabs. Every
// block is registered with the tracker on the way out and verified on the
// way back in; requests too large for any size class get a dedicated
// mapping of their own instead.
//
// All methods are safe for concurrent use, but Close does not wait for
// in-flight calls: quiesce Malloc and Free before closing.
type Allocator struct {
	tr    *track.Tracker
	table *sizeClassTable

	mu     sync.Mutex
	free   []freeList            // one recycle stack per size class
	slabs  []*osmem.Region       // slab mappings, released on Close
	live   map[uintptr]liveBlock // block base address -> bookkeeping
	stats  AllocatorStats
	closed bool
}

// New builds an allocator on top of tr. A zero config selects DefaultConfig.
func New(tr *track.Tracker, config SizeClassConfig) *Allocator {
	debug.Assert(tr != nil, "alloc: nil tracker")
	if config.SmallMin == 0 {
		config = DefaultConfig
	}
	table := newSizeClassTable(config)
	return &Allocator{
		tr:    tr,
		table: table,
		free:  make([]freeList, table.numClasses()),
		live:  make(map[uintptr]liveBlock),
	}
}

// Tracker returns the tracker this allocator reports to.
func (a *Allocator) Tracker() *track.Tracker {
	return a.tr
}

// Malloc returns a zeroed slice of exactly size bytes accounted to cat. The
// slice must be released with Free on this same allocator. Appending past
// its capacity detaches the result from the tracked block; keep the slice
// returned here for the Free call.
//
// A zero size is legal and returns an empty slice whose base address is
// still unique and freeable.
func (a *Allocator) Malloc(size uint64, cat stats.Category) ([]byte, error) {
	if size > MaxAllocSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}

	level := a.tr.Level()
	need := size
	if level != track.LevelOff {
		need = track.BlockSize(size)
	}

	block, class, region, err := a.acquire(need)
	if err != nil {
		return nil, err
	}

	var user []byte
	if level != track.LevelOff {
		var stack site.Stack
		if level == track.LevelDetail {
			stack = site.Capture(1)
		}
		user = a.tr.RecordMalloc(block, size, cat, stack, level)
	} else {
		user = block[:size]
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, ErrClosed
	}
	a.live[layout.BaseAddr(block)] = liveBlock{data: block, class: class, region: region}
	a.stats.Mallocs++
	a.mu.Unlock()

	debugLogf("[ALLOC] %d bytes (%s) class=%d", size, cat, class)
	return user, nil
}

// Free returns user to the allocator. Pointers this allocator never handed
// out are refused with ErrBadPointer before any accounting moves. Tracked
// blocks then go through the full integrity protocol; a block that fails it
// is reported fatally and never comes back here.
func (a *Allocator) Free(user []byte) error {
	if user == nil {
		return ErrBadPointer
	}

	level := a.tr.Level()
	base := layout.BaseAddr(user)
	if level != track.LevelOff {
		base -= track.HeaderSize
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	lb, ok := a.live[base]
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: 0x%x", ErrBadPointer, base)
	}

	if level != track.LevelOff {
		a.tr.RecordFree(user)
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	delete(a.live, base)
	a.stats.Frees++
	if lb.region != nil {
		a.mu.Unlock()
		debugLogf("[ALLOC] released dedicated %d KiB mapping", lb.region.Len()>>10)
		return lb.region.Unmap()
	}
	a.free[lb.class].push(lb.data)
	a.mu.Unlock()
	return nil
}

// acquire returns a raw block of at least need bytes: its class index and,
// for blocks too large for any class, the dedicated region backing it.
func (a *Allocator) acquire(need uint64) ([]byte, int, *osmem.Region, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, 0, nil, ErrClosed
	}

	class, ok := a.table.classFor(need)
	if !ok {
		return a.acquireDedicated(need)
	}
	if b, ok := a.free[class].pop(); ok {
		clear(b)
		a.stats.FreeListHits++
		return b, class, nil, nil
	}
	if err := a.grow(class); err != nil {
		return nil, 0, nil, err
	}
	b, _ := a.free[class].pop()
	return b, class, nil, nil
}

// acquireDedicated maps one region for a single oversized block. Called
// with mu held.
func (a *Allocator) acquireDedicated(need uint64) ([]byte, int, *osmem.Region, error) {
	// Over-map by one alignment step so the aligned span always fits, and
	// reject sizes that do not survive the int conversion on this platform.
	mapBytes := need + track.MinAlignment
	if uint64(int(mapBytes)) != mapBytes {
		return nil, 0, nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, need)
	}
	region, err := osmem.Map(int(mapBytes))
	if err != nil {
		return nil, 0, nil, fmt.Errorf("%w: %v", ErrMapFail, err)
	}
	a.stats.DedicatedMaps++
	a.stats.DedicatedBytes += uint64(region.Len())
	debugLogf("[GROW] dedicated %d KiB mapping", region.Len()>>10)
	return alignedSpan(region.Bytes(), need), -1, region, nil
}

// grow maps one new slab for class and carves it into the free list.
// Called with mu held.
func (a *Allocator) grow(class int) error {
	bs := uint64(a.table.blockSize(class))
	slabBytes := bs * blocksPerSlab
	if uint64(int(slabBytes)) != slabBytes {
		return fmt.Errorf("%w: slab of %d bytes", ErrTooLarge, slabBytes)
	}
	region, err := osmem.Map(int(slabBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMapFail, err)
	}
	a.slabs = append(a.slabs, region)
	a.stats.SlabsMapped++
	a.stats.SlabBytes += uint64(region.Len())

	raw := region.Bytes()
	off := alignSkew(raw)
	carved := 0
	for ; off+uintptr(bs) <= uintptr(len(raw)); off += uintptr(bs) {
		end := off + uintptr(bs)
		a.free[class].push(raw[off:end:end])
		carved++
	}
	debugLogf("[GROW] class %d: %d KiB slab, %d blocks of %d bytes",
		class, region.Len()>>10, carved, bs)
	return nil
}

// alignSkew returns the offset of the first aligned byte in raw. Page
// mappings start aligned; the heap fallback may not.
func alignSkew(raw []byte) uintptr {
	rem := layout.BaseAddr(raw) % track.MinAlignment
	if rem == 0 {
		return 0
	}
	return track.MinAlignment - rem
}

// alignedSpan returns the first need bytes of raw at the required alignment.
func alignedSpan(raw []byte, need uint64) []byte {
	off := alignSkew(raw)
	end := off + uintptr(need)
	return raw[off:end:end]
}

// GetStats returns a copy of the allocator counters.
func (a *Allocator) GetStats() AllocatorStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats
	s.LiveBlocks = len(a.live)
	return s
}

// Close releases every slab and dedicated region. Outstanding blocks become
// invalid immediately; freeing them afterwards reports ErrClosed.
func (a *Allocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	var firstErr error
	for _, r := range a.slabs {
		if err := r.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, lb := range a.live {
		if lb.region == nil {
			continue
		}
		if err := lb.region.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.slabs = nil
	a.live = nil
	a.free = nil
	return firstErr
}
