package alloc

import (
	"fmt"
	"sync"

	"github.com/joshuapare/memtrack/internal/debug"
	"github.com/joshuapare/memtrack/track/stats"
)

// DefaultChunkSize is the arena chunk size when none is given.
const DefaultChunkSize = 4 << 10

// arenaAlign is the bump-allocation granularity inside a chunk.
const arenaAlign = 8

// Arena is a bump allocator for phase-scoped allocations: many small
// Allocs, one Release. Chunks are drawn from the allocator under the chunk
// category while the arena's own footprint is accounted to cat, which is
// the double count the snapshot adjustment folds back out.
//
// All methods are safe for concurrent use.
type Arena struct {
	a         *Allocator
	cat       stats.Category
	chunkSize uint64

	mu     sync.Mutex
	chunks [][]byte // chunk payloads, released together
	cur    []byte   // unused remainder of the newest chunk
	size   uint64   // bytes accounted to the arena
	closed bool
}

// NewArena builds an arena whose footprint is accounted to cat. A zero
// chunkSize selects DefaultChunkSize.
func NewArena(a *Allocator, cat stats.Category, chunkSize uint64) *Arena {
	debug.Assert(a != nil, "alloc: nil allocator")
	debug.Assert(cat.Valid(), "alloc: invalid arena category")
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	a.Tracker().RecordNewArena(cat)
	return &Arena{a: a, cat: cat, chunkSize: chunkSize}
}

// Category returns the category the arena's footprint is accounted to.
func (ar *Arena) Category() stats.Category {
	return ar.cat
}

// Size returns the bytes currently accounted to the arena: the sum of its
// chunk sizes, not the bytes handed out.
func (ar *Arena) Size() uint64 {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	return ar.size
}

// Alloc bumps n bytes out of the current chunk, growing the arena when the
// remainder is too small. The returned slice lives until Release; there is
// no per-allocation free.
func (ar *Arena) Alloc(n uint64) ([]byte, error) {
	if n > MaxAllocSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
	}

	ar.mu.Lock()
	defer ar.mu.Unlock()
	if ar.closed {
		return nil, ErrClosed
	}

	want := (n + arenaAlign - 1) &^ uint64(arenaAlign-1)
	if want == 0 {
		want = arenaAlign
	}
	if uint64(len(ar.cur)) < want {
		if err := ar.grow(want); err != nil {
			return nil, err
		}
	}
	out := ar.cur[0:n:want]
	ar.cur = ar.cur[want:]
	return out, nil
}

// grow adds a chunk big enough for want and makes it current. The tail of
// the previous chunk is abandoned. Called with mu held.
func (ar *Arena) grow(want uint64) error {
	csize := ar.chunkSize
	if want > csize {
		csize = want
	}
	chunk, err := ar.a.Malloc(csize, stats.CategoryChunk)
	if err != nil {
		return err
	}
	ar.chunks = append(ar.chunks, chunk)
	ar.cur = chunk
	ar.size += csize
	ar.a.Tracker().RecordArenaSizeChange(int64(csize), ar.cat)
	return nil
}

// Release frees every chunk and retires the arena from the accounting. The
// byte total unwinds before the container count so a snapshot taken midway
// never sees arena bytes without an arena to own them. Release is
// idempotent; Alloc after Release reports ErrClosed.
func (ar *Arena) Release() error {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	if ar.closed {
		return nil
	}
	ar.closed = true

	var firstErr error
	for _, chunk := range ar.chunks {
		if err := ar.a.Free(chunk); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	ar.chunks = nil
	ar.cur = nil

	tr := ar.a.Tracker()
	if ar.size > 0 {
		tr.RecordArenaSizeChange(-int64(ar.size), ar.cat)
		ar.size = 0
	}
	tr.RecordArenaFree(ar.cat)
	return firstErr
}
