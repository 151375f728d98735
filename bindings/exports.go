//go:build unix

// Package main builds libmemtrack, a c-shared library exposing the tracker
// and allocator to native embedders.
//
// The exported surface is deliberately small: initialize once, then
// malloc/free through the library and read totals back out. Pointers handed
// to C point into mmap'd regions owned by the allocator, never into the Go
// heap, so C code may hold them for as long as the block lives.
//
// Build with:
//
//	go build -buildmode=c-shared -o libmemtrack.so .
package main

/*
#include <stdint.h>
#include <stddef.h>

typedef struct {
	uint64_t total_bytes;
	uint64_t total_blocks;
	uint64_t arena_bytes;
	uint64_t header_bytes;
} memtrack_totals;
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/joshuapare/memtrack/alloc"
	"github.com/joshuapare/memtrack/track"
	"github.com/joshuapare/memtrack/track/stats"
)

// Status codes returned by the exported functions.
const (
	statusOK          = 0
	statusAlreadyInit = -1
	statusBadArg      = -2
	statusNotInit     = -3
	statusFailed      = -4
)

var (
	mu        sync.Mutex
	allocator *alloc.Allocator
)

// doInit brings up the process tracker and allocator. Level follows the
// track.Level ordering: 0 off, 1 minimal, 2 summary, 3 detail.
func doInit(level int) int {
	mu.Lock()
	defer mu.Unlock()
	if allocator != nil {
		return statusAlreadyInit
	}
	if level < 0 || !track.Level(level).Valid() {
		return statusBadArg
	}
	tr := track.Initialize(track.Config{Level: track.Level(level)})
	allocator = alloc.New(tr, alloc.DefaultConfig)
	return statusOK
}

func current() *alloc.Allocator {
	mu.Lock()
	defer mu.Unlock()
	return allocator
}

// doMalloc returns the user pointer for a new block, or nil on failure. The
// pointer stays valid until doFree; it addresses mmap'd memory, not the Go
// heap.
func doMalloc(size uint64, category int) unsafe.Pointer {
	a := current()
	if a == nil {
		return nil
	}
	if category < 0 || !stats.Category(category).Valid() {
		return nil
	}
	user, err := a.Malloc(size, stats.Category(category))
	if err != nil {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(user))
}

// doFree releases a block previously returned by doMalloc. Only the base
// address matters; the slice is rebuilt over the caller's pointer.
func doFree(p unsafe.Pointer) int {
	a := current()
	if a == nil {
		return statusNotInit
	}
	if p == nil {
		return statusBadArg
	}
	if err := a.Free(unsafe.Slice((*byte)(p), 1)); err != nil {
		return statusFailed
	}
	return statusOK
}

// doTotals reads the adjusted process totals. Below summary tracking there
// is nothing to read and all totals are zero.
func doTotals() (totalBytes, totalBlocks, arenaBytes, headerBytes uint64) {
	a := current()
	if a == nil {
		return 0, 0, 0, 0
	}
	tr := a.Tracker()
	if tr.Level() < track.LevelSummary {
		return 0, 0, 0, 0
	}
	var snap stats.Snapshot
	tr.Summary().Snapshot().CopyTo(&snap)
	snap.MakeAdjustment()
	return snap.Total(), snap.TotalCount(), snap.TotalArena(), snap.TrackingHeader().Size()
}

// doCategoryBytes reads the live malloc'd bytes attributed to one category.
func doCategoryBytes(category int) uint64 {
	a := current()
	if a == nil || category < 0 || !stats.Category(category).Valid() {
		return 0
	}
	tr := a.Tracker()
	if tr.Level() < track.LevelSummary {
		return 0
	}
	return tr.Summary().Snapshot().ByCategory(stats.Category(category)).MallocSize()
}

// doLevel returns the current tracking level, or -1 before doInit.
func doLevel() int {
	a := current()
	if a == nil {
		return -1
	}
	return int(a.Tracker().Level())
}

//export memtrack_init
func memtrack_init(level C.int) C.int {
	return C.int(doInit(int(level)))
}

//export memtrack_malloc
func memtrack_malloc(size C.size_t, category C.int) unsafe.Pointer {
	return doMalloc(uint64(size), int(category))
}

//export memtrack_free
func memtrack_free(p unsafe.Pointer) C.int {
	return C.int(doFree(p))
}

//export memtrack_totals_get
func memtrack_totals_get(out *C.memtrack_totals) C.int {
	if out == nil {
		return C.int(statusBadArg)
	}
	tb, tc, ab, hb := doTotals()
	out.total_bytes = C.uint64_t(tb)
	out.total_blocks = C.uint64_t(tc)
	out.arena_bytes = C.uint64_t(ab)
	out.header_bytes = C.uint64_t(hb)
	return C.int(statusOK)
}

//export memtrack_category_bytes
func memtrack_category_bytes(category C.int) C.uint64_t {
	return C.uint64_t(doCategoryBytes(int(category)))
}

//export memtrack_level
func memtrack_level() C.int {
	return C.int(doLevel())
}

func main() {}
