package alloc

import (
	"errors"
	"testing"

	"github.com/joshuapare/memtrack/track"
	"github.com/joshuapare/memtrack/track/stats"
)

func Test_Arena_Accounting(t *testing.T) {
	a, _ := newTestAllocator(t, track.LevelSummary)
	ar := NewArena(a, stats.CategoryCompiler, 1<<10)

	snap := a.Tracker().Summary().Snapshot()
	comp := snap.ByCategory(stats.CategoryCompiler)
	if comp.ArenaCount() != 1 {
		t.Fatalf("arena count = %d, want 1", comp.ArenaCount())
	}
	if comp.ArenaSize() != 0 {
		t.Fatalf("arena size before first Alloc = %d, want 0", comp.ArenaSize())
	}

	buf, err := ar.Alloc(100)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if len(buf) != 100 {
		t.Fatalf("len = %d, want 100", len(buf))
	}
	if comp.ArenaSize() != 1<<10 {
		t.Fatalf("arena size = %d, want one chunk of %d", comp.ArenaSize(), 1<<10)
	}

	// The chunk itself is a malloc under the chunk category.
	chunk := snap.ByCategory(stats.CategoryChunk)
	if chunk.MallocCount() != 1 || chunk.MallocSize() != 1<<10 {
		t.Fatalf("chunk usage = %d blocks / %d bytes, want 1/%d",
			chunk.MallocCount(), chunk.MallocSize(), 1<<10)
	}

	if err := ar.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if comp.ArenaCount() != 0 || comp.ArenaSize() != 0 {
		t.Fatalf("arena usage after release = %d/%d, want 0/0",
			comp.ArenaCount(), comp.ArenaSize())
	}
	if chunk.MallocCount() != 0 || chunk.MallocSize() != 0 {
		t.Fatalf("chunk usage after release = %d/%d, want 0/0",
			chunk.MallocCount(), chunk.MallocSize())
	}
}

func Test_Arena_AdjustedSnapshot(t *testing.T) {
	a, _ := newTestAllocator(t, track.LevelSummary)
	ar := NewArena(a, stats.CategoryGC, 2<<10)
	if _, err := ar.Alloc(64); err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	var adjusted stats.Snapshot
	a.Tracker().Summary().Snapshot().CopyTo(&adjusted)
	adjusted.MakeAdjustment()

	// The chunk bytes now show up only through the owning arena.
	if got := adjusted.ByCategory(stats.CategoryChunk).MallocSize(); got != 0 {
		t.Fatalf("chunk bytes after adjustment = %d, want 0", got)
	}
	if got := adjusted.ByCategory(stats.CategoryGC).ArenaSize(); got != 2<<10 {
		t.Fatalf("gc arena bytes = %d, want %d", got, 2<<10)
	}

	if err := ar.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func Test_Arena_BumpAllocations(t *testing.T) {
	a, _ := newTestAllocator(t, track.LevelSummary)
	ar := NewArena(a, stats.CategoryCompiler, 1<<10)
	defer func() { _ = ar.Release() }()

	b1, err := ar.Alloc(5)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	b2, err := ar.Alloc(5)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	for i := range b1 {
		b1[i] = 0x11
	}
	for i := range b2 {
		b2[i] = 0x22
	}
	for i, b := range b1 {
		if b != 0x11 {
			t.Fatalf("bump allocations overlap at byte %d", i)
		}
	}

	// Both allocations fit in the first chunk; the arena did not grow.
	if got := ar.Size(); got != 1<<10 {
		t.Fatalf("arena size = %d, want %d", got, 1<<10)
	}
}

func Test_Arena_OversizedAllocGetsOwnChunk(t *testing.T) {
	a, _ := newTestAllocator(t, track.LevelSummary)
	ar := NewArena(a, stats.CategoryCompiler, 1<<10)
	defer func() { _ = ar.Release() }()

	buf, err := ar.Alloc(8 << 10)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if len(buf) != 8<<10 {
		t.Fatalf("len = %d, want %d", len(buf), 8<<10)
	}
	if got := ar.Size(); got != 8<<10 {
		t.Fatalf("arena size = %d, want %d", got, 8<<10)
	}
}

func Test_Arena_ReleaseIdempotent(t *testing.T) {
	a, _ := newTestAllocator(t, track.LevelSummary)
	ar := NewArena(a, stats.CategoryTest, 0)
	if _, err := ar.Alloc(10); err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	if err := ar.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := ar.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if _, err := ar.Alloc(1); !errors.Is(err, ErrClosed) {
		t.Fatalf("Alloc after Release = %v, want ErrClosed", err)
	}

	test := a.Tracker().Summary().Snapshot().ByCategory(stats.CategoryTest)
	if test.ArenaCount() != 0 || test.ArenaSize() != 0 {
		t.Fatalf("arena usage = %d/%d, want 0/0", test.ArenaCount(), test.ArenaSize())
	}
}

func Test_Arena_TrackingOff(t *testing.T) {
	a, _ := newTestAllocator(t, track.LevelOff)
	ar := NewArena(a, stats.CategoryCompiler, 1<<10)

	buf, err := ar.Alloc(256)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if len(buf) != 256 {
		t.Fatalf("len = %d, want 256", len(buf))
	}

	snap := a.Tracker().Summary().Snapshot()
	if snap.TotalArena() != 0 || snap.Total() != 0 {
		t.Fatalf("tracking off recorded arena=%d malloc=%d", snap.TotalArena(), snap.Total())
	}
	if err := ar.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}
