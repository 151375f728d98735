package alloc

import (
	"errors"
	"sync"
	"testing"

	"github.com/joshuapare/memtrack/internal/layout"
	"github.com/joshuapare/memtrack/pkg/types"
	"github.com/joshuapare/memtrack/track"
	"github.com/joshuapare/memtrack/track/site"
	"github.com/joshuapare/memtrack/track/stats"
)

// trapSink records the corruption report and unwinds the stack so a test
// can assert on a fatal instead of exiting the process.
type trapSink struct {
	report *types.CorruptionReport
}

func (s *trapSink) FatalCorruption(r *types.CorruptionReport) {
	s.report = r
	panic("corruption sink")
}

func newTestAllocator(t *testing.T, level track.Level) (*Allocator, *trapSink) {
	t.Helper()
	sink := &trapSink{}
	tr := track.New(track.Config{Level: level, Sink: sink})
	a := New(tr, DefaultConfig)
	t.Cleanup(func() { _ = a.Close() })
	return a, sink
}

func Test_Alloc_MallocFree(t *testing.T) {
	a, _ := newTestAllocator(t, track.LevelSummary)

	user, err := a.Malloc(100, stats.CategoryHeap)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	if len(user) != 100 {
		t.Fatalf("Malloc returned %d bytes, want 100", len(user))
	}

	snap := a.Tracker().Summary().Snapshot()
	heap := snap.ByCategory(stats.CategoryHeap)
	if heap.MallocCount() != 1 || heap.MallocSize() != 100 {
		t.Fatalf("heap usage = %d blocks / %d bytes, want 1/100",
			heap.MallocCount(), heap.MallocSize())
	}
	if hdr := snap.TrackingHeader(); hdr.Count() != 1 || hdr.Size() != track.HeaderSize {
		t.Fatalf("header overhead = %d/%d, want 1/%d", hdr.Count(), hdr.Size(), track.HeaderSize)
	}

	if err := a.Free(user); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if heap.MallocCount() != 0 || heap.MallocSize() != 0 {
		t.Fatalf("heap usage after free = %d blocks / %d bytes, want 0/0",
			heap.MallocCount(), heap.MallocSize())
	}
	if hdr := snap.TrackingHeader(); hdr.Count() != 0 || hdr.Size() != 0 {
		t.Fatalf("header overhead after free = %d/%d, want 0/0", hdr.Count(), hdr.Size())
	}
}

func Test_Alloc_FreeListReuse(t *testing.T) {
	a, _ := newTestAllocator(t, track.LevelSummary)

	u1, err := a.Malloc(64, stats.CategoryInternal)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	for i := range u1 {
		u1[i] = 0xAB
	}
	base := &u1[0]
	if err := a.Free(u1); err != nil {
		t.Fatalf("Free: %v", err)
	}

	u2, err := a.Malloc(64, stats.CategoryInternal)
	if err != nil {
		t.Fatalf("second Malloc: %v", err)
	}
	if &u2[0] != base {
		t.Fatal("expected the freed block to be recycled at the same address")
	}
	for i, b := range u2 {
		if b != 0 {
			t.Fatalf("recycled byte %d not zeroed: 0x%02x", i, b)
		}
	}
	if got := a.GetStats().FreeListHits; got != 1 {
		t.Fatalf("FreeListHits = %d, want 1", got)
	}
}

func Test_Alloc_ZeroSize(t *testing.T) {
	a, _ := newTestAllocator(t, track.LevelSummary)

	user, err := a.Malloc(0, stats.CategoryInternal)
	if err != nil {
		t.Fatalf("Malloc(0): %v", err)
	}
	if len(user) != 0 {
		t.Fatalf("Malloc(0) returned %d bytes", len(user))
	}

	internal := a.Tracker().Summary().Snapshot().ByCategory(stats.CategoryInternal)
	if internal.MallocCount() != 1 || internal.MallocSize() != 0 {
		t.Fatalf("usage = %d blocks / %d bytes, want 1/0",
			internal.MallocCount(), internal.MallocSize())
	}
	if err := a.Free(user); err != nil {
		t.Fatalf("Free of zero-size block: %v", err)
	}
	if internal.MallocCount() != 0 {
		t.Fatalf("count after free = %d, want 0", internal.MallocCount())
	}
}

func Test_Alloc_DedicatedMapping(t *testing.T) {
	a, _ := newTestAllocator(t, track.LevelSummary)

	size := uint64(DefaultConfig.MediumMax) + 1
	user, err := a.Malloc(size, stats.CategoryHeap)
	if err != nil {
		t.Fatalf("Malloc(%d): %v", size, err)
	}
	if uint64(len(user)) != size {
		t.Fatalf("len = %d, want %d", len(user), size)
	}
	if got := a.GetStats().DedicatedMaps; got != 1 {
		t.Fatalf("DedicatedMaps = %d, want 1", got)
	}

	if err := a.Free(user); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if got := a.GetStats().LiveBlocks; got != 0 {
		t.Fatalf("LiveBlocks = %d, want 0", got)
	}
}

func Test_Alloc_TooLarge(t *testing.T) {
	a, _ := newTestAllocator(t, track.LevelSummary)
	if _, err := a.Malloc(MaxAllocSize+1, stats.CategoryHeap); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
}

func Test_Alloc_BadPointer(t *testing.T) {
	a, _ := newTestAllocator(t, track.LevelSummary)

	if err := a.Free(nil); !errors.Is(err, ErrBadPointer) {
		t.Fatalf("Free(nil) = %v, want ErrBadPointer", err)
	}
	foreign := make([]byte, 64)
	if err := a.Free(foreign); !errors.Is(err, ErrBadPointer) {
		t.Fatalf("Free(foreign) = %v, want ErrBadPointer", err)
	}
}

func Test_Alloc_TrackingOff(t *testing.T) {
	a, _ := newTestAllocator(t, track.LevelOff)

	user, err := a.Malloc(40, stats.CategoryHeap)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	if len(user) != 40 {
		t.Fatalf("len = %d, want 40", len(user))
	}

	snap := a.Tracker().Summary().Snapshot()
	if snap.Total() != 0 || snap.TotalCount() != 0 {
		t.Fatalf("tracking off recorded %d bytes / %d blocks", snap.Total(), snap.TotalCount())
	}
	if err := a.Free(user); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if got := a.GetStats(); got.Mallocs != 1 || got.Frees != 1 || got.LiveBlocks != 0 {
		t.Fatalf("allocator stats = %+v", got)
	}
}

func Test_Alloc_DetailRecordsSite(t *testing.T) {
	a, _ := newTestAllocator(t, track.LevelDetail)

	user, err := a.Malloc(128, stats.CategoryCode)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}

	var found *site.Site
	a.Tracker().Sites().Walk(func(s *site.Site) bool {
		if s.Category() == stats.CategoryCode {
			found = s
			return false
		}
		return true
	})
	if found == nil {
		t.Fatal("no call site recorded for the allocation")
	}
	if found.Counter().Count() != 1 || found.Counter().Size() != 128 {
		t.Fatalf("site counter = %d/%d, want 1/128",
			found.Counter().Count(), found.Counter().Size())
	}

	if err := a.Free(user); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if found.Counter().Count() != 0 || found.Counter().Size() != 0 {
		t.Fatalf("site counter after free = %d/%d, want 0/0",
			found.Counter().Count(), found.Counter().Size())
	}
}

func Test_Alloc_OverflowDetectedOnFree(t *testing.T) {
	a, sink := newTestAllocator(t, track.LevelSummary)

	user, err := a.Malloc(32, stats.CategoryHeap)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	// Damage the guard byte the way an overflowing writer would.
	block := layout.BlockOf(user, 32)
	block[len(block)-1] = 0x00

	func() {
		defer func() { _ = recover() }()
		_ = a.Free(user)
		t.Error("Free returned despite a corrupt footer")
	}()

	if sink.report == nil {
		t.Fatal("overflow went undetected")
	}
	if sink.report.Kind != types.CorruptFooterCanary {
		t.Fatalf("kind = %v, want footer canary", sink.report.Kind)
	}
}

func Test_Alloc_CloseRejectsUse(t *testing.T) {
	a, _ := newTestAllocator(t, track.LevelSummary)

	user, err := a.Malloc(50, stats.CategoryHeap)
	if err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Free(user); !errors.Is(err, ErrClosed) {
		t.Fatalf("Free after Close = %v, want ErrClosed", err)
	}
	if _, err := a.Malloc(1, stats.CategoryHeap); !errors.Is(err, ErrClosed) {
		t.Fatalf("Malloc after Close = %v, want ErrClosed", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func Test_Alloc_Concurrent(t *testing.T) {
	a, _ := newTestAllocator(t, track.LevelSummary)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				n := uint64(16 + (seed*31+i)%400)
				user, err := a.Malloc(n, stats.CategoryThread)
				if err != nil {
					t.Errorf("Malloc(%d): %v", n, err)
					return
				}
				if err := a.Free(user); err != nil {
					t.Errorf("Free: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	snap := a.Tracker().Summary().Snapshot()
	if snap.Total() != 0 || snap.TotalCount() != 0 {
		t.Fatalf("leaked accounting: %d bytes / %d blocks", snap.Total(), snap.TotalCount())
	}
	if got := a.GetStats().LiveBlocks; got != 0 {
		t.Fatalf("LiveBlocks = %d, want 0", got)
	}
}
