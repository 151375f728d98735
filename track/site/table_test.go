package site

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memtrack/track/stats"
)

func TestCaptureStack(t *testing.T) {
	s := Capture(0)
	require.Greater(t, s.Depth(), 0, "capture inside a test must see frames")
	require.Len(t, s.Frames(), s.Depth())
}

func TestStackOfEqualityAndHash(t *testing.T) {
	a := StackOf(0x1000, 0x2000, 0x3000)
	b := StackOf(0x1000, 0x2000, 0x3000)
	c := StackOf(0x1000, 0x2000, 0x3001)

	require.True(t, a.Equal(b))
	require.Equal(t, a.Hash(), b.Hash())
	require.False(t, a.Equal(c))
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestStackOfTruncatesAtMaxDepth(t *testing.T) {
	pcs := make([]uintptr, MaxDepth+4)
	for i := range pcs {
		pcs[i] = uintptr(i + 1)
	}
	s := StackOf(pcs...)
	require.Equal(t, MaxDepth, s.Depth())
}

func TestRegisterAggregatesSameSite(t *testing.T) {
	tbl := NewFixedTable(64, 16)
	st := StackOf(0x1000, 0x2000)

	ref1, ok := tbl.Register(st, 100, stats.CategoryHeap)
	require.True(t, ok)
	require.False(t, ref1.IsZero())

	ref2, ok := tbl.Register(st, 50, stats.CategoryHeap)
	require.True(t, ok)
	require.Equal(t, ref1, ref2, "same stack and category must map to one site")

	s, ok := tbl.Lookup(ref1)
	require.True(t, ok)
	assert.Equal(t, uint64(2), s.Counter().Count())
	assert.Equal(t, uint64(150), s.Counter().Size())
	assert.Equal(t, 1, tbl.Sites())
}

func TestRegisterSplitsByCategory(t *testing.T) {
	tbl := NewFixedTable(64, 16)
	st := StackOf(0x1000, 0x2000)

	heapRef, ok := tbl.Register(st, 10, stats.CategoryHeap)
	require.True(t, ok)
	threadRef, ok := tbl.Register(st, 10, stats.CategoryThread)
	require.True(t, ok)

	require.NotEqual(t, heapRef, threadRef)
	require.Equal(t, 2, tbl.Sites())

	s, ok := tbl.Lookup(threadRef)
	require.True(t, ok)
	assert.Equal(t, stats.CategoryThread, s.Category())
}

func TestUnregister(t *testing.T) {
	tbl := NewFixedTable(64, 16)
	st := StackOf(0xAA00)

	ref, ok := tbl.Register(st, 64, stats.CategoryHeap)
	require.True(t, ok)
	_, ok = tbl.Register(st, 64, stats.CategoryHeap)
	require.True(t, ok)

	require.True(t, tbl.Unregister(ref, 64))

	s, ok := tbl.Lookup(ref)
	require.True(t, ok)
	assert.Equal(t, uint64(1), s.Counter().Count())
	assert.Equal(t, uint64(64), s.Counter().Size())
}

func TestUnregisterRejectsBadRefs(t *testing.T) {
	tbl := NewFixedTable(64, 16)
	st := StackOf(0xAA00)
	_, ok := tbl.Register(st, 64, stats.CategoryHeap)
	require.True(t, ok)

	assert.False(t, tbl.Unregister(Ref{}, 64), "zero ref")
	assert.False(t, tbl.Unregister(Ref{Bucket: 9999, Pos: 1}, 64), "bucket out of range")
	assert.False(t, tbl.Unregister(Ref{Bucket: 0, Pos: 42}, 64), "position beyond chain")
}

func TestRegisterFailsAtCapacity(t *testing.T) {
	tbl := NewFixedTable(8, 2)

	_, ok := tbl.Register(StackOf(0x1), 1, stats.CategoryHeap)
	require.True(t, ok)
	_, ok = tbl.Register(StackOf(0x2), 1, stats.CategoryHeap)
	require.True(t, ok)

	ref, ok := tbl.Register(StackOf(0x3), 1, stats.CategoryHeap)
	require.False(t, ok, "table at capacity must refuse new sites")
	require.True(t, ref.IsZero())

	// Existing sites still aggregate.
	_, ok = tbl.Register(StackOf(0x1), 1, stats.CategoryHeap)
	require.True(t, ok)
}

func TestChainPositionsStayStable(t *testing.T) {
	// One bucket forces every site into one chain.
	tbl := NewFixedTable(1, 16)

	first, ok := tbl.Register(StackOf(0x10), 1, stats.CategoryHeap)
	require.True(t, ok)
	second, ok := tbl.Register(StackOf(0x20), 1, stats.CategoryHeap)
	require.True(t, ok)
	third, ok := tbl.Register(StackOf(0x30), 1, stats.CategoryHeap)
	require.True(t, ok)

	require.Equal(t, uint16(1), first.Pos)
	require.Equal(t, uint16(2), second.Pos)
	require.Equal(t, uint16(3), third.Pos)

	again, ok := tbl.Register(StackOf(0x10), 1, stats.CategoryHeap)
	require.True(t, ok)
	require.Equal(t, first, again, "appending sites must not move earlier ones")

	s, ok := tbl.Lookup(second)
	require.True(t, ok)
	assert.True(t, s.Stack().Equal(StackOf(0x20)))
}

func TestShutdownStopsRegistrationOnly(t *testing.T) {
	tbl := NewFixedTable(64, 16)
	ref, ok := tbl.Register(StackOf(0x1000), 32, stats.CategoryHeap)
	require.True(t, ok)

	tbl.Shutdown()

	_, ok = tbl.Register(StackOf(0x2000), 32, stats.CategoryHeap)
	require.False(t, ok)

	s, ok := tbl.Lookup(ref)
	require.True(t, ok, "existing refs must keep resolving after shutdown")
	assert.Equal(t, uint64(32), s.Counter().Size())
}

func TestWalkVisitsEverySite(t *testing.T) {
	tbl := NewFixedTable(64, 16)
	for i := 1; i <= 3; i++ {
		_, ok := tbl.Register(StackOf(uintptr(i*0x100)), uint64(i), stats.CategoryHeap)
		require.True(t, ok)
	}

	var visited int
	tbl.Walk(func(*Site) bool {
		visited++
		return true
	})
	assert.Equal(t, 3, visited)

	visited = 0
	tbl.Walk(func(*Site) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited, "walk must stop when fn returns false")
}

func TestConcurrentRegister(t *testing.T) {
	tbl := NewFixedTable(DefaultBuckets, DefaultMaxSites)
	st := StackOf(0xBEEF00)

	const workers = 8
	const rounds = 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				_, ok := tbl.Register(st, 16, stats.CategoryHeap)
				if !ok {
					t.Error("register failed below capacity")
					return
				}
			}
		}()
	}
	wg.Wait()

	ref, ok := tbl.Register(st, 0, stats.CategoryHeap)
	require.True(t, ok)
	s, ok := tbl.Lookup(ref)
	require.True(t, ok)
	assert.Equal(t, uint64(workers*rounds+1), s.Counter().Count())
	assert.Equal(t, 1, tbl.Sites())
}
