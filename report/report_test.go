package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memtrack/alloc"
	"github.com/joshuapare/memtrack/track"
	"github.com/joshuapare/memtrack/track/stats"
)

func newTracked(t *testing.T, level track.Level) *alloc.Allocator {
	t.Helper()
	tr := track.New(track.Config{Level: level})
	a := alloc.New(tr, alloc.DefaultConfig)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestCollectSummary(t *testing.T) {
	a := newTracked(t, track.LevelSummary)

	_, err := a.Malloc(1000, stats.CategoryHeap)
	require.NoError(t, err)
	_, err = a.Malloc(500, stats.CategoryCode)
	require.NoError(t, err)

	r, err := Collect(a.Tracker(), 0)
	require.NoError(t, err)

	assert.Equal(t, "summary", r.Level)
	assert.Equal(t, uint64(2), r.TotalBlocks)
	assert.Equal(t, uint64(1500)+2*track.HeaderSize, r.TotalBytes)
	assert.Equal(t, uint64(2*track.HeaderSize), r.HeaderBytes)
	assert.Empty(t, r.Sites)

	require.Len(t, r.Categories, 2)
	assert.Equal(t, "Heap", r.Categories[0].Name, "rows sort by footprint")
	assert.Equal(t, uint64(1000), r.Categories[0].MallocBytes)
	assert.Equal(t, "Code", r.Categories[1].Name)
}

func TestWriteTextGroupsDigits(t *testing.T) {
	a := newTracked(t, track.LevelSummary)
	_, err := a.Malloc(1_048_576, stats.CategoryHeap)
	require.NoError(t, err)

	r, err := Collect(a.Tracker(), 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))
	out := buf.String()

	assert.Contains(t, out, "Native memory tracking: summary")
	assert.Contains(t, out, "1,048,576 bytes")
	assert.Contains(t, out, "Heap")
	assert.NotContains(t, out, "call sites")
}

func TestDetailIncludesCallSites(t *testing.T) {
	a := newTracked(t, track.LevelDetail)
	user, err := a.Malloc(2048, stats.CategoryCompiler)
	require.NoError(t, err)

	r, err := Collect(a.Tracker(), 10)
	require.NoError(t, err)

	require.NotEmpty(t, r.Sites)
	top := r.Sites[0]
	assert.Equal(t, uint64(2048), top.Bytes)
	assert.Equal(t, uint64(1), top.Blocks)
	assert.Equal(t, "Compiler", top.Category)
	assert.NotEmpty(t, top.Frames, "stack should resolve to at least one frame")

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))
	assert.Contains(t, buf.String(), "Top call sites by outstanding bytes:")

	require.NoError(t, a.Free(user))
	r, err = Collect(a.Tracker(), 10)
	require.NoError(t, err)
	assert.Empty(t, r.Sites, "drained sites drop out of the report")
}

func TestCollectFoldsArenaDoubleCount(t *testing.T) {
	a := newTracked(t, track.LevelSummary)
	ar := alloc.NewArena(a, stats.CategoryGC, 1<<10)
	_, err := ar.Alloc(64)
	require.NoError(t, err)

	r, err := Collect(a.Tracker(), 0)
	require.NoError(t, err)

	byName := map[string]CategoryUsage{}
	for _, c := range r.Categories {
		byName[c.Name] = c
	}
	gc, ok := byName["GC"]
	require.True(t, ok)
	assert.Equal(t, uint64(1<<10), gc.ArenaBytes)
	assert.Equal(t, uint64(1), gc.ArenaCount)

	// The chunk backing the arena must not be counted twice: its malloc
	// bytes fold into the owning arena, leaving only the peak behind.
	chunk, ok := byName["Chunk"]
	require.True(t, ok)
	assert.Zero(t, chunk.MallocBytes)
	assert.Equal(t, uint64(1<<10), chunk.PeakBytes)

	assert.Equal(t, r.TotalBytes, gc.ArenaBytes+uint64(track.HeaderSize),
		"total = arena bytes + one chunk header")

	require.NoError(t, ar.Release())
}

func TestTransitionDropsCallSites(t *testing.T) {
	a := newTracked(t, track.LevelDetail)
	_, err := a.Malloc(4096, stats.CategoryHeap)
	require.NoError(t, err)

	r, err := Collect(a.Tracker(), 5)
	require.NoError(t, err)
	require.NotEmpty(t, r.Sites)

	require.NoError(t, a.Tracker().Transition(track.LevelSummary))

	r, err = Collect(a.Tracker(), 5)
	require.NoError(t, err)
	assert.Equal(t, "summary", r.Level)
	assert.Empty(t, r.Sites, "site section is a detail-only view")
	assert.Equal(t, uint64(1), r.TotalBlocks, "summary accounting survives the step down")
}

func TestCollectBelowSummary(t *testing.T) {
	for _, level := range []track.Level{track.LevelOff, track.LevelMinimal} {
		tr := track.New(track.Config{Level: level})
		_, err := Collect(tr, 0)
		assert.True(t, errors.Is(err, ErrDisabled), "level %s: err = %v", level, err)
	}
}

func TestWriteJSON(t *testing.T) {
	a := newTracked(t, track.LevelSummary)
	_, err := a.Malloc(123, stats.CategoryThread)
	require.NoError(t, err)

	r, err := Collect(a.Tracker(), 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.WriteJSON(&buf))

	var back Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, r.Level, back.Level)
	assert.Equal(t, r.TotalBytes, back.TotalBytes)
	require.Len(t, back.Categories, 1)
	assert.Equal(t, "Thread", back.Categories[0].Name)
}
