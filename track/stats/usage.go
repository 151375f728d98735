package stats

// Usage aggregates one category's two memory dimensions: direct malloc
// allocations and arena-owned bytes. The two are recorded independently;
// Snapshot.MakeAdjustment reconciles the chunk-pool double count when a
// consistent view is needed.
type Usage struct {
	malloc Counter
	arena  Counter
}

// RecordMalloc accounts one tracked allocation of size bytes.
func (u *Usage) RecordMalloc(size uint64) { u.malloc.Allocate(size) }

// RecordFree accounts the release of one tracked allocation of size bytes.
func (u *Usage) RecordFree(size uint64) { u.malloc.Deallocate(size) }

// RecordNewArena accounts the birth of an arena owned by this category.
// Arena byte ownership is tracked separately via RecordArenaSizeChange.
func (u *Usage) RecordNewArena() { u.arena.Allocate(0) }

// RecordArenaFree accounts the death of an arena owned by this category.
func (u *Usage) RecordArenaFree() { u.arena.Deallocate(0) }

// RecordArenaSizeChange moves this category's arena footprint by delta bytes.
func (u *Usage) RecordArenaSizeChange(delta int64) { u.arena.Resize(delta) }

// MallocCount returns the number of live malloc allocations.
func (u *Usage) MallocCount() uint64 { return u.malloc.Count() }

// MallocSize returns the live malloc bytes.
func (u *Usage) MallocSize() uint64 { return u.malloc.Size() }

// ArenaCount returns the number of live arenas.
func (u *Usage) ArenaCount() uint64 { return u.arena.Count() }

// ArenaSize returns the bytes currently owned by this category's arenas.
func (u *Usage) ArenaSize() uint64 { return u.arena.Size() }

// Malloc exposes the malloc counter, for peak reads.
func (u *Usage) Malloc() *Counter { return &u.malloc }

// Arena exposes the arena counter, for peak reads.
func (u *Usage) Arena() *Counter { return &u.arena }

func (u *Usage) copyFrom(src *Usage) {
	u.malloc.copyFrom(&src.malloc)
	u.arena.copyFrom(&src.arena)
}
