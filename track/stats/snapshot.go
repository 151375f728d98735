package stats

import "github.com/joshuapare/memtrack/internal/debug"

// Snapshot is the full accounting state: one Usage per category plus a
// standalone counter for the tracking headers' own footprint.
//
// The zero value is ready for use. Aggregate reads sum across categories
// without synchronization; under concurrent recording they are best-effort,
// never transactional.
type Snapshot struct {
	malloc         [NumCategories]Usage
	trackingHeader Counter
}

// ByCategory returns the Usage slot for c.
func (s *Snapshot) ByCategory(c Category) *Usage {
	debug.Assert(c.Valid(), "stats: category %d out of range", uint8(c))
	return &s.malloc[c]
}

// TrackingHeader exposes the header-overhead counter.
func (s *Snapshot) TrackingHeader() *Counter { return &s.trackingHeader }

// TotalCount returns the total number of live tracked allocations.
func (s *Snapshot) TotalCount() uint64 {
	var amount uint64
	for i := range s.malloc {
		amount += s.malloc[i].MallocCount()
	}
	return amount
}

// Total returns the total tracked footprint: live malloc bytes across all
// categories, plus the tracking headers themselves, plus arena-owned bytes.
func (s *Snapshot) Total() uint64 {
	var amount uint64
	for i := range s.malloc {
		amount += s.malloc[i].MallocSize()
	}
	amount += s.trackingHeader.Size() + s.TotalArena()
	return amount
}

// TotalArena returns the bytes owned by arenas across all categories.
func (s *Snapshot) TotalArena() uint64 {
	var amount uint64
	for i := range s.malloc {
		amount += s.malloc[i].ArenaSize()
	}
	return amount
}

// MakeAdjustment corrects the arena/chunk double count: bytes owned by an
// arena were carved out of chunks that are already accounted under
// CategoryChunk, so the arena total is backed out of the chunk counter.
//
// Apply to a copy (CopyTo) before reporting, never twice to live counters.
func (s *Snapshot) MakeAdjustment() {
	arenaSize := s.TotalArena()
	if arenaSize == 0 {
		return
	}
	s.malloc[CategoryChunk].RecordFree(arenaSize)
}

// CopyTo duplicates the snapshot into dst field by field. Concurrent
// recording may land between field copies; the result is a statistical
// snapshot, not a consistent cut.
func (s *Snapshot) CopyTo(dst *Snapshot) {
	for i := range s.malloc {
		dst.malloc[i].copyFrom(&s.malloc[i])
	}
	dst.trackingHeader.copyFrom(&s.trackingHeader)
}
