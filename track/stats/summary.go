package stats

import (
	"sync/atomic"

	"github.com/joshuapare/memtrack/internal/debug"
)

// Summary is the accounting authority a tracker records into. It embeds its
// Snapshot by value: the storage is reserved wherever the Summary lives
// (typically inside a process-wide tracker) and is never heap-allocated by
// the tracker itself, so recording can never recurse into tracking.
//
// Initialize must run exactly once, before any recording, and only when the
// tracking level is summary or detail. Both rules are contract, asserted in
// debug builds.
type Summary struct {
	snap        Snapshot
	initialized atomic.Bool
}

// Initialize arms the summary. Calling twice is a contract violation.
func (s *Summary) Initialize() {
	armed := s.initialized.CompareAndSwap(false, true)
	debug.Assert(armed, "stats: summary initialized twice")
}

// Initialized reports whether Initialize has run.
func (s *Summary) Initialized() bool { return s.initialized.Load() }

// RecordMalloc accounts a tracked allocation of size bytes under c.
func (s *Summary) RecordMalloc(size uint64, c Category) {
	s.assertReady()
	s.snap.ByCategory(c).RecordMalloc(size)
}

// RecordFree accounts the release of a tracked allocation under c.
func (s *Summary) RecordFree(size uint64, c Category) {
	s.assertReady()
	s.snap.ByCategory(c).RecordFree(size)
}

// RecordNewMallocHeader accounts one tracking header of size bytes.
func (s *Summary) RecordNewMallocHeader(size uint64) {
	s.assertReady()
	s.snap.trackingHeader.Allocate(size)
}

// RecordFreeMallocHeader accounts the release of one tracking header.
func (s *Summary) RecordFreeMallocHeader(size uint64) {
	s.assertReady()
	s.snap.trackingHeader.Deallocate(size)
}

// RecordNewArena accounts the birth of an arena owned by c.
func (s *Summary) RecordNewArena(c Category) {
	s.assertReady()
	s.snap.ByCategory(c).RecordNewArena()
}

// RecordArenaFree accounts the death of an arena owned by c.
func (s *Summary) RecordArenaFree(c Category) {
	s.assertReady()
	s.snap.ByCategory(c).RecordArenaFree()
}

// RecordArenaSizeChange moves c's arena footprint by delta bytes.
func (s *Summary) RecordArenaSizeChange(delta int64, c Category) {
	s.assertReady()
	s.snap.ByCategory(c).RecordArenaSizeChange(delta)
}

// Snapshot returns the live snapshot. Callers that need a stable view for
// reporting should CopyTo a local and adjust the copy.
func (s *Summary) Snapshot() *Snapshot { return &s.snap }

func (s *Summary) assertReady() {
	debug.Assert(s.initialized.Load(), "stats: record before summary initialization")
}
