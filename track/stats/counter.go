package stats

import (
	"sync/atomic"

	"github.com/joshuapare/memtrack/internal/debug"
)

// Counter tracks one dimension of live memory: the number of live
// allocations, their total size, and the high-water marks of both.
//
// All four fields are independently atomic. There is no joint count/size
// snapshot guarantee; readers may observe the two from different instants.
// Peaks are maintained with an optimistic compare-and-swap loop, so a peak
// may transiently lag the true maximum under contention but always
// converges, and peak >= current holds for any single observed field.
type Counter struct {
	count     atomic.Uint64
	size      atomic.Uint64
	peakCount atomic.Uint64
	peakSize  atomic.Uint64
}

// Allocate records one new allocation of size bytes.
func (c *Counter) Allocate(size uint64) {
	cnt := c.count.Add(1)
	if size > 0 {
		sum := c.size.Add(size)
		c.updatePeakSize(sum)
	}
	c.updatePeakCount(cnt)
}

// Deallocate records the release of one allocation of size bytes. Frees
// never touch peaks: they are high-water marks.
//
// Driving count or size below zero is a logic defect in the caller, not a
// runtime condition; it is asserted, never recovered.
func (c *Counter) Deallocate(size uint64) {
	debug.Assert(c.count.Load() > 0, "stats: deallocate with no live allocations")
	debug.Assert(c.size.Load() >= size, "stats: deallocate of %d exceeds live size %d", size, c.size.Load())
	c.count.Add(^uint64(0))
	if size > 0 {
		c.size.Add(^(size - 1))
	}
}

// Resize applies a signed size adjustment without changing the live count.
// Used for arena growth and shrink, where the region persists but its
// footprint moves.
func (c *Counter) Resize(delta int64) {
	if delta == 0 {
		return
	}
	debug.Assert(delta > 0 || c.size.Load() >= uint64(-delta),
		"stats: resize by %d exceeds live size %d", delta, c.size.Load())
	sum := c.size.Add(uint64(delta))
	if delta > 0 {
		c.updatePeakSize(sum)
	}
}

// updatePeakSize publishes candidate as the new peak size unless a larger
// peak is already visible. A failed swap means another writer moved the
// peak; the reload decides whether that already covers us.
func (c *Counter) updatePeakSize(candidate uint64) {
	for {
		peak := c.peakSize.Load()
		if peak >= candidate {
			return
		}
		if c.peakSize.CompareAndSwap(peak, candidate) {
			return
		}
	}
}

func (c *Counter) updatePeakCount(candidate uint64) {
	for {
		peak := c.peakCount.Load()
		if peak >= candidate {
			return
		}
		if c.peakCount.CompareAndSwap(peak, candidate) {
			return
		}
	}
}

// Count returns the number of live allocations.
func (c *Counter) Count() uint64 { return c.count.Load() }

// Size returns the total live bytes.
func (c *Counter) Size() uint64 { return c.size.Load() }

// PeakCount returns the highest live-allocation count observed.
func (c *Counter) PeakCount() uint64 { return c.peakCount.Load() }

// PeakSize returns the highest live-byte total observed.
func (c *Counter) PeakSize() uint64 { return c.peakSize.Load() }

// copyFrom duplicates src field by field. The copy is not transactional:
// concurrent recording may land between field loads.
func (c *Counter) copyFrom(src *Counter) {
	c.count.Store(src.count.Load())
	c.size.Store(src.size.Load())
	c.peakCount.Store(src.peakCount.Load())
	c.peakSize.Store(src.peakSize.Load())
}
