// Package osmem supplies the raw backing memory for the slab allocator:
// anonymous page-aligned mappings where the platform supports them, plain
// heap buffers elsewhere.
//
// Regions are deliberately dumb: a Region is a fixed span of zeroed bytes
// with a lifetime. Carving blocks out of a region, alignment bookkeeping and
// reuse all belong to the allocator.
package osmem

import "os"

// Region is one contiguous span of backing memory.
type Region struct {
	data   []byte
	mapped bool
}

// Bytes returns the region's memory. Nil after Unmap.
func (r *Region) Bytes() []byte {
	return r.data
}

// Len returns the region size in bytes, zero after Unmap.
func (r *Region) Len() int {
	return len(r.data)
}

// PageSize returns the system page size regions are rounded to.
func PageSize() int {
	return os.Getpagesize()
}

// roundToPages rounds n up to a whole number of pages.
func roundToPages(n int) int {
	page := PageSize()
	return (n + page - 1) / page * page
}
