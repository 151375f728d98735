//go:build !unix

package osmem

import "fmt"

// Map returns a heap-backed region of at least n bytes, rounded up to whole
// pages. Heap regions carry no alignment guarantee beyond the runtime's; the
// allocator skews its first block to compensate.
func Map(n int) (*Region, error) {
	if n <= 0 {
		return nil, fmt.Errorf("osmem: map size %d", n)
	}
	return &Region{data: make([]byte, roundToPages(n))}, nil
}

// Unmap drops the region's buffer so the runtime can reclaim it. Safe to
// call twice.
func (r *Region) Unmap() error {
	r.data = nil
	return nil
}
