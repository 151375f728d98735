//go:build unix

package osmem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Map returns an anonymous private mapping of at least n bytes, rounded up
// to whole pages. The mapping is page-aligned and zero-filled by the kernel.
func Map(n int) (*Region, error) {
	if n <= 0 {
		return nil, fmt.Errorf("osmem: map size %d", n)
	}
	size := roundToPages(n)
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("osmem: map %d bytes: %w", size, err)
	}
	return &Region{data: data, mapped: true}, nil
}

// Unmap releases the region back to the kernel. Safe to call twice.
func (r *Region) Unmap() error {
	if r.data == nil {
		return nil
	}
	data := r.data
	r.data = nil
	if !r.mapped {
		return nil
	}
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("osmem: unmap: %w", err)
	}
	return nil
}
