package layout

// AlignUp returns n rounded up to the next multiple of align, which must be
// a power of two.
//
// Example: AlignUp(13, 8) == 16.
func AlignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

// IsAligned reports whether addr is a multiple of align, which must be a
// power of two.
func IsAligned(addr uintptr, align uintptr) bool {
	return addr&(align-1) == 0
}
