// Package layout defines the in-memory format of the tracking header that
// precedes every tracked allocation, and the integrity protocol that guards
// it. Higher-level packages orchestrate accounting; this package only knows
// bytes.
//
// A tracked block carries the user payload between a fixed header and a
// single guard byte:
//
//	+--------------------+-------------------------+--------+
//	| header (16 bytes)  | payload (size bytes)    | footer |
//	+--------------------+-------------------------+--------+
//	                     ^ user pointer
//
// Multi-byte header fields are little-endian. The exact field packing
// depends on the word size (see layout_64bit.go / layout_32bit.go); the
// header occupies 16 bytes on both, so a block base aligned to MinAlignment
// yields a user pointer with the same alignment.
//
// The only raw-memory operation in the module is the view constructor in
// header.go; everything else reads and writes through offset accessors over
// ordinary byte slices.
package layout

const (
	// HeaderSize is the size of the tracking header in bytes.
	HeaderSize = 16

	// FooterSize is the size of the trailing guard in bytes.
	FooterSize = 1

	// BlockOverhead is the bookkeeping cost added to every tracked block.
	BlockOverhead = HeaderSize + FooterSize

	// MinValidAddress is the lowest header address accepted by the integrity
	// checks. Anything below it is a null or near-null pointer that slipped
	// into the free path.
	MinValidAddress = 1 << 10

	// AddressAlignment is the bare-minimum alignment every allocator grants,
	// even on 32-bit targets. The integrity checks reject addresses below it;
	// MinAlignment is the stricter per-target guarantee.
	AddressAlignment = 8
)

// Canary patterns. A live block carries the life marks; MarkDead scrubs them
// to the dead marks so stale pointers read as corrupt rather than live.
const (
	HeaderCanaryLife uint16 = 0xE99E
	HeaderCanaryDead uint16 = 0xD99D

	FooterCanaryLife byte = 0xE9
	FooterCanaryDead byte = 0xD9

	AltCanaryLife uint32 = 0xE99EE99E
	AltCanaryDead uint32 = 0xD99DD99D
)

// BlockSize returns the raw block bytes required to carry a payload of
// size bytes.
func BlockSize(size uint64) uint64 {
	return uint64(HeaderSize) + size + uint64(FooterSize)
}
