//go:build 386 || arm || mips || mipsle

package layout

// Header layout on 32-bit targets. The size field shrinks to 32 bits and the
// reclaimed word holds a second canary, so the header stays 16 bytes and a
// stray write into the low half of the header is still detectable:
//
//	Offset  Size  Field
//	0x00    4     alternate canary
//	0x04    4     size       payload bytes, excluding header and footer
//	0x08    2     bucket     call-site bucket index (0 = none)
//	0x0A    2     pos        call-site chain position (0 = none)
//	0x0C    1     category
//	0x0D    1     reserved
//	0x0E    2     canary
const (
	altCanaryOffset = 0x00
	sizeOffset      = 0x04
	bucketOffset    = 0x08
	posOffset       = 0x0A
	categoryOffset  = 0x0C
	reservedOffset  = 0x0D
	canaryOffset    = 0x0E

	altCanaryPresent = true
)

const (
	// MinAlignment is the block alignment the allocator guarantees on this
	// target.
	MinAlignment = 8

	// MaxReasonableSize caps the size field of a believable block on a
	// 32-bit address space.
	MaxReasonableSize uint64 = 3500 << 20
)

func putSizeField(h []byte, v uint64) {
	le.PutUint32(h[sizeOffset:], uint32(v))
}

func readSizeField(h []byte) uint64 {
	return uint64(le.Uint32(h[sizeOffset:]))
}
