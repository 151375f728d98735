//go:build amd64 || arm64 || loong64 || mips64 || mips64le || ppc64 || ppc64le || riscv64 || s390x || wasm

package layout

// Header layout on 64-bit targets:
//
//	Offset  Size  Field
//	0x00    8     size       payload bytes, excluding header and footer
//	0x08    2     bucket     call-site bucket index (0 = none)
//	0x0A    2     pos        call-site chain position (0 = none)
//	0x0C    1     category
//	0x0D    1     reserved
//	0x0E    2     canary
const (
	sizeOffset     = 0x00
	bucketOffset   = 0x08
	posOffset      = 0x0A
	categoryOffset = 0x0C
	reservedOffset = 0x0D
	canaryOffset   = 0x0E

	// altCanaryOffset is unused here. The 64-bit size field is wide enough
	// that a stray write almost always trips the plausibility check, so the
	// header spends all 16 bytes on payload metadata.
	altCanaryOffset  = 0x00
	altCanaryPresent = false
)

const (
	// MinAlignment is the block alignment the allocator guarantees on this
	// target. The header is 16 bytes, so the user pointer inherits it.
	MinAlignment = 16

	// MaxReasonableSize caps the size field of a believable block. A stored
	// size at or beyond it is treated as header corruption, not as a real
	// allocation. 256 GiB leaves generous headroom over any single tracked
	// allocation while catching pointer-sized garbage in the field.
	MaxReasonableSize uint64 = 256 << 30
)

func putSizeField(h []byte, v uint64) {
	le.PutUint64(h[sizeOffset:], v)
}

func readSizeField(h []byte) uint64 {
	return le.Uint64(h[sizeOffset:])
}
