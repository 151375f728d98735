package layout

import (
	"encoding/binary"
	"unsafe"

	"github.com/joshuapare/memtrack/internal/debug"
	"github.com/joshuapare/memtrack/track/stats"
)

// Header fields are little-endian at fixed offsets, so field access is plain
// binary.LittleEndian at the offset constants. Every view is HeaderSize bytes
// by construction.
var le = binary.LittleEndian

// Header is a view over the 16 header bytes of a tracked block.
type Header []byte

// Block is a view over a complete tracked block: header, payload and footer.
type Block []byte

// view is the module's only raw-memory operation: it rebuilds a byte slice
// of length n starting off bytes from p. Every caller derives its window
// from a live payload slice handed out by Place, so the window stays inside
// one tracked block and its bookkeeping bytes.
func view(p unsafe.Pointer, off, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Add(p, off)), n)
}

// HeaderOf returns the header view sitting immediately before a user payload
// slice. The payload may have length zero; it always has capacity, because
// the footer follows it.
func HeaderOf(user []byte) Header {
	return Header(view(unsafe.Pointer(unsafe.SliceData(user)), -HeaderSize, HeaderSize))
}

// BlockOf returns the full block view for a user payload whose size is
// known or already validated.
func BlockOf(user []byte, size uint64) Block {
	return Block(view(unsafe.Pointer(unsafe.SliceData(user)), -HeaderSize, int(BlockSize(size))))
}

// Place writes a live header and footer for a size-byte payload into block,
// which must hold at least BlockSize(size) bytes, and returns the block view
// together with the user payload slice. The payload slice is capacity-capped
// so appends cannot reach the footer.
func Place(block []byte, size uint64, cat stats.Category, bucket, pos uint16) (Block, []byte) {
	need := BlockSize(size)
	debug.Assert(uint64(len(block)) >= need, "layout: block of %d bytes cannot hold payload of %d", len(block), size)
	debug.Assert(size < MaxReasonableSize, "layout: implausible payload size %d", size)
	debug.Assert(cat.Valid(), "layout: invalid category %d", cat)

	b := Block(block[:need])
	putSizeField(b, size)
	le.PutUint16(b[bucketOffset:], bucket)
	le.PutUint16(b[posOffset:], pos)
	b[categoryOffset] = byte(cat)
	b[reservedOffset] = 0
	le.PutUint16(b[canaryOffset:], HeaderCanaryLife)
	if altCanaryPresent {
		le.PutUint32(b[altCanaryOffset:], AltCanaryLife)
	}
	b[len(b)-1] = FooterCanaryLife

	debug.Assert(IsAligned(b.Addr()+HeaderSize, MinAlignment), "layout: misaligned user pointer for block at 0x%x", b.Addr())
	return b, b.User()
}

// BaseAddr returns the address of a slice's first byte. The allocator keys
// its block bookkeeping on it.
func BaseAddr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

// Addr returns the address of the first header byte.
func (h Header) Addr() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(h)))
}

// Size returns the stored payload size. It is untrusted until the block has
// passed CheckBlock.
func (h Header) Size() uint64 {
	return readSizeField(h)
}

// Category returns the stored allocation category.
func (h Header) Category() stats.Category {
	return stats.Category(h[categoryOffset])
}

// SiteRef returns the stored call-site reference. Both indices are zero when
// no call site was recorded.
func (h Header) SiteRef() (bucket, pos uint16) {
	return le.Uint16(h[bucketOffset:]), le.Uint16(h[posOffset:])
}

func (h Header) canary() uint16 {
	return le.Uint16(h[canaryOffset:])
}

func (h Header) altCanary() uint32 {
	return le.Uint32(h[altCanaryOffset:])
}

// Addr returns the address of the block base, which is also the header
// address.
func (b Block) Addr() uintptr {
	return Header(b[:HeaderSize]).Addr()
}

// Size returns the stored payload size.
func (b Block) Size() uint64 {
	return readSizeField(b)
}

// Category returns the stored allocation category.
func (b Block) Category() stats.Category {
	return stats.Category(b[categoryOffset])
}

// SiteRef returns the stored call-site reference.
func (b Block) SiteRef() (bucket, pos uint16) {
	return le.Uint16(b[bucketOffset:]), le.Uint16(b[posOffset:])
}

// User returns the payload portion of the block. Capacity is capped before
// the footer so appends reallocate instead of reaching the guard. A
// zero-size payload keeps one byte of capacity (the guard itself) so its
// base address stays recoverable; any write through it trips the footer
// check at free time.
func (b Block) User() []byte {
	end := len(b) - FooterSize
	if end == HeaderSize {
		return b[HeaderSize:HeaderSize : HeaderSize+1]
	}
	return b[HeaderSize:end:end]
}

func (b Block) footer() byte {
	return b[len(b)-1]
}

// MarkDead scrubs every canary to its dead pattern. A block is marked dead
// only after its accounting has been reversed; a second free of the same
// pointer then fails the canary check instead of double-counting.
func (b Block) MarkDead() {
	le.PutUint16(b[canaryOffset:], HeaderCanaryDead)
	if altCanaryPresent {
		le.PutUint32(b[altCanaryOffset:], AltCanaryDead)
	}
	b[len(b)-1] = FooterCanaryDead
}
