package layout

import (
	"fmt"
	"strings"

	"github.com/joshuapare/memtrack/pkg/types"
)

// AbortFunc receives the report for a failed integrity check. It must not
// return: the caller cannot continue over corrupt bookkeeping, so CheckBlock
// panics if it does.
type AbortFunc func(*types.CorruptionReport)

// CheckBlock runs the integrity checks over the header preceding user and
// returns the validated full-block view. The checks run in a fixed order so
// the report names the first broken invariant rather than a knock-on effect:
//
//	1. header address plausible (not null or near-null)
//	2. header address aligned
//	3. header canary alive
//	4. alternate canary alive (32-bit targets only)
//	5. size field plausible
//	6. footer canary alive
//
// The size field is untrusted until check 5 passes, so the full block view
// and the footer check are only constructed afterwards. Nothing is
// dereferenced before checks 1 and 2 pass.
func CheckBlock(user []byte, abort AbortFunc) Block {
	h := HeaderOf(user)
	addr := h.Addr()

	if addr < MinValidAddress {
		// The address itself is the problem. Do not touch the memory, not
		// even for a hex dump.
		fail(abort, &types.CorruptionReport{
			Kind:        types.CorruptBadAddress,
			BlockAddr:   addr,
			CorruptAddr: addr,
		})
	}
	if !IsAligned(addr, AddressAlignment) {
		fail(abort, headerReport(h, types.CorruptUnaligned, addr))
	}
	if h.canary() != HeaderCanaryLife {
		fail(abort, headerReport(h, types.CorruptHeaderCanary, addr+canaryOffset))
	}
	if altCanaryPresent && h.altCanary() != AltCanaryLife {
		fail(abort, headerReport(h, types.CorruptAltCanary, addr+altCanaryOffset))
	}
	size := h.Size()
	if size >= MaxReasonableSize {
		fail(abort, headerReport(h, types.CorruptBadSize, addr+sizeOffset))
	}

	b := BlockOf(user, size)
	if b.footer() != FooterCanaryLife {
		fail(abort, blockReport(b, types.CorruptFooterCanary, len(b)-1))
	}
	return b
}

func fail(abort AbortFunc, r *types.CorruptionReport) {
	abort(r)
	panic("layout: abort handler returned from corruption report")
}

// headerReport builds a report for a failure found before the size field can
// be trusted. The dump covers only the header bytes.
func headerReport(h Header, kind types.CorruptionKind, corrupt uintptr) *types.CorruptionReport {
	return &types.CorruptionReport{
		Kind:        kind,
		BlockAddr:   h.Addr(),
		CorruptAddr: corrupt,
		Size:        h.Size(),
		Category:    h.Category().String(),
		HexDump:     hexDump(h, h.Addr(), -1),
	}
}

// blockReport builds a report for a failure found with a trusted size field.
// corrupt is the byte index of the corruption within the block.
func blockReport(b Block, kind types.CorruptionKind, corrupt int) *types.CorruptionReport {
	return &types.CorruptionReport{
		Kind:        kind,
		BlockAddr:   b.Addr(),
		CorruptAddr: b.Addr() + uintptr(corrupt),
		Size:        b.Size(),
		Category:    b.Category().String(),
		HexDump:     hexDump(b, b.Addr(), corrupt),
	}
}

// hexDump renders up to 64 bytes from the start of data and, when the
// corrupt index lies beyond that window, a second window of up to 96 bytes
// around it. The windows never leave data, so the dump never touches memory
// outside the block being reported.
func hexDump(data []byte, base uintptr, corrupt int) string {
	var sb strings.Builder

	primary := len(data)
	if primary > 64 {
		primary = 64
	}
	dumpLines(&sb, data[:primary], base)

	if corrupt >= primary {
		from := (corrupt &^ 7) - 8
		if from < primary {
			from = primary
		}
		to := from + 96
		if to > len(data) {
			to = len(data)
		}
		if from > primary {
			sb.WriteString("...\n")
		}
		dumpLines(&sb, data[from:to], base+uintptr(from))
	}
	return sb.String()
}

func dumpLines(sb *strings.Builder, data []byte, addr uintptr) {
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(sb, "0x%016x: % x\n", uint64(addr)+uint64(i), data[i:end])
	}
}
