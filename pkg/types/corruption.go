package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// -----------------------------------------------------------------------------
// Corruption Reports - Fatal Diagnostic Path
// -----------------------------------------------------------------------------
//
// A corruption report is produced when a tracked block fails one of the
// integrity checks run at free time (or on an explicit diagnostic check).
// Reports travel exactly one way: from the check site to the configured
// Sink, which terminates the process. They are never returned as errors;
// once allocator-adjacent metadata is known to be overwritten, continuing
// would risk further damage.

// CorruptionKind classifies which integrity check a block failed.
// The order mirrors the order in which the checks run.
type CorruptionKind uint8

const (
	// CorruptBadAddress: the header address is null or implausibly low.
	CorruptBadAddress CorruptionKind = iota + 1
	// CorruptUnaligned: the header address misses the minimum malloc alignment.
	CorruptUnaligned
	// CorruptHeaderCanary: the primary header canary does not read alive.
	CorruptHeaderCanary
	// CorruptAltCanary: the 32-bit-only alternate canary does not read alive.
	CorruptAltCanary
	// CorruptBadSize: the stored size is at or above the plausibility ceiling.
	CorruptBadSize
	// CorruptFooterCanary: the guard byte after the payload does not read alive.
	CorruptFooterCanary
)

// String returns the diagnostic phrase for the kind.
func (k CorruptionKind) String() string {
	switch k {
	case CorruptBadAddress:
		return "invalid block address"
	case CorruptUnaligned:
		return "block address is unaligned"
	case CorruptHeaderCanary:
		return "header canary broken"
	case CorruptAltCanary:
		return "header alternate canary broken"
	case CorruptBadSize:
		return "header looks invalid (weirdly large block size)"
	case CorruptFooterCanary:
		return "footer canary broken"
	default:
		return fmt.Sprintf("unknown corruption kind %d", uint8(k))
	}
}

// CorruptionReport describes a single failed integrity check with enough
// context to locate the damage in a core dump or allocator log.
//
// Size and Category repeat what the header stored at detection time. For a
// corrupted header these may themselves be garbage; they are reported for
// forensics, never trusted for accounting.
type CorruptionReport struct {
	Kind        CorruptionKind `json:"kind"`
	BlockAddr   uintptr        `json:"block_addr"`
	CorruptAddr uintptr        `json:"corrupt_addr"`
	Size        uint64         `json:"size"`
	Category    string         `json:"category,omitempty"`
	HexDump     string         `json:"hex_dump,omitempty"`
}

// Message returns the one-line fatal message for the report.
func (r *CorruptionReport) Message() string {
	if r.Kind == CorruptFooterCanary {
		return fmt.Sprintf("Block at 0x%X: footer canary broken at 0x%X (buffer overflow?)",
			r.BlockAddr, r.CorruptAddr)
	}
	return fmt.Sprintf("Block at 0x%X: %s", r.BlockAddr, r.Kind)
}

// String implements fmt.Stringer.
func (r *CorruptionReport) String() string { return r.Message() }

// -----------------------------------------------------------------------------
// Output Formatters
// -----------------------------------------------------------------------------

// FormatText returns the full human-readable report: headline, stored block
// state, and the bounded hex dump windows captured at detection time.
func (r *CorruptionReport) FormatText() string {
	var b strings.Builder

	b.WriteString(strings.Repeat("=", 79) + "\n")
	b.WriteString("Memory Corruption Report\n")
	b.WriteString(strings.Repeat("=", 79) + "\n\n")

	b.WriteString(r.Message() + "\n\n")

	b.WriteString(fmt.Sprintf("Block header at: 0x%X\n", r.BlockAddr))
	if r.CorruptAddr != r.BlockAddr {
		b.WriteString(fmt.Sprintf("Corruption at:   0x%X\n", r.CorruptAddr))
	}
	b.WriteString(fmt.Sprintf("Stored size:     %d\n", r.Size))
	if r.Category != "" {
		b.WriteString(fmt.Sprintf("Stored category: %s\n", r.Category))
	}

	if r.HexDump != "" {
		b.WriteString("\nSurrounding memory:\n")
		b.WriteString(r.HexDump)
		if !strings.HasSuffix(r.HexDump, "\n") {
			b.WriteString("\n")
		}
	}

	return b.String()
}

// FormatJSON returns the report as formatted JSON (2-space indentation).
func (r *CorruptionReport) FormatJSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// -----------------------------------------------------------------------------
// Sink
// -----------------------------------------------------------------------------

// Sink receives fatal corruption reports.
//
// FatalCorruption must not return control to the caller: by contract the
// process state is untrusted once a report fires. Production sinks write the
// report and exit; the tracker panics if a sink returns anyway.
type Sink interface {
	FatalCorruption(r *CorruptionReport)
}
