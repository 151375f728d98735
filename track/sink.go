package track

import (
	"fmt"
	"os"

	"github.com/joshuapare/memtrack/pkg/types"
)

// ExitSink is the default corruption sink: it writes the full report to
// stderr and terminates the process. Corruption of tracker bookkeeping means
// the heap itself is suspect, so continuing is worse than dying loudly.
type ExitSink struct {
	// Code is the exit status to die with. Zero means DefaultExitCode.
	Code int
}

// DefaultExitCode is the status ExitSink exits with when none is configured.
const DefaultExitCode = 2

func (s ExitSink) FatalCorruption(r *types.CorruptionReport) {
	fmt.Fprint(os.Stderr, r.FormatText())
	code := s.Code
	if code == 0 {
		code = DefaultExitCode
	}
	os.Exit(code)
}

var _ types.Sink = ExitSink{}
