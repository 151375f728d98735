// Package stats implements the accounting model for tracked native memory:
// lock-free counters, per-category usage, the process snapshot, and the
// summary facade the tracker records into.
//
// Everything here is hot-path code. Counters are independently atomic and
// never lock; aggregate reads are best-effort and may observe updates from
// concurrent recorders mid-flight.
package stats

import (
	"errors"
	"fmt"
	"strings"
)

// Category tags the subsystem responsible for an allocation. The set is
// closed and array-indexable: every tracked block stores exactly one tag and
// the snapshot keeps one Usage slot per tag.
type Category uint8

const (
	// CategoryNone marks untagged allocations.
	CategoryNone Category = iota
	// CategoryHeap is managed-heap backing storage.
	CategoryHeap
	// CategoryThread is per-thread bookkeeping.
	CategoryThread
	// CategoryThreadStack is thread stack backing.
	CategoryThreadStack
	// CategoryCode is generated code and code metadata.
	CategoryCode
	// CategoryGC is collector data structures.
	CategoryGC
	// CategoryCompiler is compiler working memory.
	CategoryCompiler
	// CategoryInternal is runtime-internal bookkeeping.
	CategoryInternal
	// CategoryOther is memory that fits no other tag.
	CategoryOther
	// CategorySymbol is interned symbols and names.
	CategorySymbol
	// CategoryTracking is the tracker's own overhead.
	CategoryTracking
	// CategoryChunk is arena chunk backing storage. Arena-owning categories
	// draw their bytes from this pool; see Snapshot.MakeAdjustment.
	CategoryChunk
	// CategoryTest is reserved for tests.
	CategoryTest
	// CategoryLogging is log buffers and sinks.
	CategoryLogging
	// CategoryArguments is command-line and flag storage.
	CategoryArguments
	// CategoryModule is module and loader metadata.
	CategoryModule
	// CategorySynchronizer is locks and wait queues.
	CategorySynchronizer
	// CategorySafepoint is safepoint/stop-the-world support.
	CategorySafepoint
	// CategoryStatistics is performance counters and samplers.
	CategoryStatistics
	// CategoryMetadata is type and class metadata.
	CategoryMetadata

	categoryLimit
)

// NumCategories is the number of defined categories. Snapshots are sized to
// exactly this many Usage slots.
const NumCategories = int(categoryLimit)

var categoryNames = [NumCategories]string{
	CategoryNone:         "None",
	CategoryHeap:         "Heap",
	CategoryThread:       "Thread",
	CategoryThreadStack:  "Thread Stack",
	CategoryCode:         "Code",
	CategoryGC:           "GC",
	CategoryCompiler:     "Compiler",
	CategoryInternal:     "Internal",
	CategoryOther:        "Other",
	CategorySymbol:       "Symbol",
	CategoryTracking:     "Tracking",
	CategoryChunk:        "Chunk",
	CategoryTest:         "Test",
	CategoryLogging:      "Logging",
	CategoryArguments:    "Arguments",
	CategoryModule:       "Module",
	CategorySynchronizer: "Synchronizer",
	CategorySafepoint:    "Safepoint",
	CategoryStatistics:   "Statistics",
	CategoryMetadata:     "Metadata",
}

// ErrUnknownCategory indicates a category name that matches no defined tag.
var ErrUnknownCategory = errors.New("stats: unknown category")

// Valid reports whether c is a defined category.
func (c Category) Valid() bool { return c < categoryLimit }

// String returns the display name for the category.
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
	return categoryNames[c]
}

// ParseCategory resolves a display name to its Category. Matching is
// case-insensitive and ignores spaces and underscores, so "thread_stack"
// and "Thread Stack" both resolve to CategoryThreadStack.
func ParseCategory(s string) (Category, error) {
	key := normalizeCategoryName(s)
	for i, name := range categoryNames {
		if normalizeCategoryName(name) == key {
			return Category(i), nil
		}
	}
	return CategoryNone, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

func normalizeCategoryName(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}
