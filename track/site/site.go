// Package site records allocation call sites for detail-level tracking.
//
// A call site is a fixed-depth program-counter stack plus the category it
// allocates under. Sites live in a Table; tracked blocks address them with a
// compact Ref small enough to ride inside the allocation header.
package site

import (
	"runtime"

	"github.com/joshuapare/memtrack/track/stats"
)

// MaxDepth is the number of frames kept per call site.
const MaxDepth = 8

// Stack is a fixed-depth call stack captured at an allocation site.
type Stack struct {
	pcs   [MaxDepth]uintptr
	depth int
}

// Capture records the current call stack. skip counts frames to omit beyond
// Capture itself; 0 starts at Capture's caller.
func Capture(skip int) Stack {
	var s Stack
	s.depth = runtime.Callers(skip+2, s.pcs[:])
	return s
}

// StackOf builds a Stack from explicit program counters, most recent first.
// Frames beyond MaxDepth are dropped.
func StackOf(pcs ...uintptr) Stack {
	var s Stack
	s.depth = copy(s.pcs[:], pcs)
	return s
}

// FNV-1a over the captured program counters, one word at a time.
const (
	fnvOffset = 14695981039346656037
	fnvPrime  = 1099511628211
)

// Hash returns a stable hash of the stack, used to pick a table bucket.
func (s Stack) Hash() uint64 {
	h := uint64(fnvOffset)
	for _, pc := range s.pcs[:s.depth] {
		h ^= uint64(pc)
		h *= fnvPrime
	}
	return h
}

// Equal reports whether two stacks captured the same frames.
func (s Stack) Equal(o Stack) bool {
	if s.depth != o.depth {
		return false
	}
	for i := 0; i < s.depth; i++ {
		if s.pcs[i] != o.pcs[i] {
			return false
		}
	}
	return true
}

// Depth returns the number of captured frames.
func (s Stack) Depth() int {
	return s.depth
}

// Frames returns the captured program counters, most recent first. The
// result is a copy.
func (s Stack) Frames() []uintptr {
	out := make([]uintptr, s.depth)
	copy(out, s.pcs[:s.depth])
	return out
}

// Ref locates a registered call site within a Table. Pos is 1-based within
// its bucket chain, so the zero Ref always means "no site recorded" and can
// sit in a zeroed header without aliasing a real site.
type Ref struct {
	Bucket uint16
	Pos    uint16
}

// IsZero reports whether the Ref points at no site.
func (r Ref) IsZero() bool {
	return r.Pos == 0
}

// Site is one registered call site with its live accounting.
type Site struct {
	stack   Stack
	cat     stats.Category
	counter stats.Counter
}

// Stack returns the frames the site was registered under.
func (s *Site) Stack() Stack {
	return s.stack
}

// Category returns the category the site allocates under.
func (s *Site) Category() stats.Category {
	return s.cat
}

// Counter exposes the site's live allocation counter.
func (s *Site) Counter() *stats.Counter {
	return &s.counter
}

// Table stores call sites for detail tracking. Implementations must be safe
// for concurrent use.
type Table interface {
	// Register records one allocation of size bytes at stack. It returns
	// false when the table cannot take the site; the caller is expected to
	// give up on per-site tracking, not to retry.
	Register(stack Stack, size uint64, cat stats.Category) (Ref, bool)

	// Unregister reverses one allocation previously registered under ref.
	// It reports whether ref resolved to a live site.
	Unregister(ref Ref, size uint64) bool

	// Lookup resolves ref to its site. The site stays valid for the life of
	// the table.
	Lookup(ref Ref) (*Site, bool)

	// Walk visits every registered site until fn returns false.
	Walk(fn func(*Site) bool)

	// Shutdown stops the table from taking new sites. Existing refs keep
	// resolving so in-flight blocks can still be attributed.
	Shutdown()
}
