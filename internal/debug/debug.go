// Package debug provides build-tagged assertion support for contract checks
// that are too hot to keep in release builds.
//
// Preconditions on the allocation path (non-nil pointers, legal level
// transitions, single initialization) are checked only when the trackdebug
// build tag is set:
//
//	go test -tags trackdebug ./...
//
// Without the tag, Enabled is a false constant and every Assert call folds
// away to nothing.
package debug

import "fmt"

// Assert panics when cond is false and assertions are compiled in.
func Assert(cond bool, format string, args ...any) {
	if Enabled && !cond {
		panic("assert failed: " + fmt.Sprintf(format, args...))
	}
}
