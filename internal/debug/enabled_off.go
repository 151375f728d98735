//go:build !trackdebug

package debug

// Enabled reports that assertion checks are compiled into this build.
const Enabled = false
