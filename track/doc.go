// Package track instruments raw heap allocations with per-block metadata
// headers, per-category statistics and corruption detection.
//
// A Tracker sits between an allocator and its callers. On malloc it places a
// tracking header and a footer guard around the payload, registers the call
// site when detail tracking is active, and updates the process summary. On
// free it verifies the block's integrity, reverses the accounting, scrubs
// the header canaries to their dead patterns and hands back the raw block
// for the allocator to reclaim.
//
// How much of that runs is governed by the tracking Level state machine:
// off, minimal, summary and detail, in increasing cost. Levels only ever
// step down after initialization, and corruption is never an error value:
// a block that fails its integrity checks terminates the process through
// the configured diagnostic sink.
package track
