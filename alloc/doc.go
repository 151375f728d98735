// Package alloc provides a tracked slab allocator: every block it hands out
// carries the tracking header and footer guard, and every free runs the
// integrity protocol.
//
// # Overview
//
// The allocator carves fixed-width blocks out of anonymous page mappings,
// one slab per size class. A block's raw bytes hold the tracking header,
// the caller's payload and the footer guard; callers only ever see the
// payload slice. The tracker decides how much bookkeeping each allocation
// gets, the allocator decides where the bytes live.
//
// # Size Classes
//
// Classes grow linearly for small blocks and geometrically up to the
// dedicated-mapping threshold (see SizeClassConfig). Each class keeps its
// own free list; fixed-width classes make reuse a stack push, not a
// best-fit search. Requests above the threshold get their own mapping and
// release it on free.
//
// # Arenas
//
// An Arena bump-allocates scratch memory out of tracked chunks. The arena
// is accounted under its own category while its chunks stay accounted to
// the chunk category; reports reconcile the overlap with the snapshot's
// adjustment step.
//
// # Thread Safety
//
// Allocator and Arena methods are safe for concurrent use. The tracking hot
// path stays lock-free; only the slab bookkeeping takes the allocator lock.
package alloc
