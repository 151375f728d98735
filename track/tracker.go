package track

import (
	"fmt"
	"sync/atomic"

	"github.com/joshuapare/memtrack/internal/debug"
	"github.com/joshuapare/memtrack/internal/layout"
	"github.com/joshuapare/memtrack/pkg/types"
	"github.com/joshuapare/memtrack/track/site"
	"github.com/joshuapare/memtrack/track/stats"
)

// Block sizing for allocator wrappers.
const (
	// HeaderSize is the tracking header size in bytes.
	HeaderSize = layout.HeaderSize

	// Overhead is the total bookkeeping bytes added to every tracked block:
	// the header plus the footer guard.
	Overhead = layout.BlockOverhead

	// MinAlignment is the raw-block alignment the tracker requires from the
	// underlying allocator.
	MinAlignment = layout.MinAlignment
)

// BlockSize returns the raw block bytes an allocator must supply to carry a
// payload of size bytes.
func BlockSize(size uint64) uint64 {
	return layout.BlockSize(size)
}

// Config configures a Tracker.
type Config struct {
	// Level is the initial tracking level.
	Level Level

	// SiteBuckets and MaxSites size the call-site table built for detail
	// tracking. Zero means the site package defaults.
	SiteBuckets int
	MaxSites    int

	// Sites overrides the call-site table. When set, SiteBuckets and
	// MaxSites are ignored.
	Sites site.Table

	// Sink receives fatal corruption reports. Nil means ExitSink.
	Sink types.Sink
}

// Tracker instruments an allocator's malloc and free paths. One Tracker is
// shared by all threads; every operation is safe for concurrent use and
// none blocks.
type Tracker struct {
	level   atomic.Uint32
	summary stats.Summary
	sites   site.Table
	sink    types.Sink
}

// New builds a Tracker at cfg.Level. The process summary is brought up for
// summary tracking and above, the call-site table only for detail. A
// tracker born off stays off.
func New(cfg Config) *Tracker {
	debug.Assert(cfg.Level.Valid(), "track: invalid level %d", cfg.Level)

	t := &Tracker{sink: cfg.Sink}
	if t.sink == nil {
		t.sink = ExitSink{}
	}
	if cfg.Level >= LevelSummary {
		t.summary.Initialize()
	}
	if cfg.Level == LevelDetail {
		t.sites = cfg.Sites
		if t.sites == nil {
			buckets := cfg.SiteBuckets
			if buckets == 0 {
				buckets = site.DefaultBuckets
			}
			maxSites := cfg.MaxSites
			if maxSites == 0 {
				maxSites = site.DefaultMaxSites
			}
			t.sites = site.NewFixedTable(buckets, maxSites)
		}
	}
	t.level.Store(uint32(cfg.Level))
	return t
}

// Level returns the current tracking level.
func (t *Tracker) Level() Level {
	return Level(t.level.Load())
}

// Summary exposes the live process summary for reporting.
func (t *Tracker) Summary() *stats.Summary {
	return &t.summary
}

// Sites returns the call-site table, or nil when the tracker never ran at
// detail.
func (t *Tracker) Sites() site.Table {
	return t.sites
}

// SiteOf resolves the call site recorded in the live block behind user. It
// returns false for blocks allocated without attribution, either below
// detail or after a registration failure.
func (t *Tracker) SiteOf(user []byte) (*site.Site, bool) {
	if t.sites == nil || user == nil {
		return nil, false
	}
	bucket, pos := layout.HeaderOf(user).SiteRef()
	return t.sites.Lookup(site.Ref{Bucket: bucket, Pos: pos})
}

// Transition moves tracking from its current level to a strictly lower one.
// Leaving detail shuts down the call-site table; refs already stored in live
// headers keep resolving. Moving into or out of off is a contract violation.
func (t *Tracker) Transition(to Level) error {
	debug.Assert(to != LevelOff, "track: transition to off")
	for {
		from := t.Level()
		debug.Assert(from != LevelOff, "track: transition out of off")
		if !ValidTransition(from, to) {
			return fmt.Errorf("%w: %s to %s", ErrLevelTransition, from, to)
		}
		if t.level.CompareAndSwap(uint32(from), uint32(to)) {
			if from == LevelDetail && t.sites != nil {
				t.sites.Shutdown()
			}
			return nil
		}
	}
}

// degradeToSummary drops detail tracking after a call-site registration
// failure. Losing per-site attribution is acceptable; losing tracking is
// not. Racing transitions make this a no-op.
func (t *Tracker) degradeToSummary() {
	if t.Level() != LevelDetail {
		return
	}
	_ = t.Transition(LevelSummary)
}

// RecordMalloc places a tracking header at the start of block and returns
// the user payload slice. A nil block returns nil, propagating the
// underlying allocation failure unchanged.
//
// block must hold at least BlockSize(size) bytes at MinAlignment. level is
// the caller's snapshot of the tracking level for this allocation and must
// be above off; accounting runs above minimal, call-site registration only
// at detail. A failed registration degrades the whole tracker to summary
// and the allocation proceeds without attribution.
func (t *Tracker) RecordMalloc(block []byte, size uint64, cat stats.Category, stack site.Stack, level Level) []byte {
	debug.Assert(level != LevelOff, "track: malloc recorded while tracking is off")
	if block == nil {
		return nil
	}

	var bucket, pos uint16
	if level == LevelDetail && t.sites != nil {
		if ref, ok := t.sites.Register(stack, size, cat); ok {
			bucket, pos = ref.Bucket, ref.Pos
		} else {
			t.degradeToSummary()
		}
	}

	b, user := layout.Place(block, size, cat, bucket, pos)
	if level > LevelMinimal {
		t.summary.RecordMalloc(size, cat)
		t.summary.RecordNewMallocHeader(layout.HeaderSize)
		debug.Assert(b.Size() == size && b.Category() == cat,
			"track: header read-back mismatch for block at 0x%x", b.Addr())
	}
	return user
}

// RecordFree verifies and unwinds the tracking for the block behind user,
// marks it dead, and returns the original raw block for the allocator to
// reclaim. A block that fails its integrity checks does not come back:
// the report goes to the sink and the process terminates there.
//
// Once tracking has wound down to minimal there is no housekeeping left;
// the header is trusted rather than verified and only the raw block is
// recovered. Integrity always runs before any counter moves, because a
// corrupt header's size and category cannot be trusted for accounting.
func (t *Tracker) RecordFree(user []byte) []byte {
	debug.Assert(t.Level() != LevelOff, "track: free recorded while tracking is off")
	debug.Assert(user != nil, "track: free recorded for nil pointer")

	if t.Level() <= LevelMinimal {
		size := layout.HeaderOf(user).Size()
		return layout.BlockOf(user, size)
	}

	b := layout.CheckBlock(user, t.sink.FatalCorruption)
	size, cat := b.Size(), b.Category()

	t.summary.RecordFree(size, cat)
	t.summary.RecordFreeMallocHeader(layout.HeaderSize)
	if t.Level() == LevelDetail {
		bucket, pos := b.SiteRef()
		t.sites.Unregister(site.Ref{Bucket: bucket, Pos: pos}, size)
	}
	b.MarkDead()
	return b
}

// RecordNewArena accounts for a new arena container under cat. The arena
// itself carries no header, so only the container count moves; its backing
// chunks are recorded separately as they come and go.
func (t *Tracker) RecordNewArena(cat stats.Category) {
	if t.Level() > LevelMinimal {
		t.summary.RecordNewArena(cat)
	}
}

// RecordArenaFree retires an arena container under cat.
func (t *Tracker) RecordArenaFree(cat stats.Category) {
	if t.Level() > LevelMinimal {
		t.summary.RecordArenaFree(cat)
	}
}

// RecordArenaSizeChange adjusts the arena byte total for cat by delta,
// which may be negative when an arena shrinks.
func (t *Tracker) RecordArenaSizeChange(delta int64, cat stats.Category) {
	if t.Level() > LevelMinimal {
		t.summary.RecordArenaSizeChange(delta, cat)
	}
}

// std is the process-wide tracker. Explicitly initialized once, handed out
// by Default, never replaced.
var std atomic.Pointer[Tracker]

// Initialize builds the process-wide tracker exactly once and returns it.
// Initializing twice is a contract violation: it asserts in debug builds
// and otherwise returns the existing tracker unchanged.
func Initialize(cfg Config) *Tracker {
	t := New(cfg)
	if std.CompareAndSwap(nil, t) {
		return t
	}
	debug.Assert(false, "track: process tracker initialized twice")
	return std.Load()
}

// Default returns the process-wide tracker, or nil before Initialize.
func Default() *Tracker {
	return std.Load()
}
