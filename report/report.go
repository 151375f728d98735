// Package report renders a tracker's accounting for humans and machines.
//
// Reports never touch live counters directly: Collect copies the snapshot
// field by field, folds the arena/chunk double count out of the copy, and
// renders from the copy. Recording continues undisturbed while a report is
// being written.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/memtrack/track"
	"github.com/joshuapare/memtrack/track/site"
	"github.com/joshuapare/memtrack/track/stats"
)

// ErrDisabled indicates a tracker below summary level: nothing is being
// accounted, so there is nothing to report.
var ErrDisabled = errors.New("report: tracking below summary level")

// printer groups digits for readability ("1,048,576").
var printer = message.NewPrinter(language.English)

// Report is a point-in-time model of a tracker's accounting, built from one
// adjusted snapshot copy.
type Report struct {
	Level       string
	TotalBytes  uint64
	TotalBlocks uint64
	ArenaBytes  uint64
	HeaderBytes uint64
	HeaderCount uint64
	Categories  []CategoryUsage
	Sites       []CallSite
}

// CategoryUsage is one category row. Categories with no activity are
// dropped at collection time.
type CategoryUsage struct {
	Name        string
	MallocBytes uint64
	MallocCount uint64
	PeakBytes   uint64
	PeakCount   uint64
	ArenaBytes  uint64
	ArenaCount  uint64
}

// CallSite is one allocation site row, innermost frame first.
type CallSite struct {
	Frames   []string
	Category string
	Bytes    uint64
	Blocks   uint64
}

// Collect builds a report from tr. The call-site section is included only
// while tracking runs at detail; topSites caps it, and zero skips it
// outright. Collect fails with ErrDisabled below summary level.
func Collect(tr *track.Tracker, topSites int) (*Report, error) {
	if tr.Level() <= track.LevelMinimal {
		return nil, ErrDisabled
	}

	snap := new(stats.Snapshot)
	tr.Summary().Snapshot().CopyTo(snap)
	snap.MakeAdjustment()

	r := &Report{
		Level:       tr.Level().String(),
		TotalBytes:  snap.Total(),
		TotalBlocks: snap.TotalCount(),
		ArenaBytes:  snap.TotalArena(),
		HeaderBytes: snap.TrackingHeader().Size(),
		HeaderCount: snap.TrackingHeader().Count(),
	}

	for c := stats.Category(0); int(c) < stats.NumCategories; c++ {
		u := snap.ByCategory(c)
		row := CategoryUsage{
			Name:        c.String(),
			MallocBytes: u.MallocSize(),
			MallocCount: u.MallocCount(),
			PeakBytes:   u.Malloc().PeakSize(),
			PeakCount:   u.Malloc().PeakCount(),
			ArenaBytes:  u.ArenaSize(),
			ArenaCount:  u.ArenaCount(),
		}
		if row.MallocBytes == 0 && row.MallocCount == 0 && row.PeakBytes == 0 &&
			row.ArenaBytes == 0 && row.ArenaCount == 0 {
			continue
		}
		r.Categories = append(r.Categories, row)
	}
	sort.Slice(r.Categories, func(i, j int) bool {
		a, b := &r.Categories[i], &r.Categories[j]
		if af, bf := a.MallocBytes+a.ArenaBytes, b.MallocBytes+b.ArenaBytes; af != bf {
			return af > bf
		}
		return a.Name < b.Name
	})

	if tr.Level() == track.LevelDetail {
		r.Sites = collectSites(tr.Sites(), topSites)
	}
	return r, nil
}

// collectSites walks the site table and keeps the top n sites by
// outstanding bytes. A nil table (tracker never at detail) yields none.
func collectSites(table site.Table, n int) []CallSite {
	if table == nil || n <= 0 {
		return nil
	}
	var rows []CallSite
	table.Walk(func(s *site.Site) bool {
		c := s.Counter()
		if c.Count() == 0 && c.Size() == 0 {
			return true
		}
		rows = append(rows, CallSite{
			Frames:   resolveFrames(s.Stack()),
			Category: s.Category().String(),
			Bytes:    c.Size(),
			Blocks:   c.Count(),
		})
		return true
	})
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Bytes != rows[j].Bytes {
			return rows[i].Bytes > rows[j].Bytes
		}
		return rows[i].Blocks > rows[j].Blocks
	})
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

func resolveFrames(stack site.Stack) []string {
	pcs := stack.Frames()
	if len(pcs) == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs)
	out := make([]string, 0, len(pcs))
	for {
		f, more := frames.Next()
		if f.Function != "" {
			out = append(out, fmt.Sprintf("%s (%s:%d)", f.Function, f.File, f.Line))
		}
		if !more {
			break
		}
	}
	return out
}

// WriteText renders the report as indented text with grouped digits.
func (r *Report) WriteText(w io.Writer) error {
	tw := &textWriter{w: w}

	tw.printf("Native memory tracking: %s\n\n", r.Level)
	tw.printf("Total: %d bytes in %d blocks\n", r.TotalBytes, r.TotalBlocks)
	if r.ArenaBytes > 0 {
		tw.printf("       arenas: %d bytes\n", r.ArenaBytes)
	}
	tw.printf("       headers: %d bytes in %d blocks\n", r.HeaderBytes, r.HeaderCount)

	if len(r.Categories) > 0 {
		tw.printf("\n")
	}
	for i := range r.Categories {
		c := &r.Categories[i]
		tw.printf("- %13s (malloc=%d bytes #%d, peak=%d bytes #%d",
			c.Name, c.MallocBytes, c.MallocCount, c.PeakBytes, c.PeakCount)
		if c.ArenaCount > 0 || c.ArenaBytes > 0 {
			tw.printf(", arena=%d bytes #%d", c.ArenaBytes, c.ArenaCount)
		}
		tw.printf(")\n")
	}

	if len(r.Sites) > 0 {
		tw.printf("\nTop call sites by outstanding bytes:\n")
		for i := range r.Sites {
			s := &r.Sites[i]
			tw.printf("\n  %d bytes in %d blocks (%s)\n", s.Bytes, s.Blocks, s.Category)
			for _, frame := range s.Frames {
				tw.printf("      %s\n", frame)
			}
		}
	}
	return tw.err
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// textWriter folds per-line error checks into one trailing check.
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...interface{}) {
	if t.err != nil {
		return
	}
	_, t.err = printer.Fprintf(t.w, format, args...)
}
