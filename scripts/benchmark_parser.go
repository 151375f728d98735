// Command benchmark_parser turns `go test -bench` output into a markdown
// overhead report. Benchmarks whose sub-benchmark path carries a tracking
// level fold into per-operation rows with slowdown factors read against the
// "off" baseline; everything else lands in a standalone table.
//
// Usage:
//
//	go test -bench=. -benchmem ./... | go run scripts/benchmark_parser.go
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BenchmarkResult is one parsed result line.
type BenchmarkResult struct {
	Name        string
	Operation   string
	Level       string // "off", "minimal", "summary" or "detail"
	Size        string
	Iterations  int
	NsPerOp     float64
	BytesPerOp  int64
	AllocsPerOp int64
}

// OverheadResult groups one operation/size across tracking levels. Overheads
// are read against the "off" row, the untracked baseline.
type OverheadResult struct {
	Operation string
	Size      string
	ByLevel   map[string]BenchmarkResult
}

// levelOrder is the column order of the report, cheapest level first.
var levelOrder = []string{"off", "minimal", "summary", "detail"}

var (
	inPath  = flag.String("input", "", "Benchmark output to read (stdin when empty)")
	outPath = flag.String("output", "", "Markdown report to write (stdout when empty)")
	quiet   = flag.Bool("quiet", false, "Suppress progress output")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "benchmark_parser:", err)
		os.Exit(1)
	}
}

func run() error {
	in := os.Stdin
	if *inPath != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	results, err := parseBenchmarks(in)
	if err != nil {
		return err
	}
	progress("parsed %d benchmark results", len(results))

	overheads, standalone := groupByLevel(results)
	progress("grouped into %d overhead rows", len(overheads))

	report := renderReport(overheads, standalone)

	if *outPath != "" {
		if err := os.WriteFile(*outPath, []byte(report), 0o644); err != nil {
			return err
		}
		progress("report written to %s", *outPath)
		return nil
	}
	_, err = io.WriteString(os.Stdout, report)
	return err
}

func progress(format string, args ...any) {
	if !*quiet {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// benchLine matches one `go test -bench` result line:
//
//	Benchmark_Tracked_MallocFree/summary/1024-8  10000  145.0 ns/op  0 B/op  0 allocs/op
var benchLine = regexp.MustCompile(
	`^(Benchmark\S+)\s+(\d+)\s+([\d.]+)\s+ns/op(?:\s+([\d.]+)\s+(?:B|MB)/op)?(?:\s+([\d.]+)\s+allocs/op)?`,
)

func parseBenchmarks(r io.Reader) ([]BenchmarkResult, error) {
	var results []BenchmarkResult

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()

		// `go test -json` wraps every output line in a test2json event.
		var event struct {
			Output string `json:"Output"`
		}
		if json.Unmarshal([]byte(line), &event) == nil && event.Output != "" {
			line = event.Output
		}

		m := benchLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}

		iters, _ := strconv.Atoi(m[2])
		ns, _ := strconv.ParseFloat(m[3], 64)
		var bytesPer, allocsPer int64
		if m[4] != "" {
			bytesPer, _ = strconv.ParseInt(m[4], 10, 64)
		}
		if m[5] != "" {
			allocsPer, _ = strconv.ParseInt(m[5], 10, 64)
		}

		op, level, size := splitName(m[1])
		results = append(results, BenchmarkResult{
			Name:        m[1],
			Operation:   op,
			Level:       level,
			Size:        size,
			Iterations:  iters,
			NsPerOp:     ns,
			BytesPerOp:  bytesPer,
			AllocsPerOp: allocsPer,
		})
	}
	return results, sc.Err()
}

// splitName breaks a benchmark name into operation, tracking level and size.
// Expected shapes:
//
//	Benchmark_Tracked_MallocFree/summary/1024-8
//	Benchmark_Arena_AllocRelease/off-8
//	Benchmark_Tracked_Snapshot-8
//
// The trailing -N is the GOMAXPROCS suffix. A name with no level component
// returns level "".
func splitName(name string) (operation, level, size string) {
	parts := strings.Split(name, "/")

	// Strip the -N procs suffix from the last component
	last := parts[len(parts)-1]
	if dashIdx := strings.LastIndex(last, "-"); dashIdx > 0 {
		parts[len(parts)-1] = last[:dashIdx]
	}

	operation = strings.TrimPrefix(parts[0], "Benchmark")
	operation = strings.TrimPrefix(operation, "_")

	for _, part := range parts[1:] {
		if isLevel(part) {
			level = part
		} else if size == "" {
			size = part
		}
	}
	return operation, level, size
}

func isLevel(s string) bool {
	for _, l := range levelOrder {
		if s == l {
			return true
		}
	}
	return false
}

// groupByLevel folds leveled results into one OverheadResult per
// operation/size. Results without a level component come back separately.
func groupByLevel(results []BenchmarkResult) ([]OverheadResult, []BenchmarkResult) {
	type key struct {
		operation string
		size      string
	}

	grouped := map[key]map[string]BenchmarkResult{}
	var standalone []BenchmarkResult

	for _, result := range results {
		if result.Level == "" {
			standalone = append(standalone, result)
			continue
		}
		k := key{result.Operation, result.Size}
		if grouped[k] == nil {
			grouped[k] = map[string]BenchmarkResult{}
		}
		grouped[k][result.Level] = result
	}

	overheads := make([]OverheadResult, 0, len(grouped))
	for k, byLevel := range grouped {
		overheads = append(overheads, OverheadResult{
			Operation: k.operation,
			Size:      k.size,
			ByLevel:   byLevel,
		})
	}

	// Sort by operation then numeric size
	sort.Slice(overheads, func(i, j int) bool {
		if overheads[i].Operation != overheads[j].Operation {
			return overheads[i].Operation < overheads[j].Operation
		}
		return sizeLess(overheads[i].Size, overheads[j].Size)
	})

	return overheads, standalone
}

func sizeLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}

// overhead returns the slowdown of level against the off baseline.
func (o OverheadResult) overhead(level string) (float64, bool) {
	base, hasBase := o.ByLevel["off"]
	r, hasLevel := o.ByLevel[level]
	if !hasBase || !hasLevel || base.NsPerOp == 0 {
		return 0, false
	}
	return r.NsPerOp / base.NsPerOp, true
}

func renderReport(overheads []OverheadResult, standalone []BenchmarkResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Tracking Overhead Report\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))

	// Average slowdown per level across comparable rows.
	fmt.Fprintf(&sb, "## Summary\n\n")
	fmt.Fprintf(&sb, "- **Overhead rows**: %d\n", len(overheads))
	for _, level := range levelOrder[1:] {
		total, count := 0.0, 0
		for _, o := range overheads {
			if factor, ok := o.overhead(level); ok {
				total += factor
				count++
			}
		}
		if count > 0 {
			fmt.Fprintf(&sb, "- **%s vs off**: %.2fx average over %d rows\n",
				level, total/float64(count), count)
		}
	}
	sb.WriteByte('\n')

	fmt.Fprintf(&sb, "## Detailed Results\n\n")
	fmt.Fprintf(&sb, "| Operation | Size | off (ns/op) | minimal | summary | detail |\n")
	fmt.Fprintf(&sb, "|-----------|------|-------------|---------|---------|--------|\n")
	for _, o := range overheads {
		fmt.Fprintf(&sb, "| %s | %s |", o.Operation, orDash(o.Size))
		if base, ok := o.ByLevel["off"]; ok {
			fmt.Fprintf(&sb, " %s |", formatNumber(base.NsPerOp))
		} else {
			fmt.Fprintf(&sb, " *n/a* |")
		}
		for _, level := range levelOrder[1:] {
			r, ok := o.ByLevel[level]
			switch factor, haveBase := o.overhead(level); {
			case !ok:
				fmt.Fprintf(&sb, " *n/a* |")
			case haveBase:
				fmt.Fprintf(&sb, " %s (%.2fx) |", formatNumber(r.NsPerOp), factor)
			default:
				fmt.Fprintf(&sb, " %s |", formatNumber(r.NsPerOp))
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')

	if len(standalone) > 0 {
		fmt.Fprintf(&sb, "## Standalone Benchmarks\n\n")
		fmt.Fprintf(&sb, "| Benchmark | ns/op | Memory (B/op) | Allocs |\n")
		fmt.Fprintf(&sb, "|-----------|-------|---------------|--------|\n")
		for _, r := range standalone {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n",
				r.Name,
				formatNumber(r.NsPerOp),
				formatBytes(r.BytesPerOp),
				formatNumber(float64(r.AllocsPerOp)))
		}
		sb.WriteByte('\n')
	}

	fmt.Fprintf(&sb, "## Notes\n\n")
	fmt.Fprintf(&sb, "- **off** is the untracked baseline; factors are slowdowns against it\n")
	fmt.Fprintf(&sb, "- **minimal** pays for header space only, no accounting\n")
	fmt.Fprintf(&sb, "- **summary** adds per-category counters\n")
	fmt.Fprintf(&sb, "- **detail** adds call-site capture and attribution\n")

	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatNumber(n float64) string {
	switch {
	case n >= 1e6:
		return fmt.Sprintf("%.2fM", n/1e6)
	case n >= 1e3:
		return fmt.Sprintf("%.1fK", n/1e3)
	default:
		return fmt.Sprintf("%.0f", n)
	}
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.2fMB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%dB", b)
	}
}
