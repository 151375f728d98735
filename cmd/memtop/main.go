package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joshuapare/memtrack/cmd/memtop/logger"
	"github.com/joshuapare/memtrack/track"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	level := track.LevelDetail
	interval := time.Second
	debugMode := false

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--debug", "-d":
			debugMode = true
		case "--help", "-h":
			printHelp()
			os.Exit(0)
		case "--version", "-v":
			fmt.Printf("memtop %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built: %s\n", date)
			os.Exit(0)
		case "--level", "-l":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: --level needs a value")
				os.Exit(1)
			}
			i++
			parsed, err := track.ParseLevel(args[i])
			if err != nil || parsed <= track.LevelMinimal {
				fmt.Fprintf(os.Stderr, "Error: unusable level %q (a live view needs summary or detail)\n", args[i])
				os.Exit(1)
			}
			level = parsed
		case "--interval", "-i":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: --interval needs a duration")
				os.Exit(1)
			}
			i++
			parsed, err := time.ParseDuration(args[i])
			if err != nil || parsed < 50*time.Millisecond {
				fmt.Fprintf(os.Stderr, "Error: bad interval %q\n", args[i])
				os.Exit(1)
			}
			interval = parsed
		default:
			printUsage()
			os.Exit(1)
		}
	}

	// The logger must be live before the first log call.
	if err := logger.Init(logger.Options{
		Enabled: debugMode,
		Level:   slog.LevelDebug,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to init logging: %v\n", err)
	}
	logger.Info("starting memtop", "level", level.String(), "interval", interval.String())

	m := NewModel(level, interval)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(), // Use alternate screen buffer
	)

	finalModel, err := p.Run()
	if err != nil {
		logger.Error("TUI error", "error", err)
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}

	if model, ok := finalModel.(Model); ok {
		if err := model.Close(); err != nil {
			logger.Warn("cleanup failed", "error", err)
			fmt.Fprintf(os.Stderr, "Warning: cleanup failed: %v\n", err)
		}
	}

	logger.Info("memtop exited")
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: memtop [options]\n")
	fmt.Fprintf(os.Stderr, "Try 'memtop --help' for more information.\n")
}

func printHelp() {
	fmt.Println("memtop - Live view of tracked native memory")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  memtop [options]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Runs a synthetic allocation workload through the memory tracker and")
	fmt.Println("  shows the per-category accounting live, like top for native memory.")
	fmt.Println()
	fmt.Println("  Keys:")
	fmt.Println("    ↑/k, ↓/j    Move through the category table")
	fmt.Println("    s           Toggle between categories and call sites (detail level)")
	fmt.Println("    space       Pause/resume the workload")
	fmt.Println("    q           Quit")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -l, --level <level>      Tracking level: summary or detail (default detail)")
	fmt.Println("  -i, --interval <dur>     Refresh interval, e.g. 500ms (default 1s)")
	fmt.Println("  -d, --debug              Enable debug logging to ~/.memtop/logs/")
	fmt.Println("  -h, --help               Show this help message")
	fmt.Println("  -v, --version            Show version information")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  memtop")
	fmt.Println("  memtop --level summary --interval 250ms")
	fmt.Println()
	fmt.Println("For one-shot reports, use the 'memstress' command instead.")
}
