package main

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memtrack/internal/debug"
	"github.com/joshuapare/memtrack/track"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// newVersionCmd reports the build plus the tracker geometry the run output
// depends on. Header size varies by word size, so a report read on one
// platform needs the geometry it was produced with.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and tracker build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOut {
				_ = printJSON(struct {
					Version       string `json:"version"`
					Commit        string `json:"commit"`
					Date          string `json:"date"`
					GoVersion     string `json:"go_version"`
					Platform      string `json:"platform"`
					HeaderBytes   int    `json:"header_bytes"`
					OverheadBytes int    `json:"overhead_bytes"`
					Assertions    bool   `json:"assertions"`
				}{
					Version:       version,
					Commit:        commit,
					Date:          date,
					GoVersion:     runtime.Version(),
					Platform:      runtime.GOOS + "/" + runtime.GOARCH,
					HeaderBytes:   track.HeaderSize,
					OverheadBytes: track.Overhead,
					Assertions:    debug.Enabled,
				})
				return
			}
			printInfo("memstress %s (commit %s, built %s)\n", version, commit, date)
			printInfo("  %s on %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			printInfo("  block overhead: %d bytes (%d header + %d footer)\n",
				track.Overhead, track.HeaderSize, track.Overhead-track.HeaderSize)
			printInfo("  assertions compiled in: %v\n", debug.Enabled)
		},
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
