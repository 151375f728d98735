package main

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memtrack/alloc"
	"github.com/joshuapare/memtrack/report"
	"github.com/joshuapare/memtrack/track"
)

var (
	runLevel string
	runTop   int
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().StringVar(&runLevel, "level", "", "Override the profile tracking level (minimal|summary|detail)")
	cmd.Flags().IntVar(&runTop, "top", 0, "Override how many call sites the report lists")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [profile.yaml]",
		Short: "Run an allocation workload and report the accounting",
		Long: `The run command executes a workload profile against a tracked
allocator and prints the tracker's report when the workload finishes.
Without a profile it runs a built-in mixed churn workload.

Example:
  memstress run
  memstress run profiles/steady.yaml --level summary
  memstress run --top 20 --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(args)
		},
	}
}

func runRun(args []string) error {
	profile := defaultProfile()
	if len(args) == 1 {
		loaded, err := loadProfile(args[0])
		if err != nil {
			return err
		}
		profile = loaded
	}
	if runLevel != "" {
		profile.Level = runLevel
	}
	if runTop > 0 {
		profile.Report.TopSites = runTop
	}

	resolved, err := resolve(profile)
	if err != nil {
		return err
	}

	tracker := track.New(track.Config{Level: resolved.level})
	allocator := alloc.New(tracker, alloc.DefaultConfig)
	defer allocator.Close()

	printVerbose("Profile: %s (level=%s, seed=%d, %d phases)\n",
		resolved.Name, resolved.level, resolved.Seed, len(resolved.phases))

	for _, phase := range resolved.phases {
		start := time.Now()
		if err := runPhase(allocator, phase, resolved.Seed); err != nil {
			return fmt.Errorf("phase %q: %w", phase.Name, err)
		}
		printVerbose("Phase %s: %d ops in %s\n", phase.Name, phase.Count, time.Since(start).Round(time.Millisecond))
	}

	r, err := report.Collect(tracker, resolved.Report.TopSites)
	if errors.Is(err, report.ErrDisabled) {
		// Minimal tracking pays for headers only; there is no accounting to
		// print. Still a successful run.
		printInfo("Tracking level %s keeps no summary; nothing to report.\n", tracker.Level())
		return nil
	}
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(r)
	}
	return r.WriteText(os.Stdout)
}

// runPhase splits the phase across its workers, each with its own
// deterministic generator.
func runPhase(a *alloc.Allocator, p resolvedPhase, seed int64) error {
	perWorker := p.Count / p.Workers
	if perWorker == 0 {
		perWorker = 1
	}

	var wg sync.WaitGroup
	errs := make(chan error, p.Workers)
	for w := 0; w < p.Workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed + int64(w)))
			if p.Arena {
				errs <- arenaWorker(a, p, rng, perWorker)
				return
			}
			errs <- mallocWorker(a, p, rng, perWorker)
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// mallocWorker churns count blocks, keeping at most p.Hold live in FIFO
// order. Held blocks stay live past the phase so the report shows an
// outstanding working set.
func mallocWorker(a *alloc.Allocator, p resolvedPhase, rng *rand.Rand, count int) error {
	hold := p.Hold / p.Workers
	var live [][]byte
	for i := 0; i < count; i++ {
		user, err := a.Malloc(randSize(rng, p.MinSize, p.MaxSize), p.cat)
		if err != nil {
			return err
		}
		// Touch the block so the workload resembles a real consumer.
		if len(user) > 0 {
			user[0] = byte(i)
			user[len(user)-1] = byte(i >> 8)
		}
		live = append(live, user)
		if len(live) > hold {
			if err := a.Free(live[0]); err != nil {
				return err
			}
			live = live[1:]
		}
	}
	return nil
}

// arenaWorker bump-allocates count pieces into one arena and releases it.
func arenaWorker(a *alloc.Allocator, p resolvedPhase, rng *rand.Rand, count int) error {
	arena := alloc.NewArena(a, p.cat, 0)
	for i := 0; i < count; i++ {
		piece, err := arena.Alloc(randSize(rng, p.MinSize, p.MaxSize))
		if err != nil {
			return err
		}
		if len(piece) > 0 {
			piece[0] = byte(i)
		}
	}
	return arena.Release()
}

func randSize(rng *rand.Rand, min, max uint64) uint64 {
	if min >= max {
		return min
	}
	return min + uint64(rng.Int63n(int64(max-min+1)))
}
