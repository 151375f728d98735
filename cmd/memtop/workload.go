package main

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshuapare/memtrack/alloc"
	"github.com/joshuapare/memtrack/track/stats"
)

// workload keeps the tracker moving so the display has something to show:
// a churning heap working set, a slowly growing resident code set, and
// periodic compiler arena bursts.
type workload struct {
	a      *alloc.Allocator
	stop   chan struct{}
	paused atomic.Bool
	wg     sync.WaitGroup
}

func startWorkload(a *alloc.Allocator) *workload {
	w := &workload{a: a, stop: make(chan struct{})}
	w.wg.Add(3)
	go w.churn(stats.CategoryHeap, 32, 8<<10, 512, 2*time.Millisecond)
	go w.churn(stats.CategoryThread, 256, 4<<10, 64, 5*time.Millisecond)
	go w.arenaBursts(stats.CategoryCompiler, 40*time.Millisecond)
	return w
}

// churn keeps up to hold blocks of cat live, replacing the oldest each step.
func (w *workload) churn(cat stats.Category, minSize, maxSize uint64, hold int, pause time.Duration) {
	defer w.wg.Done()
	rng := rand.New(rand.NewSource(int64(cat) + 1))
	var live [][]byte
	for {
		select {
		case <-w.stop:
			return
		case <-time.After(pause):
		}
		if w.paused.Load() {
			continue
		}
		size := minSize + uint64(rng.Int63n(int64(maxSize-minSize+1)))
		user, err := w.a.Malloc(size, cat)
		if err != nil {
			continue
		}
		live = append(live, user)
		if len(live) > hold {
			_ = w.a.Free(live[0])
			live = live[1:]
		}
	}
}

// arenaBursts builds an arena, fills it, and releases it, over and over.
func (w *workload) arenaBursts(cat stats.Category, pause time.Duration) {
	defer w.wg.Done()
	rng := rand.New(rand.NewSource(99))
	for {
		select {
		case <-w.stop:
			return
		case <-time.After(pause):
		}
		if w.paused.Load() {
			continue
		}
		arena := alloc.NewArena(w.a, cat, 0)
		pieces := 50 + rng.Intn(200)
		for i := 0; i < pieces; i++ {
			if _, err := arena.Alloc(16 + uint64(rng.Intn(240))); err != nil {
				break
			}
		}
		_ = arena.Release()
	}
}

func (w *workload) TogglePause() {
	w.paused.Store(!w.paused.Load())
}

func (w *workload) Paused() bool {
	return w.paused.Load()
}

func (w *workload) Stop() {
	close(w.stop)
	w.wg.Wait()
}
