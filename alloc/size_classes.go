package alloc

import (
	"math"

	"github.com/joshuapare/memtrack/track"
)

// SizeClassConfig defines the block size class strategy. Different
// configurations trade free-list count against internal fragmentation.
type SizeClassConfig struct {
	// Name for this configuration (for benchmarking).
	Name string

	// Small allocation settings (linear increments).
	SmallMin       uint32 // smallest block size
	SmallMax       uint32 // max for linear increments
	SmallIncrement uint32 // step between small classes

	// MediumMax is the largest slab-served block; bigger requests get a
	// dedicated mapping. GrowthFactor drives the geometric classes between
	// SmallMax and MediumMax.
	MediumMax    uint32
	GrowthFactor float64
}

// Predefined configurations.
var (
	// ConfigBalanced suits mixed small-object workloads.
	ConfigBalanced = SizeClassConfig{
		Name:           "Balanced",
		SmallMin:       32,
		SmallMax:       512,
		SmallIncrement: 32,
		MediumMax:      64 << 10,
		GrowthFactor:   2.0,
	}

	// ConfigFineGrained packs small blocks tighter at the cost of more
	// free lists.
	ConfigFineGrained = SizeClassConfig{
		Name:           "FineGrained",
		SmallMin:       32,
		SmallMax:       256,
		SmallIncrement: 16,
		MediumMax:      64 << 10,
		GrowthFactor:   1.5,
	}

	// Default configuration (used if none specified).
	DefaultConfig = ConfigBalanced
)

// sizeClassTable holds the computed block size per class. Every entry is a
// multiple of the tracker's minimum alignment so sequentially carved blocks
// stay aligned.
type sizeClassTable struct {
	config  SizeClassConfig
	classes []uint32 // block size per class, ascending
}

func newSizeClassTable(config SizeClassConfig) *sizeClassTable {
	t := &sizeClassTable{
		config:  config,
		classes: make([]uint32, 0, 48),
	}

	// Linear small classes.
	for size := config.SmallMin; size <= config.SmallMax; size += config.SmallIncrement {
		t.append(size)
	}

	// Geometric classes up to the dedicated-mapping threshold.
	size := config.SmallMax
	for size < config.MediumMax {
		next := uint32(math.Ceil(float64(size) * config.GrowthFactor))
		if next <= size {
			next = size + 1
		}
		if next > config.MediumMax {
			next = config.MediumMax
		}
		t.append(next)
		size = next
	}
	return t
}

// append adds a class, aligned up and deduplicated.
func (t *sizeClassTable) append(size uint32) {
	const mask = track.MinAlignment - 1
	size = (size + mask) &^ mask
	if n := len(t.classes); n > 0 && t.classes[n-1] >= size {
		return
	}
	t.classes = append(t.classes, size)
}

func (t *sizeClassTable) numClasses() int {
	return len(t.classes)
}

// classFor returns the smallest class whose blocks hold n bytes, or false
// when n needs a dedicated mapping. The table is small; a linear scan beats
// anything fancier.
func (t *sizeClassTable) classFor(n uint64) (int, bool) {
	for i, size := range t.classes {
		if uint64(size) >= n {
			return i, true
		}
	}
	return 0, false
}

// blockSize returns the block width of a class.
func (t *sizeClassTable) blockSize(class int) uint32 {
	return t.classes[class]
}
