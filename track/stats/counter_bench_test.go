package stats

import "testing"

// Benchmark_Counter_AllocateFree measures the uncontended counter round trip.
func Benchmark_Counter_AllocateFree(b *testing.B) {
	var c Counter

	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		size := uint64(i & 1023)
		c.Allocate(size)
		c.Deallocate(size)
	}
}

// Benchmark_Counter_AllocateParallel drives the peak CAS loop from every P at
// once. Contention on the peak words is the worst case for the fast path.
func Benchmark_Counter_AllocateParallel(b *testing.B) {
	var c Counter

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Allocate(64)
			c.Deallocate(64)
		}
	})
}

// Benchmark_Summary_RecordMalloc measures the summary write path the tracker
// takes on every allocation above minimal.
func Benchmark_Summary_RecordMalloc(b *testing.B) {
	var s Summary
	s.Initialize()

	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		s.RecordMalloc(128, CategoryHeap)
		s.RecordFree(128, CategoryHeap)
	}
}
