package osmem

import "testing"

func TestMapRoundsToPages(t *testing.T) {
	r, err := Map(1)
	if err != nil {
		t.Fatalf("Map(1): %v", err)
	}
	defer r.Unmap()

	if r.Len() != PageSize() {
		t.Fatalf("Len() = %d, want one page (%d)", r.Len(), PageSize())
	}
	if r.Len()%PageSize() != 0 {
		t.Fatalf("Len() = %d, not page-aligned", r.Len())
	}
}

func TestMapZeroFilled(t *testing.T) {
	r, err := Map(PageSize())
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	defer r.Unmap()

	for i, b := range r.Bytes() {
		if b != 0 {
			t.Fatalf("byte %d = 0x%02x, want zero-filled region", i, b)
		}
	}
}

func TestRegionIsWritable(t *testing.T) {
	r, err := Map(PageSize())
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	defer r.Unmap()

	data := r.Bytes()
	data[0] = 0xAA
	data[len(data)-1] = 0xBB
	if data[0] != 0xAA || data[len(data)-1] != 0xBB {
		t.Fatal("region does not hold writes")
	}
}

func TestUnmapTwice(t *testing.T) {
	r, err := Map(PageSize())
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if err := r.Unmap(); err != nil {
		t.Fatalf("first Unmap: %v", err)
	}
	if err := r.Unmap(); err != nil {
		t.Fatalf("second Unmap: %v", err)
	}
	if r.Bytes() != nil {
		t.Fatal("Bytes() not nil after Unmap")
	}
}

func TestMapRejectsNonPositiveSize(t *testing.T) {
	if _, err := Map(0); err == nil {
		t.Fatal("Map(0) succeeded")
	}
	if _, err := Map(-4096); err == nil {
		t.Fatal("Map(-4096) succeeded")
	}
}
