package domain

import "testing"

func TestTSWrapExtendMonotonic(t *testing.T) {
	var w TSWrap
	first := w.Extend(0xFFFFFFFE)
	second := w.Extend(2)
	if second <= first {
		t.Fatalf("extended value went backwards across a wrap: %d -> %d", first, second)
	}
	if second-first != 4 {
		t.Fatalf("wrapped delta = %d, want 4", second-first)
	}
	if first != 0xFFFFFFFE {
		t.Fatalf("pre-wrap extended value = %d, want %d", first, uint32(0xFFFFFFFE))
	}
	if second != int64(wrapCount)+2 {
		t.Fatalf("post-wrap extended value = %d, want %d", second, int64(wrapCount)+2)
	}
}

func TestTSWrapReorderedAcrossWrap(t *testing.T) {
	var w TSWrap
	w.Extend(0xFFFFFFFE)
	afterWrap := w.Extend(2)
	// a packet from just before the wrap, reordered to arrive right after it
	late := w.Extend(0xFFFFFFFF)
	if late <= 0xFFFFFFFE {
		t.Fatalf("late pre-wrap sample extended to %d, want > %d", late, uint32(0xFFFFFFFE))
	}
	if late >= afterWrap {
		t.Fatalf("late pre-wrap sample (%d) should extend below the post-wrap sample (%d)", late, afterWrap)
	}
	if late != 0xFFFFFFFF {
		t.Fatalf("late pre-wrap extended value = %d, want %d", late, uint32(0xFFFFFFFF))
	}
}

func TestTSWrapNoSpuriousWrap(t *testing.T) {
	var w TSWrap
	vals := []uint32{10, 20, 30, 1000, 1_000_000, 2_000_000_000}
	var prev int64 = -1
	for _, v := range vals {
		ext := w.Extend(v)
		if ext != int64(v) {
			t.Fatalf("Extend(%d) = %d, want %d (no wrap expected)", v, ext, v)
		}
		if ext <= prev {
			t.Fatalf("extended sequence not increasing: %d -> %d", prev, ext)
		}
		prev = ext
	}
}
