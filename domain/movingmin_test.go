package domain

import "testing"

func TestMovingMinTracksCurrentSampleWhenStrictlyDecreasing(t *testing.T) {
	mm := NewMovingMin(100, 5)
	samples := []struct {
		v float64
		t int64
	}{
		{50, 0}, {40, 10}, {30, 20}, {20, 30}, {10, 40},
	}
	for _, s := range samples {
		mm.AddSample(s.v, s.t)
		v, tm := mm.IntervalMin()
		if v != s.v || tm != s.t {
			t.Fatalf("after AddSample(%v,%d): IntervalMin() = (%v,%d), want (%v,%d)",
				s.v, s.t, v, tm, s.v, s.t)
		}
	}
}

func TestMovingMinWindowExpiry(t *testing.T) {
	mm := NewMovingMin(100, 5)
	mm.AddSample(5, 0)
	v, tm := mm.IntervalMin()
	if v != 5 || tm != 0 {
		t.Fatalf("IntervalMin() = (%v,%d), want (5,0)", v, tm)
	}
	// still within the window: the old minimum survives even though later
	// samples are larger
	mm.AddSample(50, 50)
	v, tm = mm.IntervalMin()
	if v != 5 || tm != 0 {
		t.Fatalf("IntervalMin() = (%v,%d), want (5,0) (old min still in window)", v, tm)
	}
	// far enough past the old minimum's window that it must have expired
	mm.AddSample(40, 500)
	v, _ = mm.IntervalMin()
	if v == 5 {
		t.Fatalf("IntervalMin() still reports the expired minimum 5")
	}
}

func TestMovingMinNewInterval(t *testing.T) {
	mm := NewMovingMin(100, 5)
	mm.SetFirstInterval(0)
	if mm.NewInterval(50) {
		t.Fatalf("NewInterval(50) = true, want false before the first boundary at 100")
	}
	if !mm.NewInterval(100) {
		t.Fatalf("NewInterval(100) = false, want true at the boundary")
	}
	if mm.NewInterval(150) {
		t.Fatalf("NewInterval(150) = true, want false before the next boundary at 200")
	}
	if !mm.NewInterval(250) {
		t.Fatalf("NewInterval(250) = false, want true past the next boundary")
	}
}
