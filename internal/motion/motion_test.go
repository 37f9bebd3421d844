package motion

import "testing"

func TestClampIntoPhaseBounds(t *testing.T) {
	got := BoundsFor(Warmup).Clamp(Tuple{Speed: 200, Depth: 55, Range: 55})
	if got.Speed != 20 {
		t.Fatalf("expected warmup speed clamped to 20, got %d", got.Speed)
	}
	if got.Depth != 55 {
		t.Fatalf("expected depth 55 untouched, got %d", got.Depth)
	}
	if got.Range != 45 {
		t.Fatalf("expected range clamped to 45, got %d", got.Range)
	}
}

func TestPhaseCycle(t *testing.T) {
	p := Warmup
	want := []Phase{Active, Recovery, Warmup}
	for i, w := range want {
		p = p.Next()
		if p != w {
			t.Fatalf("step %d: expected %s, got %s", i, w, p)
		}
	}
}

func TestDefaultsInsideBounds(t *testing.T) {
	for _, p := range []Phase{Warmup, Active, Recovery} {
		if !BoundsFor(p).Contains(Default(p)) {
			t.Fatalf("default tuple for %s outside its bounds: %v", p, Default(p))
		}
	}
}

func TestAfterClimaxSkewedLow(t *testing.T) {
	got := AfterClimax()
	if got.Speed > 15 {
		t.Fatalf("climax tuple speed must be <= 15, got %d", got.Speed)
	}
	b := BoundsFor(Recovery)
	if !b.Contains(got) {
		t.Fatalf("climax tuple %v outside recovery bounds", got)
	}
	if got.Depth > b.Depth.Mid() || got.Range > b.Range.Mid() {
		t.Fatalf("climax tuple should sit at or below the recovery midpoints, got %v", got)
	}
}

func TestIntervalAt(t *testing.T) {
	iv := Interval{10, 20}
	if v := iv.At(0); v != 10 {
		t.Fatalf("At(0) = %d", v)
	}
	if v := iv.At(1); v != 20 {
		t.Fatalf("At(1) = %d", v)
	}
	if v := iv.At(0.5); v != 15 {
		t.Fatalf("At(0.5) = %d", v)
	}
	if v := iv.At(2); v != 20 {
		t.Fatalf("At over 1 should pin to Hi, got %d", v)
	}
}
