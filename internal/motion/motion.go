package motion

import "fmt"

// Tuple is the relative command triple sent to the device.
// All three fields are percentages on a 0..100 scale:
// Speed is relative stroke speed, Depth is the stroke center
// (low values toward the tip, high values toward the base) and
// Range is the span around that center.
type Tuple struct {
	Speed int `json:"sp"`
	Depth int `json:"dp"`
	Range int `json:"rng"`
}

func (t Tuple) String() string {
	return fmt.Sprintf("sp=%d dp=%d rng=%d", t.Speed, t.Depth, t.Range)
}

// Phase is the interaction phase a session is in. Each phase owns a
// fixed envelope that motion values are clamped into.
type Phase int

const (
	Warmup Phase = iota
	Active
	Recovery
)

func (p Phase) String() string {
	switch p {
	case Warmup:
		return "warmup"
	case Active:
		return "active"
	case Recovery:
		return "recovery"
	}
	return "unknown"
}

// Next returns the cyclic successor: Warmup -> Active -> Recovery -> Warmup.
func (p Phase) Next() Phase {
	switch p {
	case Warmup:
		return Active
	case Active:
		return Recovery
	default:
		return Warmup
	}
}

// Interval is a closed [Lo, Hi] bound on one motion field.
type Interval struct {
	Lo, Hi int
}

func (iv Interval) Clamp(v int) int {
	if v < iv.Lo {
		return iv.Lo
	}
	if v > iv.Hi {
		return iv.Hi
	}
	return v
}

func (iv Interval) Contains(v int) bool { return v >= iv.Lo && v <= iv.Hi }

// Mid returns the midpoint of the interval.
func (iv Interval) Mid() int { return (iv.Lo + iv.Hi) / 2 }

// At returns the value at fraction f (0..1) across the interval.
func (iv Interval) At(f float64) int {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return iv.Lo + int(float64(iv.Hi-iv.Lo)*f+0.5)
}

// Width returns Hi-Lo.
func (iv Interval) Width() int { return iv.Hi - iv.Lo }

// Bounds is the per-phase envelope for speed, depth and range.
type Bounds struct {
	Speed Interval
	Depth Interval
	Range Interval
}

// Clamp forces every field of t into the envelope.
func (b Bounds) Clamp(t Tuple) Tuple {
	return Tuple{
		Speed: b.Speed.Clamp(t.Speed),
		Depth: b.Depth.Clamp(t.Depth),
		Range: b.Range.Clamp(t.Range),
	}
}

// Contains reports whether every field of t lies inside the envelope.
func (b Bounds) Contains(t Tuple) bool {
	return b.Speed.Contains(t.Speed) && b.Depth.Contains(t.Depth) && b.Range.Contains(t.Range)
}

// phaseBounds is the authoritative envelope table.
var phaseBounds = map[Phase]Bounds{
	Warmup:   {Speed: Interval{8, 20}, Depth: Interval{40, 60}, Range: Interval{25, 45}},
	Active:   {Speed: Interval{45, 85}, Depth: Interval{50, 80}, Range: Interval{40, 70}},
	Recovery: {Speed: Interval{1, 15}, Depth: Interval{35, 55}, Range: Interval{15, 35}},
}

// BoundsFor returns the envelope for a phase. Unknown phases fall back
// to the Warmup envelope.
func BoundsFor(p Phase) Bounds {
	if b, ok := phaseBounds[p]; ok {
		return b
	}
	return phaseBounds[Warmup]
}

// Default returns the resting tuple for a phase: the midpoint of each
// field's interval.
func Default(p Phase) Tuple {
	b := BoundsFor(p)
	return Tuple{Speed: b.Speed.Mid(), Depth: b.Depth.Mid(), Range: b.Range.Mid()}
}

// AfterClimax is the tuple committed by the climax transition: speed at
// the low end of the Recovery envelope (never above 15), depth and range
// mid-low within it.
func AfterClimax() Tuple {
	b := BoundsFor(Recovery)
	t := Tuple{
		Speed: b.Speed.At(0.25),
		Depth: b.Depth.At(0.33),
		Range: b.Range.At(0.33),
	}
	if t.Speed > 15 {
		t.Speed = 15
	}
	return t
}

// ClampAbs forces every field into the absolute 0..100 scale, ignoring
// phase envelopes. Used by the raw device path.
func ClampAbs(t Tuple) Tuple {
	abs := Interval{0, 100}
	return Tuple{Speed: abs.Clamp(t.Speed), Depth: abs.Clamp(t.Depth), Range: abs.Clamp(t.Range)}
}
