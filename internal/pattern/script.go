package pattern

import (
	"time"

	"haptic/agent/internal/motion"
)

// Move is one step of a batched stroke script: a tuple plus how long to
// hold it before the next step.
type Move struct {
	motion.Tuple
	Duration time.Duration
}

// Per-phase step durations. Recovery strokes run longest.
var scriptDur = map[motion.Phase]motion.Interval{
	motion.Warmup:   {Lo: 3000, Hi: 3500},
	motion.Active:   {Lo: 2500, Hi: 3000},
	motion.Recovery: {Lo: 3500, Hi: 4500},
}

// Smoothing caps between consecutive moves; small deltas keep transitions
// fluid across steps and across batches.
const (
	maxDeltaSpeed = 6
	maxDeltaDepth = 10
	maxDeltaRange = 10

	holdProbability = 0.60
	scriptLen       = 10
)

// Script generates a looping batch of moves for a manual chat turn:
// random draws inside the phase envelope, smoothed against the previous
// step starting from the session's committed tuple.
func (g *Generator) Script(p motion.Phase, base motion.Tuple) []Move {
	b := motion.BoundsFor(p)
	dur := scriptDur[p]
	if dur.Hi == 0 {
		dur = scriptDur[motion.Warmup]
	}

	prev := b.Clamp(base)
	out := make([]Move, 0, scriptLen)
	for i := 0; i < scriptLen; i++ {
		next := g.uniform(b)

		next.Speed = smooth(prev.Speed, next.Speed, maxDeltaSpeed)
		next.Depth = smooth(prev.Depth, next.Depth, maxDeltaDepth)
		next.Range = smooth(prev.Range, next.Range, maxDeltaRange)
		next = b.Clamp(next)

		// Frequently hold the previous speed with a small jitter so runs
		// of steps keep a similar cadence.
		if i > 0 && g.rnd.Float64() < holdProbability {
			next.Speed = b.Speed.Clamp(out[i-1].Speed + g.rnd.Intn(11) - 5)
		}

		out = append(out, Move{
			Tuple:    next,
			Duration: time.Duration(g.drawIn(dur)) * time.Millisecond,
		})
		prev = next
	}
	return out
}

func smooth(prev, next, maxDelta int) int {
	d := next - prev
	if d > maxDelta {
		d = maxDelta
	}
	if d < -maxDelta {
		d = -maxDelta
	}
	return prev + d
}
