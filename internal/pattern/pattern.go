// Package pattern produces the next motion tuple for an automated mode,
// and batched move scripts for manual chat turns. The generator owns the
// cycle position for the active mode; bounds are handed in fresh on every
// call so a phase change mid-ramp immediately narrows the output.
package pattern

import (
	"math/rand"
	"time"

	"haptic/agent/internal/motion"
	"haptic/agent/internal/types"
)

// Config carries the tunable tick counts for the ramping modes. Zero
// values fall back to the defaults below.
type Config struct {
	MilkingRampTicks int
	EdgeBuildTicks   int
	EdgeTeaseTicks   int
	EdgeHoldTicks    int
	EdgeDipTicks     int
}

func (c Config) withDefaults() Config {
	if c.MilkingRampTicks <= 0 {
		c.MilkingRampTicks = 12
	}
	if c.EdgeBuildTicks <= 0 {
		c.EdgeBuildTicks = 8
	}
	if c.EdgeTeaseTicks <= 0 {
		c.EdgeTeaseTicks = 6
	}
	if c.EdgeHoldTicks <= 0 {
		c.EdgeHoldTicks = 4
	}
	if c.EdgeDipTicks <= 0 {
		c.EdgeDipTicks = 6
	}
	return c
}

// edging sub-phases, cycled in a fixed order.
type edgeSub int

const (
	edgeBuild edgeSub = iota
	edgeTease
	edgeHold
	edgeDip
)

func (e edgeSub) String() string {
	switch e {
	case edgeBuild:
		return "build"
	case edgeTease:
		return "tease"
	case edgeHold:
		return "hold"
	case edgeDip:
		return "dip"
	}
	return "unknown"
}

type Generator struct {
	cfg Config
	rnd *rand.Rand

	mode    types.Mode
	tick    int
	sub     edgeSub
	subTick int
	held    motion.Tuple
	haveHeld bool
}

func New(cfg Config) *Generator {
	return &Generator{
		cfg: cfg.withDefaults(),
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start arms the generator for a mode and resets all cycle position:
// restarting milking restarts its ramp at zero.
func (g *Generator) Start(m types.Mode) {
	g.mode = m
	g.tick = 0
	g.sub = edgeBuild
	g.subTick = 0
	g.haveHeld = false
}

// ForceDip jumps an edging cycle straight into the recovery dip, used
// when the user signals they are on the edge. No effect in other modes.
func (g *Generator) ForceDip() {
	if g.mode != types.ModeEdging {
		return
	}
	g.sub = edgeDip
	g.subTick = 0
}

// SubPhase reports the current edging sub-phase name, for status output.
func (g *Generator) SubPhase() string {
	if g.mode != types.ModeEdging {
		return ""
	}
	return g.sub.String()
}

// Next returns the next tuple for the armed mode, always inside b. The
// caller re-snapshots the session bounds every tick, so the value can
// never escape the phase the session is actually in.
func (g *Generator) Next(b motion.Bounds) motion.Tuple {
	defer func() { g.tick++ }()

	switch g.mode {
	case types.ModeAuto:
		return g.uniform(b)

	case types.ModeMilking:
		n := g.cfg.MilkingRampTicks
		if g.tick >= n {
			// Ramp complete: hold at the high end until a climax signal
			// or mode toggle interrupts.
			return b.Clamp(motion.Tuple{Speed: b.Speed.Hi, Depth: b.Depth.Hi, Range: b.Range.Mid()})
		}
		f := float64(g.tick) / float64(n)
		return b.Clamp(motion.Tuple{
			Speed: b.Speed.At(f),
			Depth: b.Depth.At(f),
			Range: b.Range.Mid(),
		})

	case types.ModeEdging:
		t := g.nextEdging(b)
		g.advanceEdging()
		return t
	}

	return b.Clamp(motion.Tuple{Speed: b.Speed.Lo, Depth: b.Depth.Mid(), Range: b.Range.Mid()})
}

func (g *Generator) nextEdging(b motion.Bounds) motion.Tuple {
	switch g.sub {
	case edgeBuild:
		f := float64(g.subTick) / float64(g.cfg.EdgeBuildTicks)
		return b.Clamp(motion.Tuple{Speed: b.Speed.At(f), Depth: b.Depth.At(f), Range: b.Range.Mid()})
	case edgeTease:
		// Oscillate near 60-70% of the interval.
		f := 0.60 + 0.10*g.rnd.Float64()
		if g.subTick%2 == 1 {
			f -= 0.08
		}
		return b.Clamp(motion.Tuple{Speed: b.Speed.At(f), Depth: b.Depth.At(f), Range: b.Range.At(f)})
	case edgeHold:
		if !g.haveHeld {
			g.held = motion.Tuple{Speed: b.Speed.At(0.65), Depth: b.Depth.At(0.65), Range: b.Range.Mid()}
			g.haveHeld = true
		}
		// Re-clamp in case the phase changed under us mid-hold.
		return b.Clamp(g.held)
	default: // edgeDip
		return b.Clamp(motion.Tuple{Speed: b.Speed.Lo, Depth: b.Depth.At(0.33), Range: b.Range.At(0.33)})
	}
}

func (g *Generator) advanceEdging() {
	g.subTick++
	var span int
	switch g.sub {
	case edgeBuild:
		span = g.cfg.EdgeBuildTicks
	case edgeTease:
		span = g.cfg.EdgeTeaseTicks
	case edgeHold:
		span = g.cfg.EdgeHoldTicks
	default:
		span = g.cfg.EdgeDipTicks
	}
	if g.subTick >= span {
		g.subTick = 0
		g.haveHeld = false
		g.sub = (g.sub + 1) % 4
	}
}

func (g *Generator) uniform(b motion.Bounds) motion.Tuple {
	return motion.Tuple{
		Speed: g.drawIn(b.Speed),
		Depth: g.drawIn(b.Depth),
		Range: g.drawIn(b.Range),
	}
}

func (g *Generator) drawIn(iv motion.Interval) int {
	if iv.Hi <= iv.Lo {
		return iv.Lo
	}
	return iv.Lo + g.rnd.Intn(iv.Hi-iv.Lo+1)
}
