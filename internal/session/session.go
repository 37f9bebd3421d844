// Package session holds the one piece of shared mutable state in the
// system: the interaction phase, the committed motion tuple, the recovery
// lock and the active automated mode. Every mutation, whether from a user
// directive or a dispatch tick, funnels through one mutex so the
// foreground chat path and the background loop can never interleave a
// read-compute-commit.
package session

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"haptic/agent/internal/intent"
	"haptic/agent/internal/motion"
	"haptic/agent/internal/types"
)

var ErrRecoveryLocked = errors.New("phase change rejected: recovery lock is set")

const defaultMood = "Curious"

// Result reports what a directive did to the session.
type Result struct {
	Applied bool          `json:"applied"`
	Tuple   motion.Tuple  `json:"tuple"`
	Phase   motion.Phase  `json:"-"`
	PhaseS  string        `json:"phase"`
	Mood    string        `json:"mood"`
	Locked  bool          `json:"locked"`
	Mode    string        `json:"mode"`
	Status  string        `json:"status"`
}

// Status strings surfaced to the caller. A clamped or rejected directive
// still returns the current state plus one of these, never a silent no-op.
const (
	StatusApplied        = "applied"
	StatusClamped        = "clamped"
	StatusStopped        = "stopped"
	StatusReset          = "reset"
	StatusClimax         = "climax"
	StatusResumed        = "resumed"
	StatusRecoveryLocked = "recovery_locked"
	StatusIgnored        = "ignored"
	StatusModeChanged    = "mode_changed"
	StatusMoodSet        = "mood_set"
	StatusNoDirective    = "no_directive"
)

// Snapshot is a point-in-time copy of session state. The epoch counter
// increments on every state transition; the dispatch loop uses it to
// discard tuples computed against stale bounds.
type Snapshot struct {
	ID        string
	Phase     motion.Phase
	Tuple     motion.Tuple
	Locked    bool
	Mode      types.Mode
	Mood      string
	EdgeCount int
	Epoch     uint64
}

// Session owns the phase state machine. Create one per running
// interactive session with New.
type Session struct {
	mu sync.Mutex

	id        string
	phase     motion.Phase
	tuple     motion.Tuple
	locked    bool
	mode      types.Mode
	mood      string
	edgeCount int
	epoch     uint64

	rnd *rand.Rand
}

func New() *Session {
	return &Session{
		id:    uuid.New().String(),
		phase: motion.Warmup,
		tuple: motion.Default(motion.Warmup),
		mood:  defaultMood,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Session) ID() string { return s.id }

// Snapshot returns a consistent copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:        s.id,
		Phase:     s.phase,
		Tuple:     s.tuple,
		Locked:    s.locked,
		Mode:      s.mode,
		Mood:      s.mood,
		EdgeCount: s.edgeCount,
		Epoch:     s.epoch,
	}
}

func (s *Session) resultLocked(applied bool, status string) Result {
	return Result{
		Applied: applied,
		Tuple:   s.tuple,
		Phase:   s.phase,
		PhaseS:  s.phase.String(),
		Mood:    s.mood,
		Locked:  s.locked,
		Mode:    s.mode.String(),
		Status:  status,
	}
}

// Apply consumes one directive. It is the single serialized state
// transition entry point; the returned error is only ever
// ErrRecoveryLocked, and even then the Result carries the (unchanged)
// current state for rendering.
func (s *Session) Apply(d intent.Directive) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch d.Kind {
	case intent.Climax:
		// Unconditional: always succeeds, from any phase or mode.
		s.phase = motion.Recovery
		s.locked = true
		s.tuple = motion.AfterClimax()
		s.mode = types.ModeNone
		s.epoch++
		return s.resultLocked(true, StatusClimax), nil

	case intent.Resume:
		if !s.locked {
			return s.resultLocked(false, StatusIgnored), nil
		}
		s.locked = false
		s.phase = d.Phase
		s.tuple = motion.BoundsFor(s.phase).Clamp(s.tuple)
		s.epoch++
		return s.resultLocked(true, StatusResumed), nil

	case intent.PhaseChange:
		if s.locked {
			return s.resultLocked(false, StatusRecoveryLocked), ErrRecoveryLocked
		}
		s.phase = d.Phase
		s.tuple = motion.BoundsFor(s.phase).Clamp(s.tuple)
		s.epoch++
		return s.resultLocked(true, StatusApplied), nil

	case intent.Reset:
		s.phase = motion.Warmup
		s.locked = false
		s.mode = types.ModeNone
		s.tuple = motion.Default(motion.Warmup)
		s.mood = defaultMood
		s.edgeCount = 0
		s.epoch++
		return s.resultLocked(true, StatusReset), nil

	case intent.Stop:
		// Speed forced to zero, bypassing phase bounds. Phase and lock
		// stay; any automated mode ceases driving.
		s.tuple.Speed = 0
		s.mode = types.ModeNone
		s.epoch++
		return s.resultLocked(true, StatusStopped), nil

	case intent.ParamAdjust:
		// Speed always clamps into the phase envelope. Absolute depth and
		// range targets (zone commands like "just the tip") override the
		// envelope and clamp only to the 0..100 scale, so a later zone
		// command wins verbatim; drawn targets stay envelope-bound.
		b := motion.BoundsFor(s.phase)
		next := s.tuple
		status := StatusApplied
		if d.Adj.Speed != nil {
			sp := s.draw(*d.Adj.Speed)
			next.Speed = b.Speed.Clamp(sp)
			if next.Speed != sp {
				status = StatusClamped
			}
		}
		if d.Adj.Depth != nil {
			next.Depth = s.applyTarget(*d.Adj.Depth, b.Depth, &status)
		}
		if d.Adj.Range != nil {
			next.Range = s.applyTarget(*d.Adj.Range, b.Range, &status)
		}
		s.tuple = next
		s.epoch++
		return s.resultLocked(true, status), nil

	case intent.RawPassthrough:
		// Under the recovery lock the phase is Recovery, so this clamps
		// into the narrow Recovery envelope: the lock constrains
		// magnitude, it does not block adjustment.
		clamped := motion.BoundsFor(s.phase).Clamp(d.Tuple)
		status := StatusApplied
		if clamped != d.Tuple {
			status = StatusClamped
		}
		s.tuple = clamped
		s.epoch++
		return s.resultLocked(true, status), nil

	case intent.ModeToggle:
		if d.On {
			s.mode = d.Mode
		} else {
			s.mode = types.ModeNone
		}
		s.epoch++
		return s.resultLocked(true, StatusModeChanged), nil

	case intent.SetMood:
		s.mood = d.Mood
		return s.resultLocked(true, StatusMoodSet), nil
	}

	return s.resultLocked(false, StatusNoDirective), nil
}

// ApplyGenerated commits a tuple produced by the pattern generator,
// routed through the same clamping path a raw passthrough takes. epoch
// must be the snapshot epoch the tuple was computed against; if any
// directive landed in between, the tuple was derived from stale bounds
// and is discarded.
func (s *Session) ApplyGenerated(t motion.Tuple, epoch uint64) (motion.Tuple, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return s.tuple, false
	}
	s.tuple = motion.BoundsFor(s.phase).Clamp(t)
	return s.tuple, true
}

// SetMood sets the free-form mood label. It has no clamping effect.
func (s *Session) SetMood(m string) {
	s.mu.Lock()
	s.mood = m
	s.mu.Unlock()
}

// SignalEdge records an edge signal. It only counts while Edging is the
// active mode; the bool reports whether it was taken.
func (s *Session) SignalEdge() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != types.ModeEdging {
		return s.edgeCount, false
	}
	s.edgeCount++
	s.epoch++
	return s.edgeCount, true
}

func (s *Session) applyTarget(target, bound motion.Interval, status *string) int {
	if target.Lo == target.Hi {
		abs := motion.Interval{Lo: 0, Hi: 100}
		return abs.Clamp(target.Lo)
	}
	v := s.draw(target)
	c := bound.Clamp(v)
	if c != v {
		*status = StatusClamped
	}
	return c
}

func (s *Session) draw(iv motion.Interval) int {
	if iv.Hi <= iv.Lo {
		return iv.Lo
	}
	return iv.Lo + s.rnd.Intn(iv.Hi-iv.Lo+1)
}
