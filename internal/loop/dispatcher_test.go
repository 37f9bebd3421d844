package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"haptic/agent/internal/intent"
	"haptic/agent/internal/motion"
	"haptic/agent/internal/pattern"
	"haptic/agent/internal/session"
	"haptic/agent/internal/types"
)

type fakeDevice struct {
	mu    sync.Mutex
	moves []motion.Tuple
	stops int
	err   error
}

func (f *fakeDevice) Move(ctx context.Context, t motion.Tuple) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.moves = append(f.moves, t)
	return nil
}

func (f *fakeDevice) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeDevice) sent() []motion.Tuple {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]motion.Tuple, len(f.moves))
	copy(out, f.moves)
	return out
}

func newDispatcher(t *testing.T) (*Dispatcher, *session.Session, *fakeDevice) {
	t.Helper()
	sess := session.New()
	gen := pattern.New(pattern.Config{})
	dev := &fakeDevice{}
	return NewDispatcher(sess, gen, dev, 400, 1500), sess, dev
}

func TestStepIdleWithoutScript(t *testing.T) {
	d, _, dev := newDispatcher(t)
	d.Step(context.Background())
	if len(dev.sent()) != 0 {
		t.Fatalf("idle step sent %d moves", len(dev.sent()))
	}
}

func TestStepActiveModeStaysInPhaseBounds(t *testing.T) {
	d, sess, dev := newDispatcher(t)
	if _, err := sess.Apply(intent.Directive{Kind: intent.ModeToggle, Mode: types.ModeAuto, On: true}); err != nil {
		t.Fatalf("toggle: %+v", err)
	}
	for i := 0; i < 10; i++ {
		d.Step(context.Background())
	}
	moves := dev.sent()
	if len(moves) != 10 {
		t.Fatalf("sent %d moves, want 10", len(moves))
	}
	b := motion.BoundsFor(motion.Warmup)
	for _, m := range moves {
		if !b.Contains(m) {
			t.Fatalf("move %v outside warmup bounds", m)
		}
	}
}

func TestScriptPlaybackAdvancesAndWraps(t *testing.T) {
	d, _, dev := newDispatcher(t)
	d.SetScript([]pattern.Move{
		{Tuple: motion.Tuple{Speed: 10, Depth: 50, Range: 30}},
		{Tuple: motion.Tuple{Speed: 14, Depth: 55, Range: 35}},
	})
	for i := 0; i < 3; i++ {
		d.Step(context.Background())
	}
	moves := dev.sent()
	if len(moves) != 3 {
		t.Fatalf("sent %d moves, want 3", len(moves))
	}
	if moves[0].Speed != 10 || moves[1].Speed != 14 || moves[2].Speed != 10 {
		t.Fatalf("playback order wrong: %v", moves)
	}
}

func TestScriptRespectsMoveDuration(t *testing.T) {
	d, _, dev := newDispatcher(t)
	d.SetScript([]pattern.Move{
		{Tuple: motion.Tuple{Speed: 10, Depth: 50, Range: 30}, Duration: time.Hour},
		{Tuple: motion.Tuple{Speed: 14, Depth: 55, Range: 35}},
	})
	d.Step(context.Background())
	d.Step(context.Background())
	moves := dev.sent()
	if len(moves) != 1 {
		t.Fatalf("sent %d moves, want 1 while first move still holds", len(moves))
	}
}

func TestModeChangeClearsScript(t *testing.T) {
	d, sess, dev := newDispatcher(t)
	d.SetScript([]pattern.Move{{Tuple: motion.Tuple{Speed: 10, Depth: 50, Range: 30}}})
	if _, err := sess.Apply(intent.Directive{Kind: intent.ModeToggle, Mode: types.ModeMilking, On: true}); err != nil {
		t.Fatalf("toggle: %+v", err)
	}
	d.Step(context.Background())
	moves := dev.sent()
	if len(moves) != 1 {
		t.Fatalf("sent %d moves, want 1", len(moves))
	}
	// Milking ramp opens at the bottom of the envelope, not at the script tuple.
	b := motion.BoundsFor(motion.Warmup)
	if moves[0].Speed != b.Speed.Lo {
		t.Fatalf("first milking move speed = %d, want %d", moves[0].Speed, b.Speed.Lo)
	}
	d.mu.Lock()
	gone := len(d.script) == 0
	d.mu.Unlock()
	if !gone {
		t.Fatal("script not cleared on mode start")
	}
}

func TestDeviceFailureDoesNotStopLoop(t *testing.T) {
	d, sess, dev := newDispatcher(t)
	dev.err = errors.New("network down")
	if _, err := sess.Apply(intent.Directive{Kind: intent.ModeToggle, Mode: types.ModeAuto, On: true}); err != nil {
		t.Fatalf("toggle: %+v", err)
	}
	d.Step(context.Background())
	dev.err = nil
	d.Step(context.Background())
	if len(dev.sent()) != 1 {
		t.Fatalf("loop did not recover after device failure")
	}
}
