// Package loop runs the periodic dispatch cycle that turns session
// state and pattern output into device motion commands.
package loop

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"haptic/agent/internal/device"
	"haptic/agent/internal/motion"
	"haptic/agent/internal/pattern"
	"haptic/agent/internal/session"
	"haptic/agent/internal/types"
)

// Device is the subset of the device client the loop needs.
type Device interface {
	Move(ctx context.Context, t motion.Tuple) error
	Stop(ctx context.Context) error
}

type Dispatcher struct {
	sess        *session.Session
	dev         Device
	tick        time.Duration
	sendTimeout time.Duration

	mu       sync.Mutex
	gen      *pattern.Generator
	lastMode types.Mode
	script   []pattern.Move
	scriptIx int
	deadline time.Time

	now  func() time.Time
	stop chan struct{}
	done chan struct{}
}

func NewDispatcher(sess *session.Session, gen *pattern.Generator, dev Device, tickMs, sendTimeoutMs int) *Dispatcher {
	if tickMs <= 0 {
		tickMs = 400
	}
	if sendTimeoutMs <= 0 {
		sendTimeoutMs = 1500
	}
	return &Dispatcher{
		sess:        sess,
		gen:         gen,
		dev:         dev,
		tick:        time.Duration(tickMs) * time.Millisecond,
		sendTimeout: time.Duration(sendTimeoutMs) * time.Millisecond,
		now:         time.Now,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Run drives Step on the configured tick until Shutdown or ctx cancel.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	t := time.NewTicker(d.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-t.C:
			d.Step(ctx)
		}
	}
}

// Shutdown stops the loop and sends a final device stop.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	close(d.stop)
	select {
	case <-d.done:
	case <-time.After(2 * d.tick):
	}
	if err := d.dev.Stop(ctx); err != nil {
		log.Printf("[loop] final stop: %v", err)
	}
}

// SetScript installs a generated move sequence for playback while no
// pattern mode is active. Playback starts on the next tick and wraps
// around at the end.
func (d *Dispatcher) SetScript(moves []pattern.Move) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.script = moves
	d.scriptIx = 0
	d.deadline = d.now()
}

// PlayPhaseScript builds a fresh move script around base for the given
// phase and installs it for playback.
func (d *Dispatcher) PlayPhaseScript(p motion.Phase, base motion.Tuple) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.script = d.gen.Script(p, base)
	d.scriptIx = 0
	d.deadline = d.now()
}

func (d *Dispatcher) ClearScript() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.script = nil
	d.scriptIx = 0
}

// DeliverNow sends a committed tuple to the device immediately, outside
// the tick cycle. Manual tuples are applied synchronously by directives;
// the tick only drives automated modes and script playback.
func (d *Dispatcher) DeliverNow(ctx context.Context, t motion.Tuple) {
	d.send(ctx, t)
}

// HaltDevice issues an immediate device stop.
func (d *Dispatcher) HaltDevice(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	if err := d.dev.Stop(sctx); err != nil {
		loopSendFailures.WithLabelValues("stop").Inc()
		log.Printf("[loop] device halt: %v", err)
	}
}

// StartMode arms the generator for a mode right away instead of waiting
// for the next tick to notice the session change. Active modes drop any
// pending script.
func (d *Dispatcher) StartMode(m types.Mode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastMode = m
	d.gen.Start(m)
	if m != types.ModeNone {
		d.script = nil
		d.scriptIx = 0
	}
}

// ForceDip pushes the edging cycle straight to its dip segment.
func (d *Dispatcher) ForceDip() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen.ForceDip()
}

func (d *Dispatcher) SubPhase() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen.SubPhase()
}

// Step executes one dispatch cycle.
func (d *Dispatcher) Step(ctx context.Context) {
	loopTicksTotal.Inc()
	snap := d.sess.Snapshot()

	d.mu.Lock()
	if snap.Mode != d.lastMode {
		d.lastMode = snap.Mode
		if snap.Mode != types.ModeNone {
			d.gen.Start(snap.Mode)
			d.script = nil
			d.scriptIx = 0
		}
	}

	var want motion.Tuple
	var have bool
	if snap.Mode != types.ModeNone {
		want = d.gen.Next(motion.BoundsFor(snap.Phase))
		have = true
	} else if len(d.script) > 0 && !d.now().Before(d.deadline) {
		mv := d.script[d.scriptIx]
		want = mv.Tuple
		have = true
		d.scriptIx = (d.scriptIx + 1) % len(d.script)
		d.deadline = d.now().Add(mv.Duration)
	}
	d.mu.Unlock()

	if !have {
		return
	}
	committed, ok := d.sess.ApplyGenerated(want, snap.Epoch)
	if !ok {
		loopStaleTotal.Inc()
		return
	}
	d.send(ctx, committed)
}

func (d *Dispatcher) send(ctx context.Context, t motion.Tuple) {
	sctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	start := time.Now()
	err := d.dev.Move(sctx, t)
	loopSendLatencyMS.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		var te *device.TransportError
		if errors.As(err, &te) {
			loopSendFailures.WithLabelValues("transport").Inc()
			log.Printf("[loop] device send failed path=%s: %v", te.Path, te.Err)
			return
		}
		loopSendFailures.WithLabelValues("other").Inc()
		log.Printf("[loop] device send failed: %v", err)
	}
}
