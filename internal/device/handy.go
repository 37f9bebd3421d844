// Package device drives a Handy v2 over its REST API. Relative motion
// tuples are mapped onto the device's absolute slide window and velocity
// using the user's calibration limits; the protocol itself is an opaque
// sink as far as the rest of the system is concerned.
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"haptic/agent/internal/motion"
)

var ErrNoKey = errors.New("device connection key not set")

// TransportError wraps any failed device call so callers can tell a
// transport fault from a configuration problem.
type TransportError struct {
	Path string
	Err  error
}

func (e *TransportError) Error() string { return fmt.Sprintf("handy %s: %v", e.Path, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// Calibration holds the user's speed band and depth window. Relative
// values map into these.
type Calibration struct {
	MinSpeed int
	MaxSpeed int
	MinDepth int
	MaxDepth int
}

func DefaultCalibration() Calibration {
	return Calibration{MinSpeed: 10, MaxSpeed: 80, MinDepth: 0, MaxDepth: 100}
}

type Client struct {
	http *http.Client
	base string

	mu        sync.Mutex
	key       string
	cal       Calibration
	hampAlive bool

	lastSent motion.Tuple
}

func NewClient(base, key string) *Client {
	if base == "" {
		base = "https://www.handyfeeling.com/api/handy/v2"
	}
	return &Client{
		http: &http.Client{},
		base: base,
		key:  key,
		cal:  DefaultCalibration(),
	}
}

func (c *Client) SetKey(key string) {
	c.mu.Lock()
	c.key = key
	c.hampAlive = false
	c.mu.Unlock()
}

func (c *Client) SetCalibration(cal Calibration) {
	c.mu.Lock()
	if cal.MaxDepth <= cal.MinDepth {
		cal.MinDepth, cal.MaxDepth = 0, 100
	}
	if cal.MaxSpeed < cal.MinSpeed {
		cal.MinSpeed, cal.MaxSpeed = cal.MaxSpeed, cal.MinSpeed
	}
	c.cal = cal
	c.mu.Unlock()
}

// LastSent reports the last tuple handed to the device.
func (c *Client) LastSent() motion.Tuple {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSent
}

// Move maps the relative tuple onto slide + velocity commands. Speed 0
// is a stop.
func (c *Client) Move(ctx context.Context, t motion.Tuple) error {
	c.mu.Lock()
	key := c.key
	cal := c.cal
	arm := !c.hampAlive
	c.mu.Unlock()

	if key == "" {
		return ErrNoKey
	}
	t = motion.ClampAbs(t)
	if t.Speed == 0 {
		return c.Stop(ctx)
	}

	// Arm manual mode once per run of moves.
	if arm {
		if err := c.put(ctx, key, "mode", map[string]any{"mode": 0}); err != nil {
			return err
		}
		if err := c.put(ctx, key, "hamp/start", nil); err != nil {
			return err
		}
		c.mu.Lock()
		c.hampAlive = true
		c.mu.Unlock()
	}

	slideMin, slideMax := slideWindow(t, cal)
	if err := c.put(ctx, key, "slide", map[string]any{"min": slideMin, "max": slideMax}); err != nil {
		return err
	}

	vel := cal.MinSpeed + int(float64(cal.MaxSpeed-cal.MinSpeed)*float64(t.Speed)/100.0+0.5)
	if err := c.put(ctx, key, "hamp/velocity", map[string]any{"velocity": vel}); err != nil {
		return err
	}

	c.mu.Lock()
	c.lastSent = t
	c.mu.Unlock()
	return nil
}

// Stop halts the device immediately.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	key := c.key
	c.mu.Unlock()
	if key == "" {
		return ErrNoKey
	}
	if err := c.put(ctx, key, "hamp/stop", nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.hampAlive = false
	c.lastSent.Speed = 0
	c.mu.Unlock()
	return nil
}

// slideWindow converts center depth + span into the calibrated absolute
// [min,max] window, clipping at the travel edges while preserving span.
func slideWindow(t motion.Tuple, cal Calibration) (int, int) {
	calW := float64(cal.MaxDepth - cal.MinDepth)
	if calW <= 0 {
		calW = 100
	}
	center := float64(cal.MinDepth) + calW*float64(t.Depth)/100.0
	span := int(calW*float64(t.Range)/100.0 + 0.5)

	half := float64(span) / 2.0
	lo := int(center - half + 0.5)
	hi := int(center + half + 0.5)

	if lo < 0 {
		lo = 0
		hi = min(100, lo+span)
	}
	if hi > 100 {
		hi = 100
		lo = max(0, hi-span)
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo, hi
}

func (c *Client) put(ctx context.Context, key, path string, body map[string]any) error {
	var buf bytes.Buffer
	if body == nil {
		body = map[string]any{}
	}
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return &TransportError{Path: path, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.base+"/"+path, &buf)
	if err != nil {
		return &TransportError{Path: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Connection-Key", key)
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Path: path, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &TransportError{Path: path, Err: fmt.Errorf("%s: %s", resp.Status, string(b))}
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
