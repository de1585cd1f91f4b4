package sim

import (
	"sync"
	"time"
)

// ClockMode describes how the virtual clock is currently advancing.
type ClockMode string

const (
	// ModePaused means the clock is frozen; no advancement occurs.
	ModePaused ClockMode = "PAUSED"

	// ModeManual means time moves only through explicit engine calls.
	ModeManual ClockMode = "MANUAL"

	// ModeRealTime means auto-advance at scale 1 (virtual == wall pace).
	ModeRealTime ClockMode = "REAL_TIME"

	// ModeFastForward means auto-advance at scale > 1.
	ModeFastForward ClockMode = "FAST_FORWARD"

	// ModeSlowMotion means auto-advance at scale < 1.
	ModeSlowMotion ClockMode = "SLOW_MOTION"

	// ModeEventDriven is reserved for a jump-to-next-event advancement
	// strategy. The mode derivation never produces it; it exists so wire
	// formats and clients have a stable name for the future strategy.
	ModeEventDriven ClockMode = "EVENT_DRIVEN"
)

// Clock tracks virtual time for a simulation.
//
// Virtual time is a logical model, fully decoupled from the wall clock:
// it moves only through Advance and SetTime, and never backwards. The
// wall clock enters only as an anchor (lastWallUpdate) used by the
// auto-advance loop to convert elapsed wall time into virtual deltas.
//
// The wall-clock read is behind an injectable now source so scheduling
// logic is deterministically testable without real sleeps.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu             sync.Mutex
	current        time.Time
	scale          float64
	paused         bool
	autoAdvance    bool
	lastWallUpdate time.Time
	now            func() time.Time
}

// ClockOption configures a Clock at construction.
type ClockOption func(*Clock)

// WithNowFunc replaces the wall-clock source. Used by tests and the
// scenario harness for deterministic runs.
func WithNowFunc(now func() time.Time) ClockOption {
	return func(c *Clock) {
		c.now = now
	}
}

// NewClock creates a clock at the given virtual start time, unpaused,
// with scale 1 and auto-advance off.
func NewClock(start time.Time, opts ...ClockOption) *Clock {
	c := &Clock{
		current: start,
		scale:   1.0,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastWallUpdate = c.now()
	return c
}

// Current returns the current virtual time.
func (c *Clock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Scale returns the current rate scale.
func (c *Clock) Scale() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scale
}

// Paused reports whether the clock is paused.
func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// AutoAdvance reports whether the clock is flagged for auto-advance.
func (c *Clock) AutoAdvance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoAdvance
}

// SetAutoAdvance flips the auto-advance flag and refreshes the wall anchor
// so the first tick after enabling does not replay old wall time.
func (c *Clock) SetAutoAdvance(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoAdvance = enabled
	c.lastWallUpdate = c.now()
}

// ElapsedWall returns the wall-clock time elapsed since the last anchor
// refresh. The auto-advance loop feeds this into CalculateAdvancement.
func (c *Clock) ElapsedWall() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Sub(c.lastWallUpdate)
}

// CalculateAdvancement converts elapsed wall time into a virtual delta.
// Returns 0 whenever the clock is paused, regardless of scale.
func (c *Clock) CalculateAdvancement(wallElapsed time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return 0
	}
	return time.Duration(float64(wallElapsed) * c.scale)
}

// Advance moves virtual time forward by delta and refreshes the wall anchor.
// Fails if delta is negative or the clock is paused.
func (c *Clock) Advance(delta time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if delta < 0 {
		return NewOutOfRangeError("cannot advance by negative delta %s", delta)
	}
	if c.paused {
		return NewLifecycleError("cannot advance a paused clock")
	}

	c.current = c.current.Add(delta)
	c.lastWallUpdate = c.now()
	return nil
}

// SetTime jumps virtual time to newTime and refreshes the wall anchor.
// Fails if newTime is the zero value or earlier than the current virtual
// time (no backward jumps).
func (c *Clock) SetTime(newTime time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if newTime.IsZero() {
		return NewValidationError("new time must not be the zero value")
	}
	if newTime.Before(c.current) {
		return NewOutOfRangeError("cannot move time backwards: %s is before %s",
			newTime.Format(time.RFC3339), c.current.Format(time.RFC3339))
	}

	c.current = newTime
	c.lastWallUpdate = c.now()
	return nil
}

// Pause freezes the clock. Idempotent.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume unfreezes the clock and refreshes the wall anchor so wall time
// spent paused is never counted as virtual advancement.
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	c.lastWallUpdate = c.now()
}

// SetScale updates the rate scale and refreshes the wall anchor, which
// prevents a scale change from causing an unintended jump on the next tick.
// Fails if scale is not strictly positive.
func (c *Clock) SetScale(scale float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if scale <= 0 {
		return NewOutOfRangeError("scale must be > 0, got %v", scale)
	}

	c.scale = scale
	c.lastWallUpdate = c.now()
	return nil
}

// Mode derives the clock's current mode. Paused overrides everything;
// without auto-advance the clock is manual; otherwise the scale picks
// between real-time, fast-forward and slow-motion. ModeEventDriven is
// never derived.
func (c *Clock) Mode() ClockMode {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.paused:
		return ModePaused
	case !c.autoAdvance:
		return ModeManual
	case c.scale == 1.0:
		return ModeRealTime
	case c.scale > 1.0:
		return ModeFastForward
	default:
		return ModeSlowMotion
	}
}
