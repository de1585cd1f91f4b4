package sim

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultTickInterval is the auto-advance loop's default sleep between
// ticks.
const DefaultTickInterval = 10 * time.Millisecond

// loopStopTimeout bounds how long Stop waits for the in-flight tick.
const loopStopTimeout = 2 * time.Second

// Loop drives auto-advance mode: a background goroutine that repeatedly
// calls back into the engine's Tick, sleeping tickInterval between
// iterations.
//
// The loop idles (but stays alive) while the clock is paused, and
// isolates every tick failure: errors and panics are logged and the
// loop continues. The background goroutine must never die because of a
// single bad tick.
type Loop struct {
	engine   *Engine
	interval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewLoop creates a loop bound to the engine. A non-positive interval
// falls back to DefaultTickInterval.
func NewLoop(engine *Engine, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Loop{engine: engine, interval: interval}
}

// Running reports whether the background goroutine is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Start spawns the background goroutine. Fails with a lifecycle error
// if already running.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return NewLifecycleError("simulation loop is already running")
	}

	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	l.running = true
	go l.run(l.stop, l.done)

	slog.Debug("simulation loop started", "tick_interval", l.interval)
	return nil
}

// Stop signals the loop and waits, up to a bounded timeout, for the
// in-flight tick to finish. Safe to call when not running.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	close(l.stop)
	done := l.done
	l.mu.Unlock()

	select {
	case <-done:
	case <-time.After(loopStopTimeout):
		slog.Warn("simulation loop did not stop within timeout", "timeout", loopStopTimeout)
	}

	l.mu.Lock()
	l.running = false
	l.mu.Unlock()
	slog.Debug("simulation loop stopped")
}

// run is the loop body. Exits promptly once stop is closed.
func (l *Loop) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		// Paused clock: idle but alive.
		if !l.engine.Clock().Paused() {
			l.safeTick()
		}

		select {
		case <-stop:
			return
		case <-time.After(l.interval):
		}
	}
}

// safeTick runs one tick inside an error- and panic-isolating boundary.
func (l *Loop) safeTick() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tick panicked", "panic", r)
		}
	}()

	if err := l.engine.Tick(); err != nil {
		slog.Error("tick failed", "error", err)
	}
}
