// Package testutil provides deterministic test doubles for the
// simulation core: a manually advanced wall clock and a sequential id
// generator. Both exist so tests and the scenario harness can run
// without real sleeps or random ids.
package testutil

import (
	"sync"
	"time"
)

// FakeWallClock is a manually advanced wall-clock source.
//
// Its Now method plugs into sim.WithNowFunc, so virtual-clock logic that
// normally anchors to time.Now can be driven step by step. The same test
// sequence always produces identical advancement.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type FakeWallClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeWallClock creates a fake wall clock frozen at start.
func NewFakeWallClock(start time.Time) *FakeWallClock {
	return &FakeWallClock{now: start}
}

// Now returns the current fake wall time. Signature matches time.Now.
func (c *FakeWallClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the fake wall clock forward by d.
func (c *FakeWallClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the fake wall clock to t.
func (c *FakeWallClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
