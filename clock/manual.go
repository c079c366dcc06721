package clock

import "sync"

// ManualClock is a controllable Clock for deterministic tests.
//
// Tests advance it explicitly instead of sleeping:
//
//	clk := clock.NewManualClock(0)
//	// ... exhaust a bucket ...
//	clk.Advance(3_000) // three seconds later
//
// Set can move time backward, which tests use to exercise the engine's
// negative-elapsed clamping.
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

// NewManualClock returns a ManualClock starting at startMillis.
func NewManualClock(startMillis int64) *ManualClock {
	return &ManualClock{now: startMillis}
}

// NowMillis returns the current manual time.
func (c *ManualClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by deltaMillis. Negative deltas are ignored;
// use Set to jump backward.
func (c *ManualClock) Advance(deltaMillis int64) {
	if deltaMillis < 0 {
		return
	}
	c.mu.Lock()
	c.now += deltaMillis
	c.mu.Unlock()
}

// Set jumps the clock to an absolute time, forward or backward.
func (c *ManualClock) Set(millis int64) {
	c.mu.Lock()
	c.now = millis
	c.mu.Unlock()
}
