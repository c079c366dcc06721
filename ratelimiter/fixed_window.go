package ratelimiter

import (
	"sync"

	"github.com/mcortell/go-rate-limiter/clock"
)

const msgFixedWindowReached = "Rate limit exceeded - Fixed window limit reached"

// fixedWindowStrategy counts admissions per aligned wall-clock window. The
// window id is now/windowSize; a call landing in a new window replaces the
// counter wholesale. Known artifact: up to 2*Limit admissions can fall inside
// one window-sized interval that spans a boundary.
type fixedWindowStrategy struct {
	clk      clock.Clock
	counters keyStates[fixedWindowState]
}

type fixedWindowState struct {
	mu       sync.Mutex
	windowID int64
	count    int64
}

func newFixedWindow(clk clock.Clock) *fixedWindowStrategy {
	return &fixedWindowStrategy{clk: clk}
}

func (s *fixedWindowStrategy) TryAcquire(key string, cfg Config) Result {
	now := s.clk.NowMillis()
	windowMs := cfg.WindowSeconds * 1000
	currentWindow := now / windowMs

	st := s.counters.get(key, func() *fixedWindowState {
		return &fixedWindowState{windowID: currentWindow}
	})

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.windowID != currentWindow {
		st.windowID = currentWindow
		st.count = 0
	}

	if st.count < cfg.Limit {
		st.count++
		return allowed(cfg.Limit - st.count)
	}

	windowEnd := (currentWindow + 1) * windowMs
	return rejected(ceilSeconds(windowEnd-now), msgFixedWindowReached)
}

func (s *fixedWindowStrategy) Reset(key string) {
	s.counters.reset(key)
}

// ceilSeconds converts a positive millisecond duration to whole seconds,
// rounding up so a sub-second wait still reports one second.
func ceilSeconds(millis int64) int64 {
	if millis <= 0 {
		return 0
	}
	return (millis + 999) / 1000
}
