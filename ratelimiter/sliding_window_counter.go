package ratelimiter

import (
	"math"
	"sync"

	"github.com/mcortell/go-rate-limiter/clock"
)

const msgSlidingCounterReached = "Rate limit exceeded - Sliding window counter limit reached"

// slidingWindowCounterStrategy approximates a sliding window from two aligned
// counters per key: the count in the current window and the count in the one
// immediately before it. The previous count is weighted by how much of it
// still overlaps a window-sized interval ending now:
//
//	weighted = previous*(1-position) + current
//
// where position in [0,1) is how far into the current window now falls.
// Cheaper than the log, tighter than the fixed window.
type slidingWindowCounterStrategy struct {
	clk     clock.Clock
	windows keyStates[slidingCounterState]
}

type slidingCounterState struct {
	mu       sync.Mutex
	windowID int64
	current  int64
	previous int64
}

func newSlidingWindowCounter(clk clock.Clock) *slidingWindowCounterStrategy {
	return &slidingWindowCounterStrategy{clk: clk}
}

func (s *slidingWindowCounterStrategy) TryAcquire(key string, cfg Config) Result {
	now := s.clk.NowMillis()
	windowMs := cfg.WindowSeconds * 1000
	currentWindow := now / windowMs

	st := s.windows.get(key, func() *slidingCounterState {
		return &slidingCounterState{windowID: currentWindow}
	})

	st.mu.Lock()
	defer st.mu.Unlock()

	// Reconcile the stored counters with the window now falls in. A gap of
	// more than one window means the previous counter no longer overlaps
	// anything, so both start over.
	switch {
	case st.windowID < currentWindow-1:
		st.windowID = currentWindow
		st.current = 0
		st.previous = 0
	case st.windowID == currentWindow-1:
		st.windowID = currentWindow
		st.previous = st.current
		st.current = 0
	}

	windowStart := currentWindow * windowMs
	position := float64(now-windowStart) / float64(windowMs)
	weighted := float64(st.previous)*(1-position) + float64(st.current)

	if weighted < float64(cfg.Limit) {
		st.current++
		return allowed(cfg.Limit - int64(math.Ceil(weighted)) - 1)
	}

	retry := (windowStart + windowMs - now) / 1000
	if retry < 1 {
		retry = 1
	}
	return rejected(retry, msgSlidingCounterReached)
}

func (s *slidingWindowCounterStrategy) Reset(key string) {
	s.windows.reset(key)
}
