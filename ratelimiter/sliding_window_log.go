package ratelimiter

import (
	"sync"

	"github.com/mcortell/go-rate-limiter/clock"
)

const msgSlidingLogReached = "Rate limit exceeded - Sliding window limit reached"

// slidingWindowLogStrategy keeps the millisecond timestamps of recent
// admissions per key. Each call first drops timestamps that have aged out of
// the window, then admits if fewer than Limit remain. Exact by construction:
// no sliding interval ever contains more than Limit admissions. Memory is
// O(admissions in window) per key.
type slidingWindowLogStrategy struct {
	clk  clock.Clock
	logs keyStates[slidingLogState]
}

type slidingLogState struct {
	mu         sync.Mutex
	timestamps []int64
}

func newSlidingWindowLog(clk clock.Clock) *slidingWindowLogStrategy {
	return &slidingWindowLogStrategy{clk: clk}
}

func (s *slidingWindowLogStrategy) TryAcquire(key string, cfg Config) Result {
	now := s.clk.NowMillis()
	windowMs := cfg.WindowSeconds * 1000
	horizon := now - windowMs

	st := s.logs.get(key, func() *slidingLogState {
		return &slidingLogState{}
	})

	st.mu.Lock()
	defer st.mu.Unlock()

	st.trim(horizon)

	if int64(len(st.timestamps)) < cfg.Limit {
		st.timestamps = append(st.timestamps, now)
		return allowed(cfg.Limit - int64(len(st.timestamps)))
	}

	oldest := st.timestamps[0]
	retry := (oldest + windowMs - now) / 1000
	if retry < 1 {
		retry = 1
	}
	return rejected(retry, msgSlidingLogReached)
}

// trim drops timestamps older than horizon from the front of the queue,
// shifting survivors down so the backing array does not grow without bound.
func (st *slidingLogState) trim(horizon int64) {
	expired := 0
	for expired < len(st.timestamps) && st.timestamps[expired] < horizon {
		expired++
	}
	if expired > 0 {
		st.timestamps = append(st.timestamps[:0], st.timestamps[expired:]...)
	}
}

func (s *slidingWindowLogStrategy) Reset(key string) {
	s.logs.reset(key)
}
