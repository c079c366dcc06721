package ratelimiter

import (
	"math"
	"sync"

	"github.com/mcortell/go-rate-limiter/clock"
)

const msgLeakyBucketFull = "Rate limit exceeded - Leaky bucket full"

// leakyBucketStrategy holds one water bucket per key. Every attempt pours in
// one unit; water drains continuously at Config.RefillRate per second.
// A request is admitted only if its unit fits without raising the level above
// capacity, so the bucket never accumulates credit, never overflows, and the
// steady-state admit rate equals the drain rate. This is the smoothing counterpart to the burst-friendly token bucket.
type leakyBucketStrategy struct {
	clk     clock.Clock
	buckets keyStates[leakyBucketState]
}

type leakyBucketState struct {
	mu       sync.Mutex
	water    float64
	lastLeak int64
	capacity int64
}

func newLeakyBucket(clk clock.Clock) *leakyBucketStrategy {
	return &leakyBucketStrategy{clk: clk}
}

func (s *leakyBucketStrategy) TryAcquire(key string, cfg Config) Result {
	now := s.clk.NowMillis()
	st := s.buckets.get(key, func() *leakyBucketState {
		return &leakyBucketState{lastLeak: now, capacity: cfg.Capacity}
	})

	st.mu.Lock()
	defer st.mu.Unlock()

	st.leak(now, cfg.RefillRate)

	if st.water+1 <= float64(st.capacity) {
		st.water++
		return allowed(int64(math.Floor(float64(st.capacity) - st.water)))
	}

	retry := int64(math.Ceil(1 / cfg.RefillRate))
	return rejected(retry, msgLeakyBucketFull)
}

// leak drains water for the elapsed time, never below empty. Negative elapsed
// time (backward clock jump) drains nothing.
func (st *leakyBucketState) leak(now int64, leakRate float64) {
	elapsed := now - st.lastLeak
	if elapsed <= 0 {
		return
	}

	st.water = math.Max(0, st.water-float64(elapsed)/1000.0*leakRate)
	st.lastLeak = now
}

func (s *leakyBucketStrategy) Reset(key string) {
	s.buckets.reset(key)
}
