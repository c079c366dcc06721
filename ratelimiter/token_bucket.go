package ratelimiter

import (
	"math"
	"sync"

	"github.com/mcortell/go-rate-limiter/clock"
)

const msgTokenBucketDepleted = "Rate limit exceeded - Token bucket depleted"

// tokenBucketStrategy holds one fractional-token bucket per key. Tokens
// refill continuously at Config.RefillRate per second; each admission
// consumes exactly one token. A full bucket admits bursts up to Capacity.
type tokenBucketStrategy struct {
	clk       clock.Clock
	legacyCap bool
	buckets   keyStates[tokenBucketState]
}

type tokenBucketState struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill int64
}

func newTokenBucket(clk clock.Clock, legacyCap bool) *tokenBucketStrategy {
	return &tokenBucketStrategy{clk: clk, legacyCap: legacyCap}
}

func (s *tokenBucketStrategy) TryAcquire(key string, cfg Config) Result {
	now := s.clk.NowMillis()
	st := s.buckets.get(key, func() *tokenBucketState {
		return &tokenBucketState{tokens: float64(cfg.Capacity), lastRefill: now}
	})

	st.mu.Lock()
	defer st.mu.Unlock()

	s.refill(st, now, cfg)

	if st.tokens >= 1 {
		st.tokens--
		return allowed(int64(math.Floor(st.tokens)))
	}

	retry := int64(math.Ceil((1 - st.tokens) / cfg.RefillRate))
	return rejected(retry, msgTokenBucketDepleted)
}

// refill credits tokens for the time elapsed since the last refill, clamped
// to the cap. Negative elapsed time (backward clock jump) credits nothing.
func (s *tokenBucketStrategy) refill(st *tokenBucketState, now int64, cfg Config) {
	elapsed := now - st.lastRefill
	if elapsed <= 0 {
		return
	}

	bound := float64(cfg.Capacity)
	if s.legacyCap {
		bound = math.Max(cfg.RefillRate*60, bound)
	}

	st.tokens = math.Min(st.tokens+float64(elapsed)/1000.0*cfg.RefillRate, bound)
	st.lastRefill = now
}

func (s *tokenBucketStrategy) Reset(key string) {
	s.buckets.reset(key)
}
