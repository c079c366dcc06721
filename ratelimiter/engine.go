package ratelimiter

import (
	"fmt"

	"github.com/mcortell/go-rate-limiter/clock"
)

// Engine dispatches TryAcquire and Reset calls to the five algorithm
// strategies. The tag-to-strategy table is built once at construction and
// never mutated, so dispatch itself needs no locking.
//
// The Engine is safe for concurrent use and is meant to be constructed once
// per process and shared.
type Engine struct {
	clk        clock.Clock
	strategies map[Algorithm]Strategy
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*engineConfig)

type engineConfig struct {
	clk       clock.Clock
	legacyCap bool
}

// WithClock replaces the wall clock. Tests pass a clock.ManualClock to drive
// time deterministically.
func WithClock(clk clock.Clock) EngineOption {
	return func(c *engineConfig) {
		if clk != nil {
			c.clk = clk
		}
	}
}

// WithLegacyTokenCap makes the token bucket clamp its token count to
// max(RefillRate*60, Capacity) instead of Capacity.
//
// Earlier releases capped an idle bucket at one minute's worth of refill:
// with Capacity=5 and RefillRate=1.0 the bucket grows to 60 tokens, not 5.
// The default clamp is Capacity. Enable this only when callers depend on the
// old behavior.
func WithLegacyTokenCap() EngineOption {
	return func(c *engineConfig) {
		c.legacyCap = true
	}
}

// NewEngine wires the five strategies into a new Engine.
func NewEngine(opts ...EngineOption) *Engine {
	cfg := engineConfig{clk: clock.NewSystemClock()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Engine{
		clk: cfg.clk,
		strategies: map[Algorithm]Strategy{
			TokenBucket:          newTokenBucket(cfg.clk, cfg.legacyCap),
			LeakyBucket:          newLeakyBucket(cfg.clk),
			FixedWindowCounter:   newFixedWindow(cfg.clk),
			SlidingWindowLog:     newSlidingWindowLog(cfg.clk),
			SlidingWindowCounter: newSlidingWindowCounter(cfg.clk),
		},
	}
}

// TryAcquire attempts to admit one request for key under cfg.
//
// It returns ErrUnknownAlgorithm if cfg.Algorithm is not a defined tag and
// ErrInvalidConfig if the key is empty or a required numeric field is not
// positive; in both cases no per-key state is created or modified. A rejected
// request is not an error: inspect Result.Allowed.
func (e *Engine) TryAcquire(key string, cfg Config) (Result, error) {
	strategy, ok := e.strategies[cfg.Algorithm]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, cfg.Algorithm)
	}
	if key == "" {
		return Result{}, fmt.Errorf("%w: key must not be empty", ErrInvalidConfig)
	}
	if err := cfg.validate(); err != nil {
		return Result{}, err
	}
	return strategy.TryAcquire(key, cfg), nil
}

// Reset drops the per-key state held by one strategy, so the next TryAcquire
// for that key starts fresh. Resetting an absent key, or passing an unknown
// algorithm tag, is a silent no-op.
func (e *Engine) Reset(key string, algorithm Algorithm) {
	if strategy, ok := e.strategies[algorithm]; ok {
		strategy.Reset(key)
	}
}

// ResetAll drops the per-key state for key across every strategy.
func (e *Engine) ResetAll(key string) {
	for _, strategy := range e.strategies {
		strategy.Reset(key)
	}
}
