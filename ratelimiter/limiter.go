// Package ratelimiter implements five interchangeable rate-limiting
// algorithms behind a single engine facade.
//
// The engine decides, for an opaque key and a per-call Config, whether a
// request is admitted, and returns advisory retry timing when it is not:
//
//	engine := ratelimiter.NewEngine()
//	result, err := engine.TryAcquire("user:123", ratelimiter.Config{
//		Algorithm:  ratelimiter.TokenBucket,
//		Capacity:   100,
//		RefillRate: 10.0,
//	})
//
// Every call is synchronous and non-blocking: a rejected request is rejected
// immediately, never queued. Per-key state is created lazily on first use,
// mutated under a per-key mutex, and discarded only by Reset. The engine
// caches no configuration; callers may vary Config freely between calls.
//
// Supported algorithms:
//   - TokenBucket: continuous refill, burst-friendly
//   - LeakyBucket: continuous drain, smooths bursts away
//   - FixedWindowCounter: counter per aligned wall-clock window
//   - SlidingWindowLog: exact, timestamp queue per key
//   - SlidingWindowCounter: weighted blend of two aligned windows
package ratelimiter

import (
	"errors"
	"fmt"
	"strings"
)

// Algorithm selects one of the five rate-limiting strategies.
type Algorithm string

const (
	// TokenBucket refills fractional tokens continuously at RefillRate per
	// second up to Capacity; each admission consumes one token. Allows
	// bursts up to Capacity.
	TokenBucket Algorithm = "token_bucket"

	// LeakyBucket adds one unit of water per attempt and drains at
	// RefillRate per second. Admission requires room for one more unit
	// without exceeding Capacity, so the steady-state admit rate equals the
	// drain rate and bursts are never passed through.
	LeakyBucket Algorithm = "leaky_bucket"

	// FixedWindowCounter counts admissions per aligned window of
	// WindowSeconds. Simple and cheap, but up to 2*Limit admissions can
	// land inside one window-sized interval spanning a boundary.
	FixedWindowCounter Algorithm = "fixed_window_counter"

	// SlidingWindowLog keeps the timestamps of recent admissions and is
	// exact: never more than Limit admissions in any sliding window.
	// Memory grows with the number of admissions in the window.
	SlidingWindowLog Algorithm = "sliding_window_log"

	// SlidingWindowCounter approximates a sliding window from the current
	// and previous aligned-window counters, weighted by the position
	// inside the current window.
	SlidingWindowCounter Algorithm = "sliding_window_counter"
)

// Algorithms lists every supported algorithm tag.
func Algorithms() []Algorithm {
	return []Algorithm{
		TokenBucket,
		LeakyBucket,
		FixedWindowCounter,
		SlidingWindowLog,
		SlidingWindowCounter,
	}
}

// ParseAlgorithm converts a string into an Algorithm tag. It accepts both the
// canonical snake_case form ("token_bucket") and the upper-case wire form
// ("TOKEN_BUCKET").
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case TokenBucket, LeakyBucket, FixedWindowCounter, SlidingWindowLog, SlidingWindowCounter:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// ErrUnknownAlgorithm is returned when Config.Algorithm is not one of the five
// defined tags. It indicates a programming error at the call site.
var ErrUnknownAlgorithm = errors.New("unknown rate limiter algorithm")

// ErrInvalidConfig is returned when a Config field required by the chosen
// algorithm is missing or non-positive. No state is touched in that case.
var ErrInvalidConfig = errors.New("invalid rate limiter config")

// Config carries the parameters for a single TryAcquire call.
//
// The window algorithms (fixed window, sliding log, sliding counter) read
// Limit and WindowSeconds; the bucket algorithms (token, leaky) read Capacity
// and RefillRate. Unused fields are ignored.
type Config struct {
	// Algorithm selects the strategy.
	Algorithm Algorithm `json:"algorithm"`

	// Limit is the maximum number of admissions per window.
	Limit int64 `json:"limit,omitempty"`

	// WindowSeconds is the window size in seconds.
	WindowSeconds int64 `json:"windowSeconds,omitempty"`

	// Capacity is the bucket size for the token and leaky buckets.
	Capacity int64 `json:"capacity,omitempty"`

	// RefillRate is tokens per second for the token bucket and the drain
	// rate for the leaky bucket.
	RefillRate float64 `json:"refillRate,omitempty"`
}

// Budget returns the nominal total admission budget the configuration
// describes: Capacity for bucket algorithms, Limit for window algorithms.
// Middleware uses it to populate the X-RateLimit-Limit header.
func (c Config) Budget() int64 {
	switch c.Algorithm {
	case TokenBucket, LeakyBucket:
		return c.Capacity
	default:
		return c.Limit
	}
}

// validate checks the fields the chosen algorithm requires. The unknown-tag
// case is handled by the engine's dispatch, not here.
func (c Config) validate() error {
	switch c.Algorithm {
	case TokenBucket, LeakyBucket:
		if c.Capacity <= 0 {
			return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
		}
		if c.RefillRate <= 0 {
			return fmt.Errorf("%w: refill rate must be positive, got %g", ErrInvalidConfig, c.RefillRate)
		}
	default:
		if c.Limit <= 0 {
			return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidConfig, c.Limit)
		}
		if c.WindowSeconds <= 0 {
			return fmt.Errorf("%w: window must be positive, got %d", ErrInvalidConfig, c.WindowSeconds)
		}
	}
	return nil
}

// Result is the outcome of a rate limit check.
//
// An admitted result always has RetryAfterSeconds == 0, and a rejected result
// with a meaningful wait always has RetryAfterSeconds >= 1.
type Result struct {
	// Allowed indicates whether the request is admitted.
	Allowed bool `json:"allowed"`

	// Remaining is the best-effort budget left after this call. Zero when
	// the request is rejected.
	Remaining int64 `json:"remaining"`

	// RetryAfterSeconds is an advisory delay until the next admission is
	// likely possible. Zero when admitted.
	RetryAfterSeconds int64 `json:"retryAfterSeconds"`

	// Message is a short human-readable reason.
	Message string `json:"message"`
}

// Strategy is the contract each algorithm implements. Implementations own a
// concurrent map from key to per-key state and must be safe for concurrent
// use; calls for the same key are serialized on the state's own mutex.
//
// The Config handed to TryAcquire has already been validated by the engine.
type Strategy interface {
	TryAcquire(key string, cfg Config) Result
	Reset(key string)
}

const msgAllowed = "Request allowed"

func allowed(remaining int64) Result {
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   true,
		Remaining: remaining,
		Message:   msgAllowed,
	}
}

func rejected(retryAfterSeconds int64, message string) Result {
	if retryAfterSeconds < 0 {
		retryAfterSeconds = 0
	}
	return Result{
		Allowed:           false,
		RetryAfterSeconds: retryAfterSeconds,
		Message:           message,
	}
}
