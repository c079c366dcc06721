package ratelimiter_test

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mcortell/go-rate-limiter/clock"
	"github.com/mcortell/go-rate-limiter/ratelimiter"
)

func newTestEngine(clk clock.Clock, opts ...ratelimiter.EngineOption) *ratelimiter.Engine {
	return ratelimiter.NewEngine(append([]ratelimiter.EngineOption{ratelimiter.WithClock(clk)}, opts...)...)
}

func mustAcquire(t *testing.T, e *ratelimiter.Engine, key string, cfg ratelimiter.Config) ratelimiter.Result {
	t.Helper()
	result, err := e.TryAcquire(key, cfg)
	if err != nil {
		t.Fatalf("TryAcquire(%q) unexpected error: %v", key, err)
	}
	return result
}

func TestTryAcquire_UnknownAlgorithm(t *testing.T) {
	e := newTestEngine(clock.NewManualClock(0))

	_, err := e.TryAcquire("k", ratelimiter.Config{Algorithm: "no_such_algorithm", Limit: 1, WindowSeconds: 1})
	if !errors.Is(err, ratelimiter.ErrUnknownAlgorithm) {
		t.Fatalf("want ErrUnknownAlgorithm, got %v", err)
	}
}

func TestTryAcquire_InvalidConfig(t *testing.T) {
	e := newTestEngine(clock.NewManualClock(0))

	tests := []struct {
		name string
		cfg  ratelimiter.Config
	}{
		{"token_bucket_zero_capacity", ratelimiter.Config{Algorithm: ratelimiter.TokenBucket, Capacity: 0, RefillRate: 1.0}},
		{"token_bucket_negative_rate", ratelimiter.Config{Algorithm: ratelimiter.TokenBucket, Capacity: 5, RefillRate: -1.0}},
		{"leaky_bucket_zero_rate", ratelimiter.Config{Algorithm: ratelimiter.LeakyBucket, Capacity: 5, RefillRate: 0}},
		{"fixed_window_zero_limit", ratelimiter.Config{Algorithm: ratelimiter.FixedWindowCounter, Limit: 0, WindowSeconds: 60}},
		{"sliding_log_zero_window", ratelimiter.Config{Algorithm: ratelimiter.SlidingWindowLog, Limit: 5, WindowSeconds: 0}},
		{"sliding_counter_negative_limit", ratelimiter.Config{Algorithm: ratelimiter.SlidingWindowCounter, Limit: -1, WindowSeconds: 60}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.TryAcquire("k", tt.cfg); !errors.Is(err, ratelimiter.ErrInvalidConfig) {
				t.Errorf("want ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestTryAcquire_EmptyKey(t *testing.T) {
	e := newTestEngine(clock.NewManualClock(0))

	cfg := ratelimiter.Config{Algorithm: ratelimiter.TokenBucket, Capacity: 5, RefillRate: 1.0}
	if _, err := e.TryAcquire("", cfg); !errors.Is(err, ratelimiter.ErrInvalidConfig) {
		t.Fatalf("want ErrInvalidConfig for empty key, got %v", err)
	}
}

// An invalid call must not create or mutate per-key state: the first valid
// call afterwards behaves like a first touch.
func TestTryAcquire_InvalidConfigLeavesStateUntouched(t *testing.T) {
	e := newTestEngine(clock.NewManualClock(0))

	bad := ratelimiter.Config{Algorithm: ratelimiter.TokenBucket, Capacity: -3, RefillRate: 1.0}
	if _, err := e.TryAcquire("k", bad); err == nil {
		t.Fatal("want error for invalid config")
	}

	good := ratelimiter.Config{Algorithm: ratelimiter.TokenBucket, Capacity: 3, RefillRate: 1.0}
	if got := mustAcquire(t, e, "k", good); got.Remaining != 2 {
		t.Fatalf("first valid call Remaining = %d, want 2 (fresh bucket)", got.Remaining)
	}
}

// Retry positive iff rejected, and remaining never negative, for every
// algorithm.
func TestDecisionInvariants_AllAlgorithms(t *testing.T) {
	configs := map[ratelimiter.Algorithm]ratelimiter.Config{
		ratelimiter.TokenBucket:          {Algorithm: ratelimiter.TokenBucket, Capacity: 2, RefillRate: 1.0},
		ratelimiter.LeakyBucket:          {Algorithm: ratelimiter.LeakyBucket, Capacity: 2, RefillRate: 1.0},
		ratelimiter.FixedWindowCounter:   {Algorithm: ratelimiter.FixedWindowCounter, Limit: 2, WindowSeconds: 60},
		ratelimiter.SlidingWindowLog:     {Algorithm: ratelimiter.SlidingWindowLog, Limit: 2, WindowSeconds: 60},
		ratelimiter.SlidingWindowCounter: {Algorithm: ratelimiter.SlidingWindowCounter, Limit: 2, WindowSeconds: 60},
	}

	for algorithm, cfg := range configs {
		t.Run(string(algorithm), func(t *testing.T) {
			e := newTestEngine(clock.NewManualClock(0))
			for i := 0; i < 6; i++ {
				result := mustAcquire(t, e, "k", cfg)
				if result.Remaining < 0 {
					t.Fatalf("call %d: Remaining = %d, want >= 0", i, result.Remaining)
				}
				if result.Allowed != (result.RetryAfterSeconds == 0) {
					t.Fatalf("call %d: Allowed=%v but RetryAfterSeconds=%d", i, result.Allowed, result.RetryAfterSeconds)
				}
				if !result.Allowed && result.RetryAfterSeconds < 1 {
					t.Fatalf("call %d: rejected with RetryAfterSeconds=%d, want >= 1", i, result.RetryAfterSeconds)
				}
			}
		})
	}
}

// Immediately after Reset, the first call behaves like the first call for a
// fresh key.
func TestReset_Monotonicity(t *testing.T) {
	clk := clock.NewManualClock(0)
	e := newTestEngine(clk)
	cfg := ratelimiter.Config{Algorithm: ratelimiter.TokenBucket, Capacity: 3, RefillRate: 1.0}

	for i := 0; i < 3; i++ {
		mustAcquire(t, e, "k", cfg)
	}
	if got := mustAcquire(t, e, "k", cfg); got.Allowed {
		t.Fatal("bucket should be exhausted before reset")
	}

	e.Reset("k", ratelimiter.TokenBucket)

	if got := mustAcquire(t, e, "k", cfg); !got.Allowed || got.Remaining != 2 {
		t.Fatalf("after reset got %+v, want allowed with Remaining 2", got)
	}
}

func TestReset_AbsentKeyIsNoOp(t *testing.T) {
	e := newTestEngine(clock.NewManualClock(0))

	e.Reset("never-seen", ratelimiter.SlidingWindowLog)
	e.Reset("never-seen", "no_such_algorithm")
	e.ResetAll("never-seen")
}

// Reset is scoped to one strategy; the same key's state under another
// algorithm survives.
func TestReset_ScopedToStrategy(t *testing.T) {
	clk := clock.NewManualClock(0)
	e := newTestEngine(clk)

	tb := ratelimiter.Config{Algorithm: ratelimiter.TokenBucket, Capacity: 1, RefillRate: 0.001}
	fw := ratelimiter.Config{Algorithm: ratelimiter.FixedWindowCounter, Limit: 1, WindowSeconds: 60}

	mustAcquire(t, e, "k", tb)
	mustAcquire(t, e, "k", fw)

	e.Reset("k", ratelimiter.TokenBucket)

	if got := mustAcquire(t, e, "k", tb); !got.Allowed {
		t.Fatal("token bucket state should be fresh after scoped reset")
	}
	if got := mustAcquire(t, e, "k", fw); got.Allowed {
		t.Fatal("fixed window state should have survived the token bucket reset")
	}
}

func TestResetAll_CoversEveryStrategy(t *testing.T) {
	clk := clock.NewManualClock(0)
	e := newTestEngine(clk)

	configs := []ratelimiter.Config{
		{Algorithm: ratelimiter.TokenBucket, Capacity: 1, RefillRate: 0.001},
		{Algorithm: ratelimiter.LeakyBucket, Capacity: 1, RefillRate: 0.001},
		{Algorithm: ratelimiter.FixedWindowCounter, Limit: 1, WindowSeconds: 3600},
		{Algorithm: ratelimiter.SlidingWindowLog, Limit: 1, WindowSeconds: 3600},
		{Algorithm: ratelimiter.SlidingWindowCounter, Limit: 1, WindowSeconds: 3600},
	}

	for _, cfg := range configs {
		mustAcquire(t, e, "k", cfg)
		if got := mustAcquire(t, e, "k", cfg); got.Allowed {
			t.Fatalf("%s: budget of 1 should be exhausted", cfg.Algorithm)
		}
	}

	e.ResetAll("k")

	for _, cfg := range configs {
		if got := mustAcquire(t, e, "k", cfg); !got.Allowed {
			t.Fatalf("%s: state should be fresh after ResetAll", cfg.Algorithm)
		}
	}
}

// Traffic to one key never affects another.
func TestKeyIsolation(t *testing.T) {
	e := newTestEngine(clock.NewManualClock(0))
	cfg := ratelimiter.Config{Algorithm: ratelimiter.SlidingWindowLog, Limit: 2, WindowSeconds: 60}

	for i := 0; i < 10; i++ {
		mustAcquire(t, e, "noisy", cfg)
	}

	if got := mustAcquire(t, e, "quiet", cfg); !got.Allowed || got.Remaining != 1 {
		t.Fatalf("quiet key got %+v, want allowed with Remaining 1", got)
	}
}

// With time frozen, concurrent hammering of one key admits exactly the
// configured budget, no matter how the goroutines interleave.
func TestConcurrentSameKey_AdmitsExactlyBudget(t *testing.T) {
	e := newTestEngine(clock.NewManualClock(0))
	cfg := ratelimiter.Config{Algorithm: ratelimiter.TokenBucket, Capacity: 50, RefillRate: 1.0}

	const goroutines = 20
	const callsEach = 10

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < callsEach; i++ {
				if result := mustAcquireConcurrent(e, "shared", cfg); result.Allowed {
					admitted.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != 50 {
		t.Fatalf("admitted %d of %d calls, want exactly 50", got, goroutines*callsEach)
	}
}

// Concurrent first touches of distinct keys each get independent state.
func TestConcurrentDistinctKeys(t *testing.T) {
	e := newTestEngine(clock.NewManualClock(0))
	cfg := ratelimiter.Config{Algorithm: ratelimiter.FixedWindowCounter, Limit: 1, WindowSeconds: 60}

	const keys = 64

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for k := 0; k < keys; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			if result := mustAcquireConcurrent(e, fmt.Sprintf("key-%d", k), cfg); result.Allowed {
				admitted.Add(1)
			}
		}(k)
	}
	wg.Wait()

	if got := admitted.Load(); got != keys {
		t.Fatalf("admitted %d, want %d (one per key)", got, keys)
	}
}

// mustAcquireConcurrent is the goroutine-safe variant of mustAcquire:
// t.Fatalf must not be called off the test goroutine, and a config error here
// would be a test bug anyway.
func mustAcquireConcurrent(e *ratelimiter.Engine, key string, cfg ratelimiter.Config) ratelimiter.Result {
	result, err := e.TryAcquire(key, cfg)
	if err != nil {
		panic(err)
	}
	return result
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    ratelimiter.Algorithm
		wantErr bool
	}{
		{"token_bucket", ratelimiter.TokenBucket, false},
		{"TOKEN_BUCKET", ratelimiter.TokenBucket, false},
		{"Sliding_Window_Counter", ratelimiter.SlidingWindowCounter, false},
		{" leaky_bucket ", ratelimiter.LeakyBucket, false},
		{"fixed_window_counter", ratelimiter.FixedWindowCounter, false},
		{"sliding_window_log", ratelimiter.SlidingWindowLog, false},
		{"", "", true},
		{"token-bucket", "", true},
	}

	for _, tt := range tests {
		got, err := ratelimiter.ParseAlgorithm(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ratelimiter.ErrUnknownAlgorithm) {
				t.Errorf("ParseAlgorithm(%q) error = %v, want ErrUnknownAlgorithm", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseAlgorithm(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestConfigBudget(t *testing.T) {
	bucket := ratelimiter.Config{Algorithm: ratelimiter.LeakyBucket, Capacity: 7, Limit: 99}
	if got := bucket.Budget(); got != 7 {
		t.Errorf("bucket Budget() = %d, want Capacity 7", got)
	}

	window := ratelimiter.Config{Algorithm: ratelimiter.SlidingWindowLog, Capacity: 7, Limit: 99}
	if got := window.Budget(); got != 99 {
		t.Errorf("window Budget() = %d, want Limit 99", got)
	}
}
