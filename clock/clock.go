// Package clock abstracts the time source used by the rate-limiting engine.
//
// All algorithms operate on millisecond deltas and aligned window ids, so a
// plain wall clock is sufficient in production. Tests inject a ManualClock to
// control time progression without sleeps.
package clock

import "time"

// Clock supplies the current time in milliseconds since the Unix epoch.
//
// Implementations must be safe for concurrent use. Callers only ever compute
// differences between readings, so the epoch itself is irrelevant.
type Clock interface {
	NowMillis() int64
}

// SystemClock reads the wall clock. It is stateless and can be shared freely.
type SystemClock struct{}

// NewSystemClock returns the production clock.
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// NowMillis returns time.Now in milliseconds since the Unix epoch.
func (c *SystemClock) NowMillis() int64 {
	return time.Now().UnixMilli()
}
