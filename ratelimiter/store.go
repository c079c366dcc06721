package ratelimiter

import "sync"

// keyStates maps rate-limit keys to per-key state structs for one strategy.
//
// Lookups are lock-free. First-touch insertion goes through LoadOrStore, which
// is idempotent: two concurrent first calls for the same key observe exactly
// one state instance. Mutating the state itself requires the state's own
// mutex, never a map-wide lock, so contention scales with concurrent traffic
// to a single key rather than across keys.
type keyStates[S any] struct {
	entries sync.Map // key -> *S
}

// get returns the state for key, constructing it with fresh on first touch.
func (m *keyStates[S]) get(key string, fresh func() *S) *S {
	if v, ok := m.entries.Load(key); ok {
		return v.(*S)
	}
	v, _ := m.entries.LoadOrStore(key, fresh())
	return v.(*S)
}

// reset removes the state for key. The next get constructs a fresh one.
func (m *keyStates[S]) reset(key string) {
	m.entries.Delete(key)
}
