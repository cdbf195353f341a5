// Package clock provides the cache-line-padded atomic counters that the
// runtime's algorithms share: the global clock/ticket, and the
// last-complete marker. Every field lives on its own cache line so that
// readers spinning on one counter don't false-share with writers of
// another.
package clock

import "sync/atomic"

// padding brings a single uint64 up to the size of a typical cache line
// (64 bytes) so that concurrent counters never share a line.
const padding = 64 - 8

// Counter is a cache-line-isolated atomic word. It backs the global
// clock/ticket, the last-complete marker, and every cohort counter
// (started, cpending, committed, last_order, inplace). Callers decide
// whether it only grows: started is decremented via Sub and inplace is
// toggled via Store.
type Counter struct {
	val atomic.Uint64
	_   [padding]byte
}

// Load reads the counter with acquire semantics.
func (c *Counter) Load() uint64 { return c.val.Load() }

// Store publishes a new value with release semantics.
func (c *Counter) Store(v uint64) { c.val.Store(v) }

// Add performs an atomic fetch-add and returns the new value, mirroring
// __sync_add_and_fetch in the original C runtime.
func (c *Counter) Add(delta uint64) uint64 { return c.val.Add(delta) }

// Sub performs an atomic fetch-sub and returns the new value, mirroring
// __sync_sub_and_fetch.
func (c *Counter) Sub(delta uint64) uint64 { return c.val.Add(-delta) }

// CAS attempts to swap old for new, returning whether it succeeded.
func (c *Counter) CAS(old, new uint64) bool { return c.val.CompareAndSwap(old, new) }

// Max raises the counter to at least v, returning the resulting value.
// Used by algorithm switch-in hooks that must ensure the clock is never
// rolled backwards.
func (c *Counter) Max(v uint64) uint64 {
	for {
		cur := c.val.Load()
		if cur >= v {
			return cur
		}
		if c.val.CompareAndSwap(cur, v) {
			return v
		}
	}
}
