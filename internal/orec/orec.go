// Package orec implements the ownership-record table: a fixed-size array
// of versioned words, addressed by a stable hash of the protected memory
// location, that every algorithm consults to detect conflicts.
package orec

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"

	"github.com/cespare/xxhash"
)

// LockBit marks the high bit of v.all as reserved for lock tokens, keeping
// lock tokens and version numbers disjoint as required by the data model:
// a version is always < LockBit, a lock token always has it set.
const LockBit = uint64(1) << 63

// Orec is a single ownership record. v holds either a monotonic version
// number or, while a writer holds it, that writer's lock token (with
// LockBit set). p holds the version that was current immediately before
// the orec was locked, so rollback can restore it. Only the lock holder
// ever writes p, so it needs no atomic wrapper.
type Orec struct {
	v atomic.Uint64
	p uint64
	_ [64 - 16]byte // pad to a cache line; v and p together are 16 bytes
}

// Version returns the current v field, whatever it holds (version or lock
// token). Callers compare against IsLocked to tell the two apart.
func (o *Orec) Version() uint64 { return o.v.Load() }

// IsLocked reports whether a raw v value denotes a lock token rather than
// a plain version number.
func IsLocked(v uint64) bool { return v&LockBit != 0 }

// StoreVersion unconditionally stamps the orec with a new version. Used by
// algorithms (CohortsEager, PipelineTurbo) that own the orec outright at
// the moment of the call, with no intervening CAS required.
func (o *Orec) StoreVersion(v uint64) { o.v.Store(v) }

// TryLock attempts to move the orec from an observed version `from` to the
// lock token `token` (LockBit set). On success it remembers `from` in p so
// a rollback can restore it.
func (o *Orec) TryLock(from, token uint64) bool {
	if !o.v.CompareAndSwap(from, token) {
		return false
	}
	o.p = from
	return true
}

// Unlock stamps the orec with a fresh version, releasing any lock held on
// it. Must only be called by the lock holder.
func (o *Orec) Unlock(newVersion uint64) { o.v.Store(newVersion) }

// RestoreFromPrevious reverts the orec to the version recorded in p,
// undoing a TryLock. Must only be called by the lock holder, on rollback.
func (o *Orec) RestoreFromPrevious() { o.v.Store(o.p) }

// Previous returns the version that was current before this orec was
// locked (only meaningful while the orec is held).
func (o *Orec) Previous() uint64 { return o.p }

// Table is the fixed-size, hash-addressed orec array. Its size is rounded
// up to a power of two so indexing can use a bitmask instead of a modulo.
type Table struct {
	orecs []Orec
	mask  uint64
}

// NewTable allocates a table with at least `size` slots, rounded up to the
// next power of two.
func NewTable(size int) *Table {
	n := nextPow2(size)
	return &Table{
		orecs: make([]Orec, n),
		mask:  uint64(n - 1),
	}
}

// Get maps addr to its orec via a stable hash of the pointer value. Many
// addresses alias to the same orec; that's the intended, bounded-precision
// tradeoff of a hashed table, not a bug.
func (t *Table) Get(addr unsafe.Pointer) *Orec {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(uintptr(addr)))
	h := xxhash.Sum64(buf[:])
	return &t.orecs[h&t.mask]
}

// Len reports the number of slots in the table.
func (t *Table) Len() int { return len(t.orecs) }

func nextPow2(n int) int {
	if n < 1 {
		n = 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
