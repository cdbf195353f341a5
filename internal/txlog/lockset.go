package txlog

import "github.com/dborchard/gostm/internal/orec"

// LockSet is the subset of orecs a writer has locked (LLTAMD64 at
// commit, OrecEagerRedo at write time), so rollback can revert each one's
// version from its saved previous value.
type LockSet struct {
	orecs []*orec.Orec
}

// Insert records an orec this transaction has locked.
func (s *LockSet) Insert(o *orec.Orec) { s.orecs = append(s.orecs, o) }

// Len reports how many orecs are held.
func (s *LockSet) Len() int { return len(s.orecs) }

// ForEach iterates the locked orecs in acquisition order.
func (s *LockSet) ForEach(fn func(o *orec.Orec)) {
	for _, o := range s.orecs {
		fn(o)
	}
}

// ReleaseWithVersion stamps every locked orec with newVersion, publishing
// the commit and releasing the locks in one step.
func (s *LockSet) ReleaseWithVersion(newVersion uint64) {
	for _, o := range s.orecs {
		o.Unlock(newVersion)
	}
}

// RestoreAll reverts every locked orec to its pre-lock version, used on
// rollback.
func (s *LockSet) RestoreAll() {
	for _, o := range s.orecs {
		o.RestoreFromPrevious()
	}
}

// Reset clears the set for reuse.
func (s *LockSet) Reset() { s.orecs = s.orecs[:0] }
