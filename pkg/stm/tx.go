package stm

import (
	"github.com/dborchard/gostm/internal/registry"
	"github.com/dborchard/gostm/internal/rollback"
	"github.com/dborchard/gostm/internal/txdesc"
)

// Tx is an application thread's handle on the STM core: attach once,
// begin/commit many times. It wraps the internal descriptor and caches
// the algorithm active at the start of the outermost begin, so Commit,
// Rollback, IsIrrevocable and BecomeIrrevocable can call back into it
// without re-resolving the registry on every call.
type Tx struct {
	rt    *Runtime
	inner *txdesc.Tx
	algo  registry.Algorithm
}

// Begin starts (or, if already inside one, nests into) a transaction.
// Only the outermost Begin/Commit pair runs the real protocol, matching
// the external interface's begin(extra) flat-nesting rule.
func (tx *Tx) Begin() {
	tx.inner.NestingDepth++
	if tx.inner.NestingDepth > 1 {
		return
	}
	tx.rt.inner.Reg.Active().Begin(tx.inner)
	// Begin installs itself into tx.inner.Algo; the registry.Algorithm
	// this core ever assigns there always also satisfies the full
	// interface, since every algs/* package implements all of it.
	tx.algo = tx.inner.Algo.(registry.Algorithm)
}

// Read performs a transactional word read.
func (tx *Tx) Read(addr *uint64, mask uint64) uint64 {
	return tx.inner.Read(addr, mask)
}

// Write performs a transactional word write.
func (tx *Tx) Write(addr *uint64, val, mask uint64) {
	tx.inner.Write(addr, val, mask)
}

// Commit closes the current nesting level. Only the outermost Commit
// actually dispatches to the algorithm's commit operation.
func (tx *Tx) Commit() {
	tx.inner.NestingDepth--
	if tx.inner.NestingDepth > 0 {
		return
	}
	tx.inner.Commit()
}

// Rollback restores tx to its pre-begin state and never returns to its
// caller directly: it unwinds via rollback.Abort, to be recovered by
// Atomic's retry loop. Calling Rollback on a turbo-mode transaction is a
// programming error (turbo cannot abort) and is fatal, not a conflict.
func (tx *Tx) Rollback() {
	if tx.inner.Mode == txdesc.ModeTurbo {
		rollback.Fatal("stm: rollback requested on a turbo-mode transaction for algorithm %q", tx.algo.Name())
	}
	rollback.Abort(ErrConflict)
}

// IsIrrevocable reports whether tx is currently running irrevocably.
// Always false: no algorithm this core ships supports irrevocable mode.
func (tx *Tx) IsIrrevocable() bool {
	return tx.algo.IsIrrevocable()
}

// BecomeIrrevocable always fails: per the error taxonomy, an
// irrevocability request is fatal to the calling transaction rather than
// something a retry loop can recover from, since no algorithm this core
// ships supports it.
func (tx *Tx) BecomeIrrevocable() error {
	if err := tx.algo.BecomeIrrevocable(tx.inner); err != nil {
		rollback.Fatal("%v", ErrIrrevocableUnsupported)
	}
	return nil
}

// Stats reports this descriptor's lifetime counters.
func (tx *Tx) Stats() (aborts, commitsRO, commitsRW uint64) {
	return tx.inner.Aborts, tx.inner.CommitsRO, tx.inner.CommitsRW
}
