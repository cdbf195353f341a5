// Package oreceagerredo implements OrecEagerRedo: orec-based eager
// acquisition (a write locks its orec immediately, not at commit) paired
// with a redo log instead of an undo log. Unlike the lazy-acquire family,
// a transaction that finds its read or write orec stale but unlocked
// doesn't abort — it rescales its start time to the current clock,
// revalidates everything read so far, and keeps going.
//
// Grounded on original_source/lib/OrecEagerRedo.cpp.
package oreceagerredo

import (
	"unsafe"

	"github.com/dborchard/gostm/internal/orec"
	"github.com/dborchard/gostm/internal/registry"
	"github.com/dborchard/gostm/internal/rollback"
	"github.com/dborchard/gostm/internal/txdesc"
	"github.com/dborchard/gostm/internal/txlog"
	"github.com/pkg/errors"
)

// ErrConflict is wrapped with context before every rollback.Abort this
// algorithm performs.
var ErrConflict = errors.Wrap(rollback.ErrConflict, "oreceagerredo")

// Algorithm implements registry.Algorithm. Read and write use the same
// dispatch slots throughout a transaction's life; OnFirstWrite only
// flips Tx.Mode for bookkeeping; it never needs different functions once
// a transaction starts writing, unlike the lazy-acquire algorithms.
type Algorithm struct {
	rt *registry.Runtime
}

// New constructs a fresh OrecEagerRedo instance bound to rt.
func New(rt *registry.Runtime) *Algorithm {
	return &Algorithm{rt: rt}
}

// Name implements registry.Algorithm.
func (a *Algorithm) Name() string { return "OrecEagerRedo" }

// IsIrrevocable implements registry.Algorithm.
func (a *Algorithm) IsIrrevocable() bool { return false }

// BecomeIrrevocable implements registry.Algorithm.
func (a *Algorithm) BecomeIrrevocable(*txdesc.Tx) error {
	return errors.New("oreceagerredo: become_irrevocable is not supported")
}

// Begin samples the clock as the start time. Reads and writes both
// eagerly check orecs against it from the very first operation.
func (a *Algorithm) Begin(tx *txdesc.Tx) {
	tx.Algo = a
	tx.OnTxBegin()
	tx.StartTime = a.rt.Clock.Load()
	tx.ResetToRO(a.ops())
}

// Rollback releases every orec this transaction eagerly locked,
// restoring each one's pre-acquisition version, then clears every log.
func (a *Algorithm) Rollback(tx *txdesc.Tx) {
	tx.Locks.RestoreAll()
	tx.ResetLogs()
	tx.OnTxAbort()
	tx.OnRollback()
	tx.ResetToRO(a.ops())
}

// Quiesce is a no-op: there is no global ordering barrier to drain,
// only per-orec locks already released by the time a transaction
// finishes one way or another.
func (a *Algorithm) Quiesce() {}

// OnSwitchTo implements registry.Algorithm. The shared clock needs no
// adjustment on entry; orec versions written under a different
// clock-based algorithm remain meaningful start-time comparisons here.
func (a *Algorithm) OnSwitchTo() {}

func (a *Algorithm) ops() txdesc.Ops {
	return txdesc.Ops{Read: a.read, Write: a.write, Commit: a.commit}
}

// read serves a location eagerly: data is loaded before the orec is
// checked, matching the original's load-then-CFENCE-then-check ordering —
// a writer always eagerly CASes the orec to its lock token before mutating
// the word and only releases it after Writeback, so loading data first
// guarantees any overlapping writer's acquire-mutate-release sequence is
// caught by the orec check, either as locked or as a newer version, rather
// than slipping in between an orec sample and a later data load. If the
// orec is no newer than our start time, the value we already loaded is
// valid outright. If we already hold the lock (because we wrote this
// address earlier in the same transaction), the answer comes from the
// redo log if present, or the loaded value. If another transaction holds
// the lock, that's a genuine conflict. If it's merely stale and unlocked,
// rescale our start time to the current clock, revalidate everything read
// so far, and retry rather than abort.
func (a *Algorithm) read(tx *txdesc.Tx, addr *uint64, mask uint64) uint64 {
	o := a.rt.Table.Get(unsafe.Pointer(addr))
	for {
		val := txlog.LoadWord(addr)
		ivt := o.Version()
		if ivt <= tx.StartTime {
			tx.LogRead(o)
			return val & mask
		}
		if ivt == tx.MyLock {
			if wval, m, found := tx.Writes.Find(addr); found {
				return txlog.MergeMasked(val, wval, m) & mask
			}
			return val & mask
		}
		if orec.IsLocked(ivt) {
			rollback.Abort(errors.Wrap(ErrConflict, "orec held by another writer"))
		}
		a.rescale(tx)
	}
}

// write eagerly acquires the write-set orec in place, logging the
// pre-acquisition version for rollback, then buffers the value in the
// redo log. Stale-but-unlocked orecs trigger the same rescale-and-retry
// as read, never an abort.
func (a *Algorithm) write(tx *txdesc.Tx, addr *uint64, val, mask uint64) {
	if tx.Mode != txdesc.ModeReadWrite {
		tx.OnFirstWrite(a.ops())
	}
	tx.LogWrite(addr, val, mask)

	o := a.rt.Table.Get(unsafe.Pointer(addr))
	for {
		ivt := o.Version()
		if ivt <= tx.StartTime {
			if !o.TryLock(ivt, tx.MyLock) {
				rollback.Abort(errors.Wrap(ErrConflict, "failed to acquire orec for write"))
			}
			tx.Locks.Insert(o)
			return
		}
		if ivt == tx.MyLock {
			return
		}
		if orec.IsLocked(ivt) {
			rollback.Abort(errors.Wrap(ErrConflict, "orec held by another writer"))
		}
		a.rescale(tx)
	}
}

// rescale samples the current clock, revalidates everything read so far
// against the old start_time, and only then advances start_time to the
// sampled value. A transaction
// only reaches here because the orec it just inspected was stale but
// unlocked — after this, the very same orec will satisfy ivt <=
// tx.StartTime on the retry.
func (a *Algorithm) rescale(tx *txdesc.Tx) {
	newTS := a.rt.Clock.Load()
	a.validate(tx)
	tx.StartTime = newTS
}

// validate confirms every orec in the read set is either still within
// start time or locked by this transaction itself.
func (a *Algorithm) validate(tx *txdesc.Tx) {
	tx.Reads.ForEach(func(o *orec.Orec) bool {
		ivt := o.Version()
		if ivt > tx.StartTime && ivt != tx.MyLock {
			rollback.Abort(errors.Wrap(ErrConflict, "read set invalidated during rescale"))
		}
		return true
	})
}

// commit takes the read-only fast path when nothing was written;
// otherwise it validates the read set once more, writes back the redo
// log, advances the global clock, and releases every held lock stamped
// with the new end time.
func (a *Algorithm) commit(tx *txdesc.Tx) {
	if tx.Writes.Len() == 0 {
		tx.Reads.Reset()
		tx.CommitsRO++
		tx.OnTxCommit()
		return
	}

	a.validate(tx)

	tx.Writes.Writeback()

	endTime := a.rt.Clock.Add(1)
	tx.Locks.ForEach(func(o *orec.Orec) { o.Unlock(endTime) })

	tx.ResetLogs()
	tx.CommitsRW++
	tx.OnTxCommit()
	tx.ResetToRO(a.ops())
}
