// Package pipelineturbo implements PipelineTurbo: transactions are
// ordered by a global ticket counter assigned once at their first begin,
// and must commit in exactly that order. The oldest transaction runs in
// turbo mode, writing in place since it can never be forced to abort.
//
// Grounded on original_source/libstm/algs/PipelineTurbo.cpp.
package pipelineturbo

import (
	"runtime"
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
var ErrConflict = errors.Wrap(rollback.ErrConflict, "pipelineturbo")

// Algorithm implements registry.Algorithm. The ticket counter and
// last-complete marker it reads live on the shared Runtime (every
// algorithm interprets the same clock and orec table); turbo mode has no
// state of its own beyond what's already on the Tx.
type Algorithm struct {
	rt *registry.Runtime
}

// New constructs a fresh PipelineTurbo instance bound to rt.
func New(rt *registry.Runtime) *Algorithm {
	return &Algorithm{rt: rt}
}

// Name implements registry.Algorithm.
func (a *Algorithm) Name() string { return "PipelineTurbo" }

// IsIrrevocable implements registry.Algorithm.
func (a *Algorithm) IsIrrevocable() bool { return false }

// BecomeIrrevocable implements registry.Algorithm.
func (a *Algorithm) BecomeIrrevocable(*txdesc.Tx) error {
	return errors.New("pipelineturbo: become_irrevocable is not supported")
}

// Begin assigns a ticket only if tx isn't already carrying one from a
// prior abort — PipelineTurbo is fair: an aborted transaction keeps its
// place in line rather than going to the back. If the new transaction is
// already the oldest outstanding one, it starts directly in turbo mode.
func (a *Algorithm) Begin(tx *txdesc.Tx) {
	tx.Algo = a
	tx.OnTxBegin()

	if tx.Order == -1 {
		tx.Order = int64(a.rt.Clock.Add(1))
	}
	tx.TsCache = a.rt.LastComplete.Load()

	if tx.TsCache == uint64(tx.Order-1) {
		tx.GoTurbo(a.turboOps())
		return
	}
	tx.ResetToRO(a.roOps())
}

// Rollback implements registry.Algorithm. Turbo-mode transactions can
// never reach here: self-abort is unsupported in turbo mode, matching
// the original's UNRECOVERABLE guard, enforced by pkg/stm before Rollback
// is ever invoked. Order is deliberately left untouched so the next
// Begin reuses the same ticket.
func (a *Algorithm) Rollback(tx *txdesc.Tx) {
	tx.Aborts++
	tx.ResetLogs()
	tx.OnTxAbort()
	tx.OnRollback()
}

// Quiesce waits for every outstanding ticket up to the current clock
// value to have committed.
func (a *Algorithm) Quiesce() {
	target := a.rt.Clock.Load()
	for a.rt.LastComplete.Load() != target {
		runtime.Gosched()
	}
}

// OnSwitchTo implements registry.Algorithm. The clock must lead every
// orec version already written under a prior algorithm (ClockMax backs
// up whichever algorithm used the clock as a zero-one mutex), and every
// attached thread must drop any ticket it thinks it's holding so the
// next Begin assigns a fresh one under the new order.
func (a *Algorithm) OnSwitchTo() {
	cur := a.rt.Clock.Load()
	if max := a.rt.ClockMax.Load(); max > cur {
		a.rt.Clock.Store(max)
		cur = max
	}
	a.rt.LastComplete.Store(cur)
	a.rt.ForEachThread(func(tx *txdesc.Tx) { tx.Order = -1 })
}

func (a *Algorithm) roOps() txdesc.Ops {
	return txdesc.Ops{Read: a.readRO, Write: a.writeRO, Commit: a.commitRO}
}

func (a *Algorithm) rwOps() txdesc.Ops {
	return txdesc.Ops{Read: a.readRW, Write: a.writeRW, Commit: a.commitRW}
}

func (a *Algorithm) turboOps() txdesc.Ops {
	return txdesc.Ops{Read: a.readTurbo, Write: a.writeTurbo, Commit: a.commitTurbo}
}

// readRO skips pre-validation entirely: the commit time is fixed at
// begin, so a version ahead of ts_cache is an immediate abort rather
// than something worth rechecking against a moving target. If
// last_complete has moved past ts_cache since begin, it revalidates the
// whole read set in case this thread can jump straight to turbo mode.
func (a *Algorithm) readRO(tx *txdesc.Tx, addr *uint64, mask uint64) uint64 {
	val := *addr & mask
	o := a.rt.Table.Get(unsafe.Pointer(addr))
	ivt := o.Version()
	if ivt > tx.TsCache {
		rollback.Abort(errors.Wrap(ErrConflict, "orec advanced past ts_cache on read"))
	}
	tx.LogRead(o)
	if fc := a.rt.LastComplete.Load(); fc > tx.TsCache {
		a.validate(tx, fc)
	}
	return val
}

func (a *Algorithm) readRW(tx *txdesc.Tx, addr *uint64, mask uint64) uint64 {
	if val, m, found := tx.Writes.Find(addr); found {
		return txlog.MergeMasked(*addr, val, m) & mask
	}
	return a.readRO(tx, addr, mask)
}

func (a *Algorithm) readTurbo(_ *txdesc.Tx, addr *uint64, mask uint64) uint64 {
	return *addr & mask
}

func (a *Algorithm) writeRO(tx *txdesc.Tx, addr *uint64, val, mask uint64) {
	tx.LogWrite(addr, val, mask)
	tx.OnFirstWrite(a.rwOps())
}

func (a *Algorithm) writeRW(tx *txdesc.Tx, addr *uint64, val, mask uint64) {
	tx.LogWrite(addr, val, mask)
}

// writeTurbo stamps the orec with this (the oldest) transaction's order
// before the in-place store, the same fence-ordered pattern every
// turbo-mode writer in this codebase follows.
func (a *Algorithm) writeTurbo(tx *txdesc.Tx, addr *uint64, val, mask uint64) {
	o := a.rt.Table.Get(unsafe.Pointer(addr))
	o.StoreVersion(uint64(tx.Order))
	txlog.StoreMasked(addr, val, mask)
}

// validate rechecks the read set against the current ts_cache, adopts
// the fresher finish_cache as ts_cache if every entry still holds, and,
// if this transaction is now the oldest
// outstanding one, writes its whole buffered write set back and
// promotes to turbo mode in the same step — exactly the original's
// write-back-then-GoTurbo sequence, done here rather than split across a
// second pass.
func (a *Algorithm) validate(tx *txdesc.Tx, finishCache uint64) {
	ok := true
	tx.Reads.ForEach(func(o *orec.Orec) bool {
		if o.Version() > tx.TsCache {
			ok = false
			return false
		}
		return true
	})
	if !ok {
		rollback.Abort(errors.Wrap(ErrConflict, "read set invalidated during pipeline revalidation"))
	}
	tx.TsCache = finishCache
	if tx.TsCache != uint64(tx.Order-1) || tx.Writes.Len() == 0 {
		return
	}
	tx.Writes.ForEach(func(e txlog.WriteEntry) {
		o := a.rt.Table.Get(unsafe.Pointer(e.Addr))
		o.StoreVersion(uint64(tx.Order))
		txlog.StoreMasked(e.Addr, e.Val, e.Mask)
	})
	tx.GoTurbo(a.turboOps())
}

func (a *Algorithm) commitRO(tx *txdesc.Tx) {
	for a.rt.LastComplete.Load() != uint64(tx.Order-1) {
		if !a.rt.AlgoMatches(tx) {
			rollback.Abort(errors.Wrap(ErrConflict, "algorithm switched while awaiting commit turn"))
		}
		runtime.Gosched()
	}
	tx.Reads.ForEach(func(o *orec.Orec) bool {
		if o.Version() > tx.TsCache {
			rollback.Abort(errors.Wrap(ErrConflict, "read set invalidated at commit"))
		}
		return true
	})
	a.rt.LastComplete.Store(uint64(tx.Order))
	tx.Order = -1
	tx.Reads.Reset()
	tx.CommitsRO++
	tx.OnTxCommit()
}

func (a *Algorithm) commitRW(tx *txdesc.Tx) {
	for a.rt.LastComplete.Load() != uint64(tx.Order-1) {
		if !a.rt.AlgoMatches(tx) {
			rollback.Abort(errors.Wrap(ErrConflict, "algorithm switched while awaiting commit turn"))
		}
		runtime.Gosched()
	}
	tx.Reads.ForEach(func(o *orec.Orec) bool {
		if o.Version() > tx.TsCache {
			rollback.Abort(errors.Wrap(ErrConflict, "read set invalidated at commit"))
		}
		return true
	})

	order := uint64(tx.Order)
	tx.Writes.ForEach(func(e txlog.WriteEntry) {
		o := a.rt.Table.Get(unsafe.Pointer(e.Addr))
		o.StoreVersion(order)
		txlog.StoreMasked(e.Addr, e.Val, e.Mask)
	})

	a.rt.LastComplete.Store(order)
	tx.Order = -1
	tx.ResetLogs()
	tx.CommitsRW++
	tx.OnTxCommit()
	tx.ResetToRO(a.roOps())
}

// commitTurbo has nothing left to validate or write back: every turbo
// write already landed in memory with its orec stamped. Marking self
// complete is the entire commit.
func (a *Algorithm) commitTurbo(tx *txdesc.Tx) {
	order := uint64(tx.Order)
	a.rt.LastComplete.Store(order)
	tx.Order = -1
	tx.ResetLogs()
	tx.CommitsRW++
	tx.OnTxCommit()
	tx.ResetToRO(a.roOps())
}
