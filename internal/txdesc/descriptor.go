// Package txdesc defines the per-thread transaction descriptor and the
// mode-specialized dispatch slots every algorithm installs into it.
package txdesc

import (
	"github.com/dborchard/gostm/internal/orec"
	"github.com/dborchard/gostm/internal/rollback"
	"github.com/dborchard/gostm/internal/txlog"
	"github.com/pkg/errors"
)

// Mode names which of a transaction's three dispatch slots is active.
type Mode int

const (
	// ModeReadOnly transactions carry no write set.
	ModeReadOnly Mode = iota
	// ModeReadWrite transactions buffer writes in a redo or undo log.
	ModeReadWrite
	// ModeTurbo transactions write in place and cannot abort.
	ModeTurbo
)

func (m Mode) String() string {
	switch m {
	case ModeReadOnly:
		return "read-only"
	case ModeReadWrite:
		return "read-write"
	case ModeTurbo:
		return "turbo"
	default:
		return "unknown"
	}
}

// ReadFunc, WriteFunc and CommitFunc are the mode-specialized operations
// an algorithm installs into a Tx's dispatch slots at begin or at a mode
// transition (OnFirstWrite, GoTurbo, ResetToRO).
type (
	ReadFunc   func(tx *Tx, addr *uint64, mask uint64) uint64
	WriteFunc  func(tx *Tx, addr *uint64, val uint64, mask uint64)
	CommitFunc func(tx *Tx)
)

// Ops bundles the three dispatch slots for one mode.
type Ops struct {
	Read   ReadFunc
	Write  WriteFunc
	Commit CommitFunc
}

// Algo is the narrow view of an algorithm a Tx needs to detect an
// in-flight switch_algorithm: its stable name.
// Spin loops compare their cached Algo against the registry's active one
// by name to decide whether to self-abort.
type Algo interface {
	Name() string
}

// Callbacks are the allocator/user-callback hooks the spec's design notes
// delegate to an external epoch/quiescence allocator. The core only calls
// them; it never interprets them.
type Callbacks struct {
	OnTxBegin  func()
	OnTxCommit func()
	OnTxAbort  func()
	OnRollback func()
	// OnGoTurbo fires whenever GoTurbo promotes this transaction, for a
	// caller that wants to count turbo promotions (e.g. a metrics counter).
	// It is distinct from the allocator hooks above: this core calls it
	// itself rather than merely forwarding it.
	OnGoTurbo func()
}

func (c Callbacks) onTxBegin() {
	if c.OnTxBegin != nil {
		c.OnTxBegin()
	}
}
func (c Callbacks) onTxCommit() {
	if c.OnTxCommit != nil {
		c.OnTxCommit()
	}
}
func (c Callbacks) onTxAbort() {
	if c.OnTxAbort != nil {
		c.OnTxAbort()
	}
}
func (c Callbacks) onRollback() {
	if c.OnRollback != nil {
		c.OnRollback()
	}
}
func (c Callbacks) onGoTurbo() {
	if c.OnGoTurbo != nil {
		c.OnGoTurbo()
	}
}

// Tx is the per-thread transaction descriptor: nesting depth, statistics,
// the currently installed dispatch slots, logs, and the algorithm-specific
// scratch fields (Order, MyLock, TsCache, StartTime) that exactly one
// active algorithm interprets at a time.
type Tx struct {
	// NestingDepth counts flat-nested begins; only the outermost begin/end
	// runs the protocol, matching the external interface's begin(extra).
	NestingDepth int

	Aborts     uint64
	CommitsRO  uint64
	CommitsRW  uint64

	// StartTime is the clock sample taken at begin (LLTAMD64, OrecEagerRedo).
	StartTime uint64
	// TsCache is the last observed last-complete value (CohortsEager,
	// PipelineTurbo).
	TsCache uint64
	// Order is the commit ticket, or -1 if none is currently held
	// (PipelineTurbo; also used as CohortsEager's per-commit order).
	Order int64
	// MyLock is this thread's stable lock token, assigned at attach.
	MyLock uint64

	Mode Mode
	Algo Algo

	Ops Ops

	Reads  txlog.ReadSet
	Writes txlog.WriteSet
	Undo   txlog.UndoLog
	Locks  txlog.LockSet

	// MaxReadSetLen and MaxWriteSetLen bound the read and write sets; 0
	// means unbounded. LogRead/LogWrite enforce them.
	MaxReadSetLen  int
	MaxWriteSetLen int

	Callbacks Callbacks
}

// New creates a detached descriptor with the lock token assigned by
// attach_thread. Order starts at -1: "no ticket held". maxReadSetLen and
// maxWriteSetLen are the capacity bounds LogRead/LogWrite enforce; 0 means
// unbounded.
func New(myLock uint64, callbacks Callbacks, maxReadSetLen, maxWriteSetLen int) *Tx {
	return &Tx{
		MyLock:         myLock,
		Order:          -1,
		Callbacks:      callbacks,
		MaxReadSetLen:  maxReadSetLen,
		MaxWriteSetLen: maxWriteSetLen,
	}
}

// LogRead records o in the read set and aborts with a capacity error if
// this pushes the set past MaxReadSetLen, per the data model's read/write
// set bound property.
func (tx *Tx) LogRead(o *orec.Orec) {
	tx.Reads.Insert(o)
	if tx.MaxReadSetLen > 0 && tx.Reads.Len() > tx.MaxReadSetLen {
		rollback.Abort(errors.Wrap(rollback.ErrCapacity, "read set exceeded configured bound"))
	}
}

// LogWrite records a pending write and aborts with a capacity error if
// this pushes the set past MaxWriteSetLen.
func (tx *Tx) LogWrite(addr *uint64, val, mask uint64) {
	tx.Writes.Insert(addr, val, mask)
	if tx.MaxWriteSetLen > 0 && tx.Writes.Len() > tx.MaxWriteSetLen {
		rollback.Abort(errors.Wrap(rollback.ErrCapacity, "write set exceeded configured bound"))
	}
}

// ResetLogs clears every log, used by begin/rollback/commit per the
// lifecycle in the data model.
func (tx *Tx) ResetLogs() {
	tx.Reads.Reset()
	tx.Writes.Reset()
	tx.Undo.Reset()
	tx.Locks.Reset()
}

// OnTxBegin, OnTxCommit, OnTxAbort, OnRollback forward to the allocator
// hooks an external epoch-reclamation scheme installs.
func (tx *Tx) OnTxBegin()  { tx.Callbacks.onTxBegin() }
func (tx *Tx) OnTxCommit() { tx.Callbacks.onTxCommit() }
func (tx *Tx) OnTxAbort()  { tx.Callbacks.onTxAbort() }
func (tx *Tx) OnRollback() { tx.Callbacks.onRollback() }

// OnFirstWrite installs the read-write dispatch triple and switches mode,
// the transition every algorithm's *WriteRO performs on its first call.
func (tx *Tx) OnFirstWrite(ops Ops) {
	tx.Mode = ModeReadWrite
	tx.Ops = ops
}

// GoTurbo promotes the transaction to turbo mode: in-place writes, no
// abort possible from this point on.
func (tx *Tx) GoTurbo(ops Ops) {
	tx.Mode = ModeTurbo
	tx.Ops = ops
	tx.Callbacks.onGoTurbo()
}

// ResetToRO installs the read-only dispatch triple, the transition every
// algorithm's writing commit performs once it has successfully published,
// readying the descriptor for its next transaction.
func (tx *Tx) ResetToRO(ops Ops) {
	tx.Mode = ModeReadOnly
	tx.Ops = ops
}

// Read dispatches through the currently installed read slot.
func (tx *Tx) Read(addr *uint64, mask uint64) uint64 { return tx.Ops.Read(tx, addr, mask) }

// Write dispatches through the currently installed write slot.
func (tx *Tx) Write(addr *uint64, val, mask uint64) { tx.Ops.Write(tx, addr, val, mask) }

// Commit dispatches through the currently installed commit slot.
func (tx *Tx) Commit() { tx.Ops.Commit(tx) }
