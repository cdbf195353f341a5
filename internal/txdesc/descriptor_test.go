package txdesc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStartsReadOnlyWithNoOrder(t *testing.T) {
	tx := New(42, Callbacks{}, 4096, 4096)
	assert.Equal(t, ModeReadOnly, tx.Mode)
	assert.Equal(t, int64(-1), tx.Order)
	assert.Equal(t, uint64(42), tx.MyLock)
}

func TestModeTransitions(t *testing.T) {
	tx := New(1, Callbacks{}, 4096, 4096)

	rwCalled := false
	rwOps := Ops{
		Read:   func(tx *Tx, addr *uint64, mask uint64) uint64 { rwCalled = true; return 0 },
		Write:  func(tx *Tx, addr *uint64, val, mask uint64) {},
		Commit: func(tx *Tx) {},
	}
	tx.OnFirstWrite(rwOps)
	assert.Equal(t, ModeReadWrite, tx.Mode)
	tx.Read(nil, 0)
	assert.True(t, rwCalled)

	turboOps := Ops{
		Read:   func(tx *Tx, addr *uint64, mask uint64) uint64 { return 0 },
		Write:  func(tx *Tx, addr *uint64, val, mask uint64) {},
		Commit: func(tx *Tx) {},
	}
	tx.GoTurbo(turboOps)
	assert.Equal(t, ModeTurbo, tx.Mode)

	roOps := Ops{
		Read:   func(tx *Tx, addr *uint64, mask uint64) uint64 { return 0 },
		Write:  func(tx *Tx, addr *uint64, val, mask uint64) {},
		Commit: func(tx *Tx) {},
	}
	tx.ResetToRO(roOps)
	assert.Equal(t, ModeReadOnly, tx.Mode)
}

func TestCallbacksFireWhenSet(t *testing.T) {
	var begins, commits, aborts, rollbacks int
	tx := New(1, Callbacks{
		OnTxBegin:  func() { begins++ },
		OnTxCommit: func() { commits++ },
		OnTxAbort:  func() { aborts++ },
		OnRollback: func() { rollbacks++ },
	}, 4096, 4096)

	tx.OnTxBegin()
	tx.OnTxCommit()
	tx.OnTxAbort()
	tx.OnRollback()

	assert.Equal(t, 1, begins)
	assert.Equal(t, 1, commits)
	assert.Equal(t, 1, aborts)
	assert.Equal(t, 1, rollbacks)
}

func TestCallbacksAreOptional(t *testing.T) {
	tx := New(1, Callbacks{}, 4096, 4096)
	assert.NotPanics(t, func() {
		tx.OnTxBegin()
		tx.OnTxCommit()
		tx.OnTxAbort()
		tx.OnRollback()
	})
}

func TestResetLogsClearsEverything(t *testing.T) {
	tx := New(1, Callbacks{}, 4096, 4096)
	var word uint64
	tx.Reads.Insert(nil)
	tx.Writes.Insert(&word, 1, ^uint64(0))
	tx.Undo.Record(&word, 0, ^uint64(0))

	tx.ResetLogs()
	assert.Equal(t, 0, tx.Reads.Len())
	assert.Equal(t, 0, tx.Writes.Len())
	assert.Equal(t, 0, tx.Undo.Len())
	assert.Equal(t, 0, tx.Locks.Len())
}
