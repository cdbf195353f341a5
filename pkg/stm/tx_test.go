package stm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginCommitRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)
	tx := rt.AttachThread()
	var v uint64 = 41

	tx.Begin()
	got := tx.Read(&v, ^uint64(0))
	tx.Write(&v, got+1, ^uint64(0))
	tx.Commit()

	assert.Equal(t, uint64(42), v)
}

func TestNestedBeginOnlyOutermostRunsProtocol(t *testing.T) {
	rt := newTestRuntime(t)
	tx := rt.AttachThread()
	var v uint64 = 1

	tx.Begin()
	tx.Begin() // nested; must not re-enter the algorithm's Begin
	tx.Write(&v, 2, ^uint64(0))
	tx.Commit() // inner commit: must not dispatch yet
	assert.Equal(t, uint64(1), v, "write must not be visible until the outermost commit")
	tx.Commit() // outermost commit
	assert.Equal(t, uint64(2), v)
}

func TestRollbackViaAtomicRetries(t *testing.T) {
	rt := newTestRuntime(t)
	var shared uint64

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			tx := rt.AttachThread()
			Atomic(tx, func(tx *Tx) {
				cur := tx.Read(&shared, ^uint64(0))
				tx.Write(&shared, cur+1, ^uint64(0))
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(n), shared)
}

func TestIsIrrevocableAlwaysFalse(t *testing.T) {
	rt := newTestRuntime(t)
	tx := rt.AttachThread()
	tx.Begin()
	assert.False(t, tx.IsIrrevocable())
	tx.Commit()
}

func TestBecomeIrrevocableIsFatal(t *testing.T) {
	rt := newTestRuntime(t)
	tx := rt.AttachThread()
	tx.Begin()
	assert.Panics(t, func() { _ = tx.BecomeIrrevocable() })
}

func TestStatsReflectCommitsAndAborts(t *testing.T) {
	rt := newTestRuntime(t)
	tx := rt.AttachThread()
	var v uint64

	tx.Begin()
	tx.Write(&v, 5, ^uint64(0))
	tx.Commit()

	aborts, _, commitsRW := tx.Stats()
	require.Equal(t, uint64(0), aborts)
	require.Equal(t, uint64(1), commitsRW)
}
