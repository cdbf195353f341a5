package lltamd64

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/dborchard/gostm/internal/registry"
	"github.com/dborchard/gostm/internal/rollback"
	"github.com/dborchard/gostm/internal/txdesc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsafeAddr(p *uint64) unsafe.Pointer { return unsafe.Pointer(p) }

func newRuntime(t *testing.T) (*registry.Runtime, *Algorithm) {
	t.Helper()
	rt := registry.NewRuntime(64, nil)
	algo := New(rt)
	rt.Reg.Register(algo)
	require.NoError(t, rt.Reg.SwitchTo(algo.Name()))
	return rt, algo
}

func runAtomic(algo *Algorithm, tx *txdesc.Tx, fn func()) {
	for {
		aborted := func() (aborted bool) {
			defer func() {
				if _, a := rollback.Recover(); a {
					algo.Rollback(tx)
					aborted = true
				}
			}()
			algo.Begin(tx)
			fn()
			return false
		}()
		if !aborted {
			return
		}
	}
}

func TestReadOnlyCommit(t *testing.T) {
	rt, algo := newRuntime(t)
	tx := rt.AttachThread(txdesc.Callbacks{})
	var v uint64 = 7

	algo.Begin(tx)
	got := tx.Read(&v, ^uint64(0))
	tx.Commit()

	assert.Equal(t, uint64(7), got)
	assert.Equal(t, uint64(1), tx.CommitsRO)
}

func TestWriteIsBufferedUntilCommit(t *testing.T) {
	rt, algo := newRuntime(t)
	tx := rt.AttachThread(txdesc.Callbacks{})
	var v uint64 = 1

	algo.Begin(tx)
	tx.Write(&v, 50, ^uint64(0))
	assert.Equal(t, uint64(1), v)

	tx.Commit()
	assert.Equal(t, uint64(50), v)
	assert.Equal(t, uint64(1), tx.CommitsRW)
}

func TestReadAfterWriteHitsWriteSet(t *testing.T) {
	rt, algo := newRuntime(t)
	tx := rt.AttachThread(txdesc.Callbacks{})
	var v uint64 = 1

	algo.Begin(tx)
	tx.Write(&v, 9, ^uint64(0))
	got := tx.Read(&v, ^uint64(0))
	assert.Equal(t, uint64(9), got, "RAW must be served from the log, not stale memory")
	tx.Commit()
}

func TestConcurrentWritersSerializeViaLazyAcquire(t *testing.T) {
	rt, algo := newRuntime(t)
	var shared uint64

	const n = 24
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			tx := rt.AttachThread(txdesc.Callbacks{})
			runAtomic(algo, tx, func() {
				cur := tx.Read(&shared, ^uint64(0))
				tx.Write(&shared, cur+1, ^uint64(0))
				tx.Commit()
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(n), shared)
}

func TestRollbackRestoresPartiallyAcquiredLocks(t *testing.T) {
	rt, algo := newRuntime(t)
	var a, b uint64 = 1, 2

	tx := rt.AttachThread(txdesc.Callbacks{})
	algo.Begin(tx)
	tx.Write(&a, 10, ^uint64(0))
	tx.Write(&b, 20, ^uint64(0))

	// Let a winning writer commit to b first, leaving b's orec at a version
	// newer than tx's start time, so tx acquires a's
	// orec successfully (first in write-set order) before failing on b's
	// and rolling back. Rollback must restore a's orec to its original
	// version, not leave it stuck holding tx's lock token.
	other := rt.AttachThread(txdesc.Callbacks{})
	algo.Begin(other)
	other.Write(&b, 99, ^uint64(0))
	other.Commit()

	aOrecBefore := rt.Table.Get(unsafeAddr(&a)).Version()

	func() {
		defer func() {
			_, aborted := rollback.Recover()
			assert.True(t, aborted)
		}()
		tx.Commit()
	}()
	algo.Rollback(tx)

	assert.Equal(t, aOrecBefore, rt.Table.Get(unsafeAddr(&a)).Version(),
		"a's orec must be restored to its pre-acquisition version")
	assert.Equal(t, uint64(99), b, "the winning writer's value must survive the loser's rollback")
	assert.Equal(t, uint64(1), tx.Aborts)
}

func TestIrrevocabilityUnsupported(t *testing.T) {
	_, algo := newRuntime(t)
	assert.False(t, algo.IsIrrevocable())
	assert.Error(t, algo.BecomeIrrevocable(&txdesc.Tx{}))
}
