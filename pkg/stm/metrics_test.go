package stm

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAtomicIncrementsCommitMetric(t *testing.T) {
	rt := newTestRuntime(t)
	tx := rt.AttachThread()
	var v uint64

	Atomic(tx, func(tx *Tx) {
		tx.Write(&v, 1, ^uint64(0))
	})

	got := testutil.ToFloat64(rt.metrics.Commits.WithLabelValues("LLTAMD64", "read-write"))
	assert.Equal(t, float64(1), got)
}

func TestAtomicIncrementsAbortMetricOnConflict(t *testing.T) {
	rt := newTestRuntime(t)
	var shared uint64

	const n = 8
	done := make(chan uint64, n)
	for i := 0; i < n; i++ {
		go func() {
			tx := rt.AttachThread()
			Atomic(tx, func(tx *Tx) {
				cur := tx.Read(&shared, ^uint64(0))
				tx.Write(&shared, cur+1, ^uint64(0))
			})
			aborts, _, _ := tx.Stats()
			done <- aborts
		}()
	}
	var totalAborts uint64
	for i := 0; i < n; i++ {
		totalAborts += <-done
	}

	assert.Equal(t, uint64(n), shared)
	assert.Equal(t, float64(totalAborts), testutil.ToFloat64(rt.metrics.Aborts.WithLabelValues("LLTAMD64")))
}

func TestAtomicIncrementsTurboMetricOnPromotion(t *testing.T) {
	rt := newTestRuntime(t)
	require := rt.SwitchAlgorithm("PipelineTurbo")
	assert.NoError(t, require)

	tx := rt.AttachThread()
	var v uint64
	// The first transaction under a fresh PipelineTurbo runtime starts in
	// turbo mode directly out of Begin, so Atomic's single attempt here
	// promotes without ever calling GoTurbo explicitly from the write
	// path — begin itself is the promotion site.
	Atomic(tx, func(tx *Tx) {
		tx.Write(&v, 1, ^uint64(0))
	})

	got := testutil.ToFloat64(rt.metrics.Turbo.WithLabelValues("PipelineTurbo"))
	assert.Equal(t, float64(1), got)
}
