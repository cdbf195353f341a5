package stm

import (
	"time"

	"github.com/dborchard/gostm/internal/rollback"
	"github.com/pkg/errors"
)

// Atomic runs fn as a transaction on tx, retrying on conflict or capacity
// abort until it commits. This is the retry loop every algorithm's
// rollback.Abort ultimately unwinds to, grounded on kashmir's StmAtomic:
// begin, run the block, and on a restart signal loop back to a fresh
// begin instead of propagating anything to the caller.
//
// fn must be idempotent up to the point it calls tx.Read/tx.Write: it may
// run more than once for a single logical atomic block.
func Atomic(tx *Tx, fn func(*Tx)) {
	rt := tx.rt
	for {
		_, _, rwBefore := tx.Stats()

		tx.Begin()
		if runBody(tx, fn) {
			rt.metrics.Aborts.WithLabelValues(tx.algo.Name()).Inc()
			continue
		}

		_, _, rwAfter := tx.Stats()
		mode := "read-only"
		if rwAfter != rwBefore {
			mode = "read-write"
		}
		rt.metrics.Commits.WithLabelValues(tx.algo.Name(), mode).Inc()
		return
	}
}

// runBody executes fn and tx.Commit under a recover, reporting whether
// the attempt aborted. A successful commit or a non-conflict panic both
// propagate normally; only a rollback.Signal is intercepted here. An
// aborted attempt is rolled back and its nesting depth cleared, so the
// next Begin runs the protocol again.
func runBody(tx *Tx, fn func(*Tx)) (aborted bool) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, isAbort := r.(rollback.Signal); !isAbort {
			panic(r)
		}
		aborted = true
		tx.algo.Rollback(tx.inner)
		tx.inner.NestingDepth = 0
	}()
	fn(tx)
	tx.Commit()
	return false
}

// AtomicWithTimeout runs Atomic but gives up and returns an error if no
// attempt commits within d. This does not cancel an in-flight attempt
// (the core has no cancellation point mid-transaction); it only stops
// retrying once d has elapsed and the most recent attempt has aborted.
func AtomicWithTimeout(tx *Tx, d time.Duration, fn func(*Tx)) error {
	deadline := time.Now().Add(d)
	rt := tx.rt
	for {
		tx.Begin()
		if !runBody(tx, fn) {
			rt.metrics.Commits.WithLabelValues(tx.algo.Name(), "read-write").Inc()
			return nil
		}
		rt.metrics.Aborts.WithLabelValues(tx.algo.Name()).Inc()
		if time.Now().After(deadline) {
			return errors.New("stm: atomic block did not commit before timeout")
		}
	}
}
