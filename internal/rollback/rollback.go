// Package rollback is the core's non-local abort: a panic/recover
// trampoline standing in for the saved-register-context longjump the
// spec's §4 Rollback longjump component describes. An abort from inside
// read/write/commit unwinds the Go call stack straight back to the retry
// loop that called begin, exactly as the C runtime's longjump returns
// control to just after alg_tm_begin.
package rollback

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrConflict is the common conflict-abort cause every algorithm wraps
// with its own context before calling Abort. Centralizing it here (rather
// than in each algs/* package) lets pkg/stm re-export a single sentinel
// that errors.Is matches regardless of which algorithm produced the
// abort.
var ErrConflict = errors.New("rollback: conflict")

// ErrCapacity is the common capacity-abort cause txdesc.Tx.LogRead and
// LogWrite wrap with context before calling Abort when a transaction's
// read or write set grows past its configured bound. Per the error taxonomy a capacity
// abort is handled exactly like a conflict abort: the retry loop restarts
// the transaction rather than surfacing it to the caller.
var ErrCapacity = errors.New("rollback: capacity exceeded")

// Signal is the sentinel panic value carrying the abort's cause. Only
// Signal panics are ever recovered by Recover; anything else
// (a genuine programming-error panic) is re-raised.
type Signal struct {
	Err error
}

// Abort unwinds the current transaction back to its retry loop. It never
// returns; callers inside an algorithm's read/write/commit call this and
// need not (cannot) check a return value afterwards.
func Abort(err error) {
	panic(Signal{Err: err})
}

// Recover must be deferred around the body of a transaction. It returns
// the abort error and true if the transaction aborted via Abort; zero
// value and false if the transaction ran to completion. Any other panic
// propagates unchanged.
func Recover() (err error, aborted bool) {
	r := recover()
	if r == nil {
		return nil, false
	}
	sig, ok := r.(Signal)
	if !ok {
		panic(r)
	}
	return sig.Err, true
}

// Fatal reports an unrecoverable runtime error — a turbo transaction
// attempting to self-abort, or an unsupported become_irrevocable request.
// Unlike Abort, this is not a conflict to retry: the spec requires turbo
// self-abort and irrevocability-in-unsupported-algorithms to be fatal,
// since turbo has already mutated shared memory and cannot be undone.
func Fatal(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}
