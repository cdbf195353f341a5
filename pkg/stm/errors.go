// Package stm is the public surface of the STM core: attach/detach a
// thread, begin/read/write/commit/rollback a transaction, query or
// request irrevocability, switch the active algorithm, and drive the
// retry loop an application calls into.
package stm

import (
	"github.com/dborchard/gostm/internal/rollback"
	"github.com/pkg/errors"
)

// ErrConflict is the sentinel every algorithm's own conflict error wraps.
// errors.Is(err, ErrConflict) matches regardless of which of the four
// algorithms produced the abort.
var ErrConflict = rollback.ErrConflict

// ErrIrrevocableUnsupported is the message of the fatal panic
// BecomeIrrevocable raises: none of the four algorithms this core ships
// support it.
var ErrIrrevocableUnsupported = errors.New("stm: become_irrevocable is not supported by any registered algorithm")

// ErrCapacity is the sentinel every algorithm's capacity-abort wraps, set
// when a transaction's read or write set grows past its configured bound.
// Per the error taxonomy, capacity aborts are treated exactly like conflict
// aborts: the caller's retry loop restarts the transaction rather than
// surfacing this to the application.
var ErrCapacity = rollback.ErrCapacity
