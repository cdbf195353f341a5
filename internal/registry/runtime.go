package registry

import (
	"sync"

	"github.com/dborchard/gostm/internal/clock"
	"github.com/dborchard/gostm/internal/orec"
	"github.com/dborchard/gostm/internal/txdesc"
	"go.uber.org/zap"
)

// Runtime is the single object encapsulating every piece of global
// mutable state the algorithms coordinate through: the orec table, the
// global clock/ticket, the last-complete marker, the lock-token
// allocator, and the algorithm registry. Hot-path access still goes
// straight to a load/CAS on a stable address inside one of these fields;
// Runtime only gives that state a home instead of scattering it across
// package-level globals.
type Runtime struct {
	Table        *orec.Table
	Clock        clock.Counter
	LastComplete clock.Counter
	// ClockMax backs algorithms that treat the clock as a zero-one mutex
	// and must back it up before reusing it (see design notes on
	// OnSwitchTo); none of the three core algorithms need it, but the
	// field exists so a future algorithm can follow the same pattern
	// PipelineTurboOnSwitchTo documents.
	ClockMax clock.Counter
	Tokens   orec.TokenAllocator
	Reg      *Registry

	// MaxReadSetLen and MaxWriteSetLen are the capacity bounds handed to
	// every descriptor AttachThread creates; 0 means unbounded.
	MaxReadSetLen  int
	MaxWriteSetLen int

	threadsMu sync.Mutex
	threads   []*txdesc.Tx

	Logger *zap.Logger
}

// NewRuntime allocates a runtime with an orec table of the given size.
// Callers must Register at least one algorithm and call
// Reg.SwitchTo(name) before attaching threads.
func NewRuntime(orecTableSize int, logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{
		Table:  orec.NewTable(orecTableSize),
		Reg:    New(),
		Logger: logger,
	}
}

// AttachThread allocates a fresh transaction descriptor with a unique
// lock token and registers it with the runtime so switch-layer hooks
// (e.g. PipelineTurbo's OnSwitchTo) can reach every attached thread.
func (rt *Runtime) AttachThread(callbacks txdesc.Callbacks) *txdesc.Tx {
	tx := txdesc.New(rt.Tokens.Next(), callbacks, rt.MaxReadSetLen, rt.MaxWriteSetLen)
	rt.threadsMu.Lock()
	rt.threads = append(rt.threads, tx)
	rt.threadsMu.Unlock()
	return tx
}

// DetachThread removes a descriptor from the runtime's thread list. The
// descriptor itself is left for the garbage collector once the caller
// drops its reference.
func (rt *Runtime) DetachThread(tx *txdesc.Tx) {
	rt.threadsMu.Lock()
	defer rt.threadsMu.Unlock()
	for i, t := range rt.threads {
		if t == tx {
			rt.threads = append(rt.threads[:i], rt.threads[i+1:]...)
			return
		}
	}
}

// ForEachThread invokes fn for every currently attached descriptor. Used
// by switch-in hooks that must reset per-thread state (e.g. clearing
// every thread's Order on a switch to PipelineTurbo).
func (rt *Runtime) ForEachThread(fn func(tx *txdesc.Tx)) {
	rt.threadsMu.Lock()
	defer rt.threadsMu.Unlock()
	for _, t := range rt.threads {
		fn(t)
	}
}

// ThreadCount reports how many threads are currently attached.
func (rt *Runtime) ThreadCount() int {
	rt.threadsMu.Lock()
	defer rt.threadsMu.Unlock()
	return len(rt.threads)
}

// AlgoMatches reports whether tx began its current transaction under the
// algorithm that is still active. Spin loops call this on every
// iteration so that a switch_algorithm landing mid-wait is observed as a
// conflict abort rather than a wait against state an algorithm no longer
// maintains.
func (rt *Runtime) AlgoMatches(tx *txdesc.Tx) bool {
	if tx.Algo == nil {
		return true
	}
	return rt.Reg.Active().Name() == tx.Algo.Name()
}
