// Package registry is the dispatch and switch layer: it holds the set of
// algorithms the runtime knows about by stable name, tracks which one is
// active, and drives the quiesce-then-swap protocol switch_algorithm
// needs.
package registry

import (
	"sync"
	"sync/atomic"

	"github.com/dborchard/gostm/internal/txdesc"
	"github.com/pkg/errors"
)

// Algorithm is the five-operation interface every algorithm plugin
// implements, plus the switch-layer hooks the spec's §4.5 Algorithm
// switch requires.
type Algorithm interface {
	// Name is the stable identifier this algorithm is registered and
	// discovered under (e.g. "CohortsEager").
	Name() string

	// Begin runs the protocol's begin logic and installs the initial
	// dispatch slots (read-only, or turbo if the transaction can start
	// there directly) into tx.
	Begin(tx *txdesc.Tx)

	// Rollback restores tx to a pre-begin state after a conflict abort.
	// It must never be called while tx.Mode == txdesc.ModeTurbo; that is
	// a fatal error the caller (pkg/stm) guards against before invoking
	// Rollback.
	Rollback(tx *txdesc.Tx)

	// OnSwitchTo runs once, after quiescence, when this algorithm becomes
	// active. It may raise the clock, reset last_complete, or clear every
	// attached thread's Order.
	OnSwitchTo()

	// Quiesce blocks until no thread is currently mid-transaction under
	// this algorithm, using whatever drain mechanism the protocol
	// already has (the cohort gate, or waiting for last_complete to
	// catch up to the ticket counter).
	Quiesce()

	// IsIrrevocable always reports false for the algorithms this core
	// specifies.
	IsIrrevocable() bool

	// BecomeIrrevocable is unsupported by every algorithm this core
	// specifies and always returns an error.
	BecomeIrrevocable(tx *txdesc.Tx) error
}

// ErrUnknownAlgorithm is returned by SwitchTo when asked for a name that
// was never registered.
var ErrUnknownAlgorithm = errors.New("registry: unknown algorithm")

// Registry is the name -> Algorithm lookup table, discoverable at
// startup, plus the currently active algorithm.
type Registry struct {
	mu    sync.RWMutex
	algos map[string]Algorithm

	active atomic.Pointer[namedAlgorithm]
}

type namedAlgorithm struct {
	algo Algorithm
}

// New creates an empty registry. Callers register algorithms with
// Register and then call SwitchTo once to pick the initial active one.
func New() *Registry {
	return &Registry{algos: make(map[string]Algorithm)}
}

// Register adds an algorithm under its stable name, making it
// discoverable by switch_algorithm. Registering a name twice overwrites
// the previous registration; this is a startup-time operation, not a
// hot-path one.
func (r *Registry) Register(a Algorithm) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.algos[a.Name()] = a
}

// Lookup finds a registered algorithm by name.
func (r *Registry) Lookup(name string) (Algorithm, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.algos[name]
	return a, ok
}

// Active returns the currently active algorithm. It panics if called
// before the first SwitchTo, which is a programming error (the runtime
// constructor always performs one).
func (r *Registry) Active() Algorithm {
	p := r.active.Load()
	if p == nil {
		panic("registry: no active algorithm; runtime was not initialized via SwitchTo")
	}
	return p.algo
}

// SwitchTo quiesces the currently active algorithm (a no-op if none is
// active yet), runs the new algorithm's OnSwitchTo hook, and publishes it
// as active. Every in-flight transaction either completes or self-aborts
// under the old algorithm before this returns, per §4.5: callers must not
// hold a transaction open across SwitchTo.
func (r *Registry) SwitchTo(name string) error {
	next, ok := r.Lookup(name)
	if !ok {
		return errors.Wrapf(ErrUnknownAlgorithm, "%q", name)
	}

	if cur := r.active.Load(); cur != nil {
		cur.algo.Quiesce()
	}

	next.OnSwitchTo()
	r.active.Store(&namedAlgorithm{algo: next})
	return nil
}
