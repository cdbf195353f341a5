package registry

import (
	"testing"

	"github.com/dborchard/gostm/internal/txdesc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAlgo struct {
	name       string
	quiesced   bool
	switchedTo bool
}

func (s *stubAlgo) Name() string                       { return s.name }
func (s *stubAlgo) Begin(tx *txdesc.Tx)                {}
func (s *stubAlgo) Rollback(tx *txdesc.Tx)              {}
func (s *stubAlgo) OnSwitchTo()                        { s.switchedTo = true }
func (s *stubAlgo) Quiesce()                           { s.quiesced = true }
func (s *stubAlgo) IsIrrevocable() bool                { return false }
func (s *stubAlgo) BecomeIrrevocable(*txdesc.Tx) error { return assert.AnError }

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	a := &stubAlgo{name: "A"}
	r.Register(a)

	got, ok := r.Lookup("A")
	assert.True(t, ok)
	assert.Same(t, a, got)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestSwitchToUnknownFails(t *testing.T) {
	r := New()
	err := r.SwitchTo("nope")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestSwitchToQuiescesPreviousAndRunsOnSwitchTo(t *testing.T) {
	r := New()
	a := &stubAlgo{name: "A"}
	b := &stubAlgo{name: "B"}
	r.Register(a)
	r.Register(b)

	require.NoError(t, r.SwitchTo("A"))
	assert.False(t, a.quiesced, "first switch has nothing to quiesce")
	assert.True(t, a.switchedTo)
	assert.Same(t, Algorithm(a), r.Active())

	require.NoError(t, r.SwitchTo("B"))
	assert.True(t, a.quiesced, "switching away from A must quiesce it")
	assert.True(t, b.switchedTo)
	assert.Same(t, Algorithm(b), r.Active())
}

func TestActivePanicsBeforeFirstSwitch(t *testing.T) {
	r := New()
	assert.Panics(t, func() { r.Active() })
}
