package registry

import (
	"testing"

	"github.com/dborchard/gostm/internal/txdesc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachDetachThread(t *testing.T) {
	rt := NewRuntime(16, nil)
	tx1 := rt.AttachThread(txdesc.Callbacks{})
	tx2 := rt.AttachThread(txdesc.Callbacks{})
	assert.Equal(t, 2, rt.ThreadCount())
	assert.NotEqual(t, tx1.MyLock, tx2.MyLock)

	rt.DetachThread(tx1)
	assert.Equal(t, 1, rt.ThreadCount())
}

func TestForEachThreadVisitsAllAttached(t *testing.T) {
	rt := NewRuntime(16, nil)
	rt.AttachThread(txdesc.Callbacks{})
	rt.AttachThread(txdesc.Callbacks{})
	rt.AttachThread(txdesc.Callbacks{})

	count := 0
	rt.ForEachThread(func(tx *txdesc.Tx) { count++ })
	assert.Equal(t, 3, count)
}

func TestAlgoMatches(t *testing.T) {
	rt := NewRuntime(16, nil)
	a := &stubAlgo{name: "A"}
	b := &stubAlgo{name: "B"}
	rt.Reg.Register(a)
	rt.Reg.Register(b)
	require.NoError(t, rt.Reg.SwitchTo("A"))

	tx := rt.AttachThread(txdesc.Callbacks{})
	assert.True(t, rt.AlgoMatches(tx), "no algo cached yet means no mismatch")

	tx.Algo = a
	assert.True(t, rt.AlgoMatches(tx))

	require.NoError(t, rt.Reg.SwitchTo("B"))
	assert.False(t, rt.AlgoMatches(tx), "switching away must be observable as a mismatch")
}
