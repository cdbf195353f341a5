package stm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAtomicWithTimeoutCommitsWithinDeadline(t *testing.T) {
	rt := newTestRuntime(t)
	tx := rt.AttachThread()
	var v uint64

	err := AtomicWithTimeout(tx, time.Second, func(tx *Tx) {
		tx.Write(&v, 9, ^uint64(0))
	})

	assert.NoError(t, err)
	assert.Equal(t, uint64(9), v)
}
