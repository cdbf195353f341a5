package rollback

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAbortAndRecover(t *testing.T) {
	want := errors.New("conflict")

	run := func() (err error, aborted bool) {
		defer func() { err, aborted = Recover() }()
		Abort(want)
		t.Fatal("unreachable")
		return nil, false
	}

	err, aborted := run()
	assert.True(t, aborted)
	assert.Equal(t, want, err)
}

func TestRecoverPassesThroughNonSignalPanics(t *testing.T) {
	defer func() {
		r := recover()
		assert.Equal(t, "boom", r)
	}()

	func() {
		defer func() { Recover() }()
		panic("boom")
	}()
}

func TestRecoverWithoutPanicIsNoop(t *testing.T) {
	err, aborted := func() (err error, aborted bool) {
		defer func() { err, aborted = Recover() }()
		return nil, false
	}()
	assert.NoError(t, err)
	assert.False(t, aborted)
}
