package stm

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.OrecTableSize = 64
	return cfg
}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := NewRuntime(testConfig(), prometheus.NewRegistry())
	require.NoError(t, err)
	return rt
}

func TestNewRuntimeRegistersAllFourAlgorithms(t *testing.T) {
	for _, name := range []string{"CohortsEager", "PipelineTurbo", "LLTAMD64", "OrecEagerRedo"} {
		cfg := testConfig()
		cfg.DefaultAlgorithm = name
		rt, err := NewRuntime(cfg, prometheus.NewRegistry())
		require.NoError(t, err)
		require.Equal(t, name, rt.ActiveAlgorithm())
	}
}

func TestNewRuntimeRejectsUnknownDefaultAlgorithm(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultAlgorithm = "NotAnAlgorithm"
	_, err := NewRuntime(cfg, prometheus.NewRegistry())
	require.Error(t, err)
}

func TestSwitchAlgorithmQuiescesAndInstalls(t *testing.T) {
	rt := newTestRuntime(t)
	require.Equal(t, "LLTAMD64", rt.ActiveAlgorithm())

	require.NoError(t, rt.SwitchAlgorithm("PipelineTurbo"))
	require.Equal(t, "PipelineTurbo", rt.ActiveAlgorithm())
}

func TestAttachDetachThread(t *testing.T) {
	rt := newTestRuntime(t)
	tx := rt.AttachThread()
	require.NotNil(t, tx)
	rt.DetachThread(tx)
}
