package stm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "LLTAMD64", cfg.DefaultAlgorithm)
	assert.Greater(t, cfg.OrecTableSize, 0)
}

func TestLoadConfigOverridesOnlyNamedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gostm.toml")
	require.NoError(t, os.WriteFile(path, []byte(`default-algorithm = "PipelineTurbo"`+"\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "PipelineTurbo", cfg.DefaultAlgorithm)
	assert.Equal(t, DefaultConfig().OrecTableSize, cfg.OrecTableSize)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	assert.Error(t, err)
}
