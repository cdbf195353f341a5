package stm

import (
	"github.com/BurntSushi/toml"
)

// Config is the runtime's startup configuration, loadable from a TOML
// file the way tinykv's scheduler config is.
type Config struct {
	// OrecTableSize is the number of slots in the shared orec table,
	// rounded up to the next power of two.
	OrecTableSize int `toml:"orec-table-size"`

	// DefaultAlgorithm is the algorithm SwitchTo is called with once at
	// startup, before any thread attaches.
	DefaultAlgorithm string `toml:"default-algorithm"`

	// MaxReadSetLen and MaxWriteSetLen bound a transaction's logs; a
	// transaction that grows past either aborts with ErrCapacity rather
	// than growing its logs without limit.
	MaxReadSetLen  int `toml:"max-read-set-len"`
	MaxWriteSetLen int `toml:"max-write-set-len"`

	// LogLevel controls the verbosity of the zap logger built for the
	// runtime: one of "debug", "info", "warn", "error".
	LogLevel string `toml:"log-level"`
}

// DefaultConfig returns the configuration used when no file is loaded:
// a modestly sized orec table, LLTAMD64 as the default algorithm (it has
// no cohort/ticket warmup behavior), generous log bounds,
// and info-level logging.
func DefaultConfig() Config {
	return Config{
		OrecTableSize:    1 << 16,
		DefaultAlgorithm: "LLTAMD64",
		MaxReadSetLen:    4096,
		MaxWriteSetLen:   4096,
		LogLevel:         "info",
	}
}

// LoadConfig decodes a TOML file on top of DefaultConfig, so a partial
// file only overrides the fields it names.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
