package metrics

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration for TOML string parsing ("5s", "600s").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	return nil
}

// Config is the engine's process-wide, immutable configuration. It is
// constructed once at startup and passed by reference — there is no
// package-level mutable singleton.
type Config struct {
	Storage StorageConfig `toml:"storage"`
	Window  WindowConfig  `toml:"window"`
}

type StorageConfig struct {
	// Path is the SQLite database file backing every WindowBuffer. Each
	// window gets its own table within this one database file.
	Path string `toml:"path"`
}

type WindowConfig struct {
	// SampleInterval is Δ, the width of one window. Spec default: 5000ms.
	SampleInterval Duration `toml:"sample_interval"`
	// ExpiryHorizon is the inflight staleness cutoff. Spec default: 600000ms.
	ExpiryHorizon Duration `toml:"expiry_horizon"`
	// RotationInterval upper-bounds a buffer's lifetime; if a window isn't
	// rolled over within this bound the controller forces one. Spec
	// default: 30000ms.
	RotationInterval Duration `toml:"rotation_interval"`
}

// LoadConfig reads and validates a TOML config file, applying defaults for
// any field the file leaves unset.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the engine's built-in default constants with no
// file involved, for embedding the engine as a library or in tests.
func DefaultConfig() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "/var/lib/shardwatch/shardwatch.db"
	}
	if cfg.Window.SampleInterval.Duration == 0 {
		cfg.Window.SampleInterval.Duration = 5 * time.Second
	}
	if cfg.Window.ExpiryHorizon.Duration == 0 {
		cfg.Window.ExpiryHorizon.Duration = 600 * time.Second
	}
	if cfg.Window.RotationInterval.Duration == 0 {
		cfg.Window.RotationInterval.Duration = 30 * time.Second
	}
}

func validate(cfg *Config) error {
	if cfg.Window.SampleInterval.Duration <= 0 {
		return fmt.Errorf("window.sample_interval must be > 0, got %s", cfg.Window.SampleInterval.Duration)
	}
	if cfg.Window.ExpiryHorizon.Duration < cfg.Window.SampleInterval.Duration {
		return fmt.Errorf("window.expiry_horizon (%s) must be >= sample_interval (%s)",
			cfg.Window.ExpiryHorizon.Duration, cfg.Window.SampleInterval.Duration)
	}
	if cfg.Window.RotationInterval.Duration < cfg.Window.SampleInterval.Duration {
		return fmt.Errorf("window.rotation_interval (%s) must be >= sample_interval (%s)",
			cfg.Window.RotationInterval.Duration, cfg.Window.SampleInterval.Duration)
	}
	return nil
}

// DeltaMillis returns Δ in epoch-ms units, the unit every view works in.
func (c *Config) DeltaMillis() int64 { return c.Window.SampleInterval.Duration.Milliseconds() }

// ExpiryHorizonMillis returns the inflight staleness cutoff in epoch-ms.
func (c *Config) ExpiryHorizonMillis() int64 { return c.Window.ExpiryHorizon.Duration.Milliseconds() }

// WindowStart floors a wall-clock instant to its window's start timestamp,
// i.e. the largest multiple of Δ not greater than t. Window starts are
// always multiples of Δ.
func (c *Config) WindowStart(t time.Time) int64 {
	delta := c.DeltaMillis()
	ms := t.UnixMilli()
	return ms - (ms % delta)
}
