// Package config loads diamond settings from a TOML file and the environment.
//
// Precedence, lowest first: built-in defaults, the TOML file, DIAMOND_*
// environment variables. Command-line flags are applied on top by the CLI.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Backend names accepted by StorageConfig.Backend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Config is the complete diamond configuration.
type Config struct {
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
}

// StorageConfig selects the slot backend.
type StorageConfig struct {
	Backend string `toml:"backend" env:"DIAMOND_BACKEND"`
	Path    string `toml:"path" env:"DIAMOND_DB"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `toml:"level" env:"DIAMOND_LOG_LEVEL"`
	Format string `toml:"format" env:"DIAMOND_LOG_FORMAT"`
}

// MetricsConfig toggles the in-memory metrics sink.
type MetricsConfig struct {
	Enabled bool `toml:"enabled" env:"DIAMOND_METRICS"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{Backend: BackendSQLite, Path: "diamond.db"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			sort.Strings(keys)
			return Config{}, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize lower-cases enumerated values and trims the storage path.
// Load applies it. Callers that override fields afterwards call it again.
func (c *Config) Normalize() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Storage.Path = strings.TrimSpace(c.Storage.Path)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

// Validate checks every field.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQLite, BackendBolt:
		if c.Storage.Path == "" {
			return fmt.Errorf("config: storage.path is required for backend %q", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("config: unknown storage.backend %q (want memory, sqlite or bolt)", c.Storage.Backend)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log.level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log.format %q (want text or json)", c.Log.Format)
	}
	return nil
}
