// Package config loads tripwire CLI settings.
//
// Settings are layered, later layers winning:
//
//  1. built-in defaults
//  2. a TOML file: the --config path, or ./tripwire.toml if present
//  3. TRIPWIRE_* environment variables (TRIPWIRE_DB, TRIPWIRE_RUN_FOR, ...)
//
// Command-line flags override the loaded values in the cli package.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultFile is loaded from the working directory when no path is given.
const DefaultFile = "tripwire.toml"

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "TRIPWIRE_"

// Config holds CLI settings.
type Config struct {
	// Format is the output format: "text" or "json".
	Format string `koanf:"format"`

	// Verbose enables debug logging.
	Verbose bool `koanf:"verbose"`

	// DB is the trace database written by run and read by trace.
	// Empty disables recording.
	DB string `koanf:"db"`

	// RunFor stops `run` after this long; 0 runs until interrupted.
	RunFor time.Duration `koanf:"run_for"`

	// Scenarios is the directory `test` reads when none is given.
	Scenarios string `koanf:"scenarios"`
}

// Default returns the built-in settings, as Load yields with no file and
// no environment overrides.
func Default() *Config {
	return &Config{Format: "text", Scenarios: "scenarios"}
}

func defaults() map[string]any {
	return map[string]any{
		"format":    "text",
		"verbose":   false,
		"db":        "",
		"run_for":   "0s",
		"scenarios": "scenarios",
	}
}

// Load builds the configuration. path names a TOML file that must exist;
// with an empty path, DefaultFile is used if it exists.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	// 3. Env vars
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Unmarshal
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q: must be text or json", c.Format)
	}
	if c.RunFor < 0 {
		return fmt.Errorf("run_for must not be negative")
	}
	return nil
}
