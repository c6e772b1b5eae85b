/*
Package config loads the engine's ambient configuration from a YAML file
via gopkg.in/yaml.v3, a single top-level configuration document rather than
a stream of typed resources.
*/
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/signalcore/pkg/reactorlog"
)

// Config is the engine's top-level ambient configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Effects EffectsConfig `yaml:"effects"`
}

// LogConfig configures reactorlog.
type LogConfig struct {
	Level      reactorlog.Level `yaml:"level"`
	JSONOutput bool             `yaml:"jsonOutput"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// EffectsConfig carries engine-wide effect settings read from the file. No
// package reads DefaultDebounce: an effect-signals installation's debounce
// is set by its own effect.Config.EffectDebounceTime alone.
type EffectsConfig struct {
	DefaultDebounce time.Duration `yaml:"defaultDebounce"`
}

// Default returns the configuration the engine runs with if no file is
// supplied.
func Default() Config {
	return Config{
		Log: LogConfig{Level: reactorlog.InfoLevel, JSONOutput: false},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Effects: EffectsConfig{DefaultDebounce: 0},
	}
}

// Load reads and parses a YAML configuration file, applying Default()'s
// values for anything the file leaves unset by unmarshalling on top of them.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
