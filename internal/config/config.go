// Package config loads BiTE's configuration from ~/.bite/config.yaml.
// A missing file yields defaults without error; environment variables
// override file values.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration.
type Config struct {
	// LogFile is the activity log path; empty disables logging.
	LogFile string `yaml:"log_file"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Font is the display font name (used by the rendering collaborator).
	Font string `yaml:"font"`
	// Scrollback caps per-screen scrollback lines.
	Scrollback int `yaml:"scrollback"`
	// Pipefail folds earlier pipeline stage failures into the exit code.
	Pipefail bool `yaml:"pipefail"`
	// Presenter selects the presenter variant.
	Presenter string `yaml:"presenter"`
	// HistoryFile overrides the history store location.
	HistoryFile string `yaml:"history_file"`
	// HistoryLimit caps retained history entries.
	HistoryLimit int `yaml:"history_limit"`
}

// ConfigDir returns the bite configuration directory (~/.bite/).
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".bite")
	}
	return filepath.Join(home, ".bite")
}

// defaults returns the baseline configuration.
func defaults() *Config {
	return &Config{
		LogLevel:   "info",
		Scrollback: 10000,
	}
}

// Load reads the config from ~/.bite/config.yaml and applies environment
// overrides.
func Load() (*Config, error) {
	cfg, err := LoadFrom(filepath.Join(ConfigDir(), "config.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFrom reads the config from the given path. If the file does not
// exist, it returns defaults with no error.
func LoadFrom(path string) (*Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Scrollback <= 0 {
		cfg.Scrollback = 10000
	}
	return cfg, nil
}

// applyEnv overlays BITE_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("BITE_LOG"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("BITE_FONT"); v != "" {
		c.Font = v
	}
	if v := os.Getenv("BITE_FEAT_COMPOSE"); v != "" {
		c.Presenter = v
	}
}
