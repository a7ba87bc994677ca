// Package config resolves the store directory and command defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds defaults every command starts from. All fields can be
// overridden by flags; the file only changes the baseline.
type Config struct {
	// Timeout bounds every command except `sync --follow`.
	Timeout time.Duration `yaml:"timeout"`

	// IdleExit is the quiescence window for `sync --once` and `auth`.
	IdleExit time.Duration `yaml:"idle_exit"`

	// DownloadMedia enables background media download during sync.
	DownloadMedia bool `yaml:"download_media"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Timeout:  30 * time.Second,
		IdleExit: 30 * time.Second,
	}
}

// DefaultStoreDir resolves the per-user store directory: WACLI_STORE if set,
// otherwise ~/.wacli.
func DefaultStoreDir() string {
	if env := os.Getenv("WACLI_STORE"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".wacli")
}

// Load reads <storeDir>/config.yaml on top of the defaults. A missing file
// is fine; a malformed one is an error.
func Load(storeDir string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(storeDir, "config.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = Default().Timeout
	}
	if cfg.IdleExit <= 0 {
		cfg.IdleExit = Default().IdleExit
	}
	return cfg, nil
}
