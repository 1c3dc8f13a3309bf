// Package config loads the optional cpdd configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the optional cpdd configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
}

// DefaultsConfig holds persistent flag defaults. Nil means unset.
type DefaultsConfig struct {
	ReflinkDir     *string `toml:"reflink_dir"`
	BackupSuffix   *string `toml:"backup_suffix"`
	Recurse        *bool   `toml:"recurse"`
	Overwrite      *bool   `toml:"overwrite"`
	SkipInvalid    *bool   `toml:"skip_invalid"`
	RequireReflink *bool   `toml:"require_reflink"`
	LogLevel       *string `toml:"log_level"`
	VerifyWorkers  *int    `toml:"verify_workers"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "cpdd", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}
	cfg, err := LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	return cfg, err
}

// LoadFile reads and validates the config file at path. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func LoadFile(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	d := c.Defaults
	if d.BackupSuffix != nil && *d.BackupSuffix == "" {
		return errors.New("defaults.backup_suffix must not be empty")
	}
	if d.ReflinkDir != nil && *d.ReflinkDir == "" {
		return errors.New("defaults.reflink_dir must not be empty")
	}
	if d.VerifyWorkers != nil && *d.VerifyWorkers < 0 {
		return fmt.Errorf("defaults.verify_workers must not be negative, got %d", *d.VerifyWorkers)
	}
	return nil
}
