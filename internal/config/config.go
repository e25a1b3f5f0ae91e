// Package config loads the optional rfile configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the optional rfile configuration file.
type Config struct {
	Hosts    map[string]HostConfig `toml:"hosts"`
	Defaults DefaultsConfig        `toml:"defaults"`
	Theme    ThemeConfig           `toml:"theme"`
}

// DefaultsConfig holds persistent flag defaults. Nil means unset.
type DefaultsConfig struct {
	Host         *string   `toml:"host"`
	Port         *int      `toml:"port"`
	Timeout      *Duration `toml:"timeout"`
	BWLimit      *string   `toml:"bwlimit"`
	Verify       *bool     `toml:"verify"`
	Hash         *string   `toml:"hash"`
	PollInterval *Duration `toml:"poll_interval"`
	IdleTimeout  *Duration `toml:"idle_timeout"`
}

// HostConfig is a named media server. A location whose host matches the
// table key is dialed at Address and Port instead.
type HostConfig struct {
	Address  string `toml:"address"`
	Port     int    `toml:"port"`
	UploadID int    `toml:"upload_id"`
}

// ThemeConfig holds optional color overrides.
type ThemeConfig struct {
	Green  *string `toml:"green"`
	Blue   *string `toml:"blue"`
	Yellow *string `toml:"yellow"`
	Red    *string `toml:"red"`
	Muted  *string `toml:"muted"`
	Bright *string `toml:"bright"`
}

// Duration is a time.Duration written as a string ("30s", "2m") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	if v < 0 {
		return fmt.Errorf("invalid duration %q: negative", text)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
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
	return filepath.Join(dir, "rfile", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile reads the config file at path. A missing file is not an error.
func LoadFile(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}

// Resolve maps a host alias to its configured address. Unknown names are
// returned unchanged with ok false.
func (c Config) Resolve(name string) (HostConfig, bool) {
	h, ok := c.Hosts[name]
	if !ok {
		return HostConfig{Address: name}, false
	}
	if h.Address == "" {
		h.Address = name
	}
	return h, true
}
