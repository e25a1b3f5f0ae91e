package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/rfile/internal/config"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "rfile")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Nil(t, cfg.Defaults.Host)
	assert.Nil(t, cfg.Defaults.Timeout)
	assert.Nil(t, cfg.Theme.Green)
	assert.Empty(t, cfg.Hosts)
}

func TestLoad_FullConfig(t *testing.T) {
	writeConfig(t, `
[defaults]
host = "mythbox"
port = 6543
timeout = "45s"
bwlimit = "10MB"
verify = true
hash = "xxh64"
poll_interval = "2s"
idle_timeout = "1m"

[hosts.attic]
address = "10.0.0.9"
port = 7000
upload_id = 12

[theme]
green = "#00ff00"
red = "#ff0000"
`)

	cfg, err := config.Load()
	require.NoError(t, err)

	require.NotNil(t, cfg.Defaults.Host)
	assert.Equal(t, "mythbox", *cfg.Defaults.Host)

	require.NotNil(t, cfg.Defaults.Port)
	assert.Equal(t, 6543, *cfg.Defaults.Port)

	require.NotNil(t, cfg.Defaults.Timeout)
	assert.Equal(t, 45*time.Second, cfg.Defaults.Timeout.Duration)

	require.NotNil(t, cfg.Defaults.BWLimit)
	assert.Equal(t, "10MB", *cfg.Defaults.BWLimit)

	require.NotNil(t, cfg.Defaults.Verify)
	assert.True(t, *cfg.Defaults.Verify)

	require.NotNil(t, cfg.Defaults.Hash)
	assert.Equal(t, "xxh64", *cfg.Defaults.Hash)

	require.NotNil(t, cfg.Defaults.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.Defaults.PollInterval.Duration)

	require.NotNil(t, cfg.Defaults.IdleTimeout)
	assert.Equal(t, time.Minute, cfg.Defaults.IdleTimeout.Duration)

	require.Contains(t, cfg.Hosts, "attic")
	assert.Equal(t, config.HostConfig{Address: "10.0.0.9", Port: 7000, UploadID: 12}, cfg.Hosts["attic"])

	require.NotNil(t, cfg.Theme.Green)
	assert.Equal(t, "#00ff00", *cfg.Theme.Green)

	// Unset fields should remain nil.
	assert.Nil(t, cfg.Theme.Blue)
	assert.Nil(t, cfg.Theme.Bright)
}

func TestLoad_PartialConfig(t *testing.T) {
	writeConfig(t, `
[theme]
bright = "#ffffff"
`)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Nil(t, cfg.Defaults.Verify)
	assert.Nil(t, cfg.Defaults.Port)

	require.NotNil(t, cfg.Theme.Bright)
	assert.Equal(t, "#ffffff", *cfg.Theme.Bright)
}

func TestLoad_InvalidTOML(t *testing.T) {
	writeConfig(t, "invalid [[[")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	writeConfig(t, `
[defaults]
timeout = "soon"
`)

	_, err := config.Load()
	assert.ErrorContains(t, err, "invalid duration")
}

func TestLoad_UnknownKey(t *testing.T) {
	writeConfig(t, `
[defaults]
workers = 4
`)

	_, err := config.Load()
	assert.ErrorContains(t, err, "defaults.workers")
}

func TestPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/rfile/config.toml", config.Path())
}

func TestResolve(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Hosts: map[string]config.HostConfig{
		"attic": {Address: "10.0.0.9", Port: 7000},
		"den":   {UploadID: 3},
	}}

	h, ok := cfg.Resolve("attic")
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.9", h.Address)
	assert.Equal(t, 7000, h.Port)

	h, ok = cfg.Resolve("den")
	assert.True(t, ok)
	assert.Equal(t, "den", h.Address)
	assert.Equal(t, 3, h.UploadID)

	h, ok = cfg.Resolve("elsewhere")
	assert.False(t, ok)
	assert.Equal(t, "elsewhere", h.Address)
}
