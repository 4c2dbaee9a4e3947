package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/riadafridishibly/compactor/runner"
	"github.com/riadafridishibly/compactor/scanner"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(home, ".cache"))
	t.Setenv("LOCALAPPDATA", filepath.Join(home, "AppData", "Local"))
	t.Setenv("APPDATA", filepath.Join(home, "AppData", "Roaming"))
	return home
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Empty(t, cfg.ConfigFile)
	assert.NotEmpty(t, cfg.Journal.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, runner.DefaultTool, cfg.Runner.Tool)
	assert.Equal(t, runner.DefaultHeartbeat, cfg.Runner.Heartbeat)
	scan := cfg.ScanOptions()
	assert.Empty(t, scan.ExcludedFolders)
	scan.ExcludedFolders = nil
	assert.Equal(t, scanner.DefaultOptions(), scan)

	opts := cfg.RunnerOptions()
	assert.True(t, opts.Recursive)
	assert.True(t, opts.Quiet)
	assert.True(t, opts.ContinueOnError)
	assert.False(t, opts.Force)

	enc, err := cfg.OutputEncoding()
	require.NoError(t, err)
	assert.Nil(t, enc)
}

func TestLoadFileAndEnv(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
journal:
  path: /data/journal.db
scan:
  follow_reparse_points: true
  min_savings_ratio: 0.2
  excluded_folders: [cache, temp]
  codec: zstd
runner:
  heartbeat: 250ms
  output_codepage: 850
`), 0o644))
	t.Setenv("COMPACTOR_RUNNER_FORCE", "true")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, file, cfg.ConfigFile)
	assert.Equal(t, "/data/journal.db", cfg.Journal.Path)

	opts := cfg.ScanOptions()
	assert.True(t, opts.FollowReparsePoints)
	assert.InDelta(t, 0.2, opts.MinSavingsRatio, 1e-9)
	assert.Equal(t, []string{"cache", "temp"}, opts.ExcludedFolders)
	assert.Equal(t, "zstd", opts.Codec)
	assert.True(t, cfg.RunnerOptions().Force)

	rc, err := cfg.RunnerConfig()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, rc.Heartbeat)
	assert.Equal(t, charmap.CodePage850, rc.Encoding)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	isolate(t)
	base, err := Load("")
	require.NoError(t, err)

	cases := map[string]func(c *Config){
		"ratio too high":   func(c *Config) { c.Scan.MinSavingsRatio = 1 },
		"negative ratio":   func(c *Config) { c.Scan.MinSavingsRatio = -0.1 },
		"negative size":    func(c *Config) { c.Scan.LargeFileThreshold = -1 },
		"unknown codec":    func(c *Config) { c.Scan.Codec = "zip" },
		"unknown codepage": func(c *Config) { c.Runner.OutputCodepage = 1 },
		"no journal":       func(c *Config) { c.Journal.Path = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := *base
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
	assert.NoError(t, base.Validate())
}
