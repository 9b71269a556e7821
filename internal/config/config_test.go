package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 60*time.Second, cfg.Resolver.Lookback)
	assert.Equal(t, 10*time.Second, cfg.Resolver.HomeRecency)
	assert.Equal(t, 15*time.Second, cfg.Resolver.HomeGap)
	assert.Equal(t, 10*time.Second, cfg.Sampler.Interval)
	assert.Equal(t, time.Second, cfg.Enforcement.Interval)
	assert.Equal(t, float32(0.5), cfg.Sampler.Threshold)
	assert.Equal(t, 10*time.Minute, cfg.Sampler.BlockDuration)
	assert.Equal(t, "overwrite", cfg.Sampler.DurationPolicy)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty self id", func(c *Config) { c.Identity.SelfID = "" }},
		{"self equals neutral", func(c *Config) { c.Identity.NeutralID = c.Identity.SelfID }},
		{"zero lookback", func(c *Config) { c.Resolver.Lookback = 0 }},
		{"threshold above one", func(c *Config) { c.Sampler.Threshold = 1.5 }},
		{"unknown duration policy", func(c *Config) { c.Sampler.DurationPolicy = "max" }},
		{"enforcement slower than sampler", func(c *Config) { c.Enforcement.Interval = time.Minute }},
		{"retention shorter than lookback", func(c *Config) { c.Recorder.Retention = time.Second }},
		{"negative index", func(c *Config) { c.Sampler.ObjectionableIndex = -1 }},
		{"negative recorder refresh", func(c *Config) { c.Recorder.Refresh = -time.Second }},
		{"recorder refresh not shorter than lookback", func(c *Config) { c.Recorder.Refresh = c.Resolver.Lookback }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRecorderRefresh(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 30*time.Second, cfg.RecorderRefresh(), "defaults to half the lookback")

	cfg.Resolver.Lookback = 20 * time.Second
	assert.Equal(t, 10*time.Second, cfg.RecorderRefresh(), "follows a shortened lookback")
	require.NoError(t, cfg.Validate())

	cfg.Recorder.Refresh = 5 * time.Second
	assert.Equal(t, 5*time.Second, cfg.RecorderRefresh())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contentmon.yaml")
	content := `
identity:
  self_id: helpme
  neutral_id: launcher
  neutral_prefixes: [com.android.launcher]
resolver:
  home_gap: 20s
sampler:
  interval: 15s
  duration_policy: extend
  classifier_command: [python3, classify.py]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "helpme", cfg.Identity.SelfID)
	assert.Equal(t, []string{"com.android.launcher"}, cfg.Identity.NeutralPrefixes)
	assert.Equal(t, 20*time.Second, cfg.Resolver.HomeGap)
	assert.Equal(t, 15*time.Second, cfg.Sampler.Interval)
	assert.Equal(t, "extend", cfg.Sampler.DurationPolicy)
	assert.Equal(t, []string{"python3", "classify.py"}, cfg.Sampler.ClassifierCommand)
	// Untouched keys keep defaults
	assert.Equal(t, 60*time.Second, cfg.Resolver.Lookback)

	ex := cfg.Exemptions()
	assert.True(t, ex.IsExempt("com.android.launcher3"))
	assert.True(t, ex.IsExempt("helpme"))
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONTENTMON_SAMPLE_INTERVAL", "30s")
	t.Setenv("CONTENTMON_ENFORCE_INTERVAL", "2")
	t.Setenv("CONTENTMON_THRESHOLD", "0.7")
	t.Setenv("CONTENTMON_CLASSIFIER_CMD", "nsfw-score --json")
	t.Setenv("CONTENTMON_BLOCK_DURATION", "not-a-duration")
	t.Setenv("CONTENTMON_DATA_DIR", "/tmp/cm")

	cfg := Default()
	LoadFromEnv(cfg)

	assert.Equal(t, 30*time.Second, cfg.Sampler.Interval)
	assert.Equal(t, 2*time.Second, cfg.Enforcement.Interval)
	assert.InDelta(t, 0.7, cfg.Sampler.Threshold, 1e-6)
	assert.Equal(t, []string{"nsfw-score", "--json"}, cfg.Sampler.ClassifierCommand)
	assert.Equal(t, 10*time.Minute, cfg.Sampler.BlockDuration, "malformed value is ignored")

	dir, err := cfg.DataDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/cm", dir)
}
