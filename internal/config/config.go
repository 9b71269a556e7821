// Package config holds the monitor's configuration: defaults, an optional
// YAML file, and CONTENTMON_* environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/content_mon/internal/policy"
)

// Config holds all application configuration.
type Config struct {
	Identity    IdentityConfig    `yaml:"identity"`
	Resolver    ResolverConfig    `yaml:"resolver"`
	Sampler     SamplerConfig     `yaml:"sampler"`
	Enforcement EnforcementConfig `yaml:"enforcement"`
	Recorder    RecorderConfig    `yaml:"recorder"`
	Storage     StorageConfig     `yaml:"storage"`
	Log         LogConfig         `yaml:"log"`
}

// IdentityConfig names the exempt subjects.
type IdentityConfig struct {
	SelfID          string   `yaml:"self_id"`
	NeutralID       string   `yaml:"neutral_id"`
	NeutralPrefixes []string `yaml:"neutral_prefixes"`
}

// ResolverConfig holds foreground resolution windows.
type ResolverConfig struct {
	Lookback    time.Duration `yaml:"lookback"`     // Event query window and High-confidence freshness
	HomeRecency time.Duration `yaml:"home_recency"` // Max age of the neutral-surface event for the race fallback
	HomeGap     time.Duration `yaml:"home_gap"`     // Max gap between last app and the neutral-surface event
	CacheMaxAge time.Duration `yaml:"cache_max_age"`
}

// SamplerConfig holds classification sampler settings.
type SamplerConfig struct {
	Interval           time.Duration `yaml:"interval"`
	Threshold          float32       `yaml:"threshold"`
	ObjectionableIndex int           `yaml:"objectionable_index"`
	BlockDuration      time.Duration `yaml:"block_duration"`
	DurationPolicy     string        `yaml:"duration_policy"`
	ClassifierCommand  []string      `yaml:"classifier_command"`
	ClassifierLogits   bool          `yaml:"classifier_logits"` // apply sigmoid to raw model output
}

// EnforcementConfig holds enforcement loop settings.
type EnforcementConfig struct {
	Interval           time.Duration `yaml:"interval"`
	PruneInterval      time.Duration `yaml:"prune_interval"`
	PruneGrace         time.Duration `yaml:"prune_grace"`
	NeutralCommand     []string      `yaml:"neutral_command"`
	NeutralMinInterval time.Duration `yaml:"neutral_min_interval"` // Neutral actions closer than this are coalesced
}

// RecorderConfig holds focus recorder settings.
type RecorderConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`
	Retention time.Duration `yaml:"retention"`
	Refresh   time.Duration `yaml:"refresh"` // Re-append an unchanged subject this often; zero means half the lookback
}

// StorageConfig holds journal storage settings.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"` // Empty means ~/.local/share/contentmon
}

// LogConfig holds daemon log destinations.
type LogConfig struct {
	Path      string `yaml:"path"`
	ErrorPath string `yaml:"error_path"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Identity: IdentityConfig{
			SelfID:    policy.DefaultSelfID,
			NeutralID: policy.DefaultNeutralID,
		},
		Resolver: ResolverConfig{
			Lookback:    60 * time.Second,
			HomeRecency: 10 * time.Second,
			HomeGap:     15 * time.Second,
			CacheMaxAge: 60 * time.Second,
		},
		Sampler: SamplerConfig{
			Interval:           10 * time.Second,
			Threshold:          0.5,
			ObjectionableIndex: 0,
			BlockDuration:      policy.DefaultBlockDuration,
			DurationPolicy:     policy.DefaultDurationPolicyID,
		},
		Enforcement: EnforcementConfig{
			Interval:           time.Second,
			PruneInterval:      10 * time.Minute,
			PruneGrace:         time.Hour,
			NeutralCommand:     []string{"wmctrl", "-k", "on"},
			NeutralMinInterval: 250 * time.Millisecond,
		},
		Recorder: RecorderConfig{
			Enabled:   true,
			Interval:  500 * time.Millisecond,
			Retention: 24 * time.Hour,
		},
		Log: LogConfig{
			Path:      "/var/tmp/contentmon.log",
			ErrorPath: "/var/tmp/contentmon.error.log",
		},
	}
}

// LoadFile reads a YAML file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// New builds the effective config: defaults, then the file (if path is
// non-empty), then the environment.
func New(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		cfg, err = LoadFile(path)
		if err != nil {
			return nil, err
		}
	}
	LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Identity.SelfID == "" {
		return fmt.Errorf("self id cannot be empty")
	}
	if c.Identity.NeutralID == "" {
		return fmt.Errorf("neutral id cannot be empty")
	}
	if c.Identity.SelfID == c.Identity.NeutralID {
		return fmt.Errorf("self id and neutral id must differ (both %q)", c.Identity.SelfID)
	}

	if c.Resolver.Lookback <= 0 {
		return fmt.Errorf("resolver lookback must be positive, got %v", c.Resolver.Lookback)
	}
	if c.Resolver.HomeRecency < 0 || c.Resolver.HomeGap < 0 {
		return fmt.Errorf("resolver neutral-surface windows cannot be negative")
	}
	if c.Resolver.CacheMaxAge <= 0 {
		return fmt.Errorf("cache max age must be positive, got %v", c.Resolver.CacheMaxAge)
	}

	if c.Sampler.Interval <= 0 {
		return fmt.Errorf("sampler interval must be positive, got %v", c.Sampler.Interval)
	}
	if c.Sampler.Threshold < 0 || c.Sampler.Threshold > 1 {
		return fmt.Errorf("score threshold must be in [0,1], got %v", c.Sampler.Threshold)
	}
	if c.Sampler.ObjectionableIndex < 0 {
		return fmt.Errorf("objectionable index cannot be negative")
	}
	if c.Sampler.BlockDuration <= 0 {
		return fmt.Errorf("block duration must be positive, got %v", c.Sampler.BlockDuration)
	}
	if _, err := policy.NewRegistry().Lookup(c.Sampler.DurationPolicy); err != nil {
		return err
	}

	if c.Enforcement.Interval <= 0 {
		return fmt.Errorf("enforcement interval must be positive, got %v", c.Enforcement.Interval)
	}
	if c.Enforcement.Interval > c.Sampler.Interval {
		return fmt.Errorf("enforcement interval (%v) cannot exceed sampler interval (%v)",
			c.Enforcement.Interval, c.Sampler.Interval)
	}
	if c.Enforcement.PruneInterval <= 0 {
		return fmt.Errorf("prune interval must be positive, got %v", c.Enforcement.PruneInterval)
	}

	if c.Enforcement.NeutralMinInterval < 0 {
		return fmt.Errorf("neutral min interval cannot be negative")
	}

	if c.Recorder.Enabled && c.Recorder.Interval <= 0 {
		return fmt.Errorf("recorder interval must be positive, got %v", c.Recorder.Interval)
	}
	if c.Recorder.Refresh < 0 {
		return fmt.Errorf("recorder refresh cannot be negative, got %v", c.Recorder.Refresh)
	}
	if c.Recorder.Enabled && c.RecorderRefresh() >= c.Resolver.Lookback {
		return fmt.Errorf("recorder refresh (%v) must be shorter than resolver lookback (%v)",
			c.RecorderRefresh(), c.Resolver.Lookback)
	}
	if c.Recorder.Retention < c.Resolver.Lookback {
		return fmt.Errorf("journal retention (%v) cannot be shorter than resolver lookback (%v)",
			c.Recorder.Retention, c.Resolver.Lookback)
	}

	return nil
}

// RecorderRefresh returns the effective recorder refresh period.
func (c *Config) RecorderRefresh() time.Duration {
	if c.Recorder.Refresh > 0 {
		return c.Recorder.Refresh
	}
	return c.Resolver.Lookback / 2
}

// Exemptions builds the exemption policy from the identity section.
func (c *Config) Exemptions() *policy.Exemptions {
	return policy.NewExemptions(c.Identity.SelfID, c.Identity.NeutralID, c.Identity.NeutralPrefixes...)
}

// DataDir returns the configured data directory or the default one.
func (c *Config) DataDir() (string, error) {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "contentmon"), nil
}
