package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFromEnv loads configuration from environment variables.
// Environment variables override file and default values; malformed
// values are ignored.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("CONTENTMON_SELF_ID"); v != "" {
		cfg.Identity.SelfID = v
	}
	if v := os.Getenv("CONTENTMON_NEUTRAL_ID"); v != "" {
		cfg.Identity.NeutralID = v
	}
	if v := os.Getenv("CONTENTMON_NEUTRAL_PREFIXES"); v != "" {
		cfg.Identity.NeutralPrefixes = strings.Split(v, ",")
	}

	setDuration("CONTENTMON_LOOKBACK", &cfg.Resolver.Lookback)
	setDuration("CONTENTMON_CACHE_MAX_AGE", &cfg.Resolver.CacheMaxAge)
	setDuration("CONTENTMON_SAMPLE_INTERVAL", &cfg.Sampler.Interval)
	setDuration("CONTENTMON_BLOCK_DURATION", &cfg.Sampler.BlockDuration)
	setDuration("CONTENTMON_ENFORCE_INTERVAL", &cfg.Enforcement.Interval)
	setDuration("CONTENTMON_RECORD_INTERVAL", &cfg.Recorder.Interval)
	setDuration("CONTENTMON_RECORD_REFRESH", &cfg.Recorder.Refresh)

	if v := os.Getenv("CONTENTMON_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.Sampler.Threshold = float32(f)
		}
	}
	if v := os.Getenv("CONTENTMON_DURATION_POLICY"); v != "" {
		cfg.Sampler.DurationPolicy = v
	}
	if v := os.Getenv("CONTENTMON_CLASSIFIER_CMD"); v != "" {
		cfg.Sampler.ClassifierCommand = strings.Fields(v)
	}
	if v := os.Getenv("CONTENTMON_CLASSIFIER_LOGITS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Sampler.ClassifierLogits = b
		}
	}
	if v := os.Getenv("CONTENTMON_NEUTRAL_CMD"); v != "" {
		cfg.Enforcement.NeutralCommand = strings.Fields(v)
	}
	if v := os.Getenv("CONTENTMON_RECORDER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Recorder.Enabled = b
		}
	}
	if v := os.Getenv("CONTENTMON_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("CONTENTMON_LOG_PATH"); v != "" {
		cfg.Log.Path = v
	}
}

// setDuration accepts Go duration strings ("90s") or plain seconds ("90").
func setDuration(key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		*dst = d
		return
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		*dst = time.Duration(seconds) * time.Second
	}
}
