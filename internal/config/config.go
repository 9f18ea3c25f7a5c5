// Package config reads the ambient settings of the murmur binary from its
// environment. Protocol behavior is never configured here; it is driven by the
// init and topology messages a node receives.
package config

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zapcore"
)

const (
	EnvGossipInterval = "MURMUR_GOSSIP_INTERVAL"
	EnvLogLevel       = "MURMUR_LOG_LEVEL"
	EnvMetricsAddr    = "MURMUR_METRICS_ADDR"
)

// Config holds the process configuration.
type Config struct {
	GossipInterval time.Duration
	LogLevel       zapcore.Level
	// MetricsAddr is the listen address of the metrics endpoint. Empty disables
	// it.
	MetricsAddr string
}

func Default() Config {
	return Config{
		GossipInterval: 200 * time.Millisecond,
		LogLevel:       zapcore.InfoLevel,
	}
}

// Load builds a Config from lookup, typically os.LookupEnv. Unset variables
// keep their default.
func Load(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if v, ok := lookup(EnvGossipInterval); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, errors.Wrapf(err, "invalid %s", EnvGossipInterval)
		}
		if d <= 0 {
			return cfg, errors.Newf("invalid %s: must be positive, got %s", EnvGossipInterval, v)
		}
		cfg.GossipInterval = d
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		lvl, err := zapcore.ParseLevel(v)
		if err != nil {
			return cfg, errors.Wrapf(err, "invalid %s", EnvLogLevel)
		}
		cfg.LogLevel = lvl
	}
	if v, ok := lookup(EnvMetricsAddr); ok {
		cfg.MetricsAddr = v
	}
	return cfg, nil
}
