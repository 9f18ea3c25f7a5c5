package handler

import (
	"github.com/arya-analytics/murmur/internal/ident"
	"github.com/arya-analytics/murmur/internal/telemetry"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

type Config struct {
	// Generator produces the ids returned by generate requests.
	Generator ident.Generator
	// Metrics instruments the handler.
	Metrics *telemetry.Metrics
	Logger  *zap.Logger
}

func (cfg Config) Merge(def Config) Config {
	if cfg.Generator == nil {
		cfg.Generator = def.Generator
	}
	if cfg.Metrics == nil {
		cfg.Metrics = def.Metrics
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	return cfg
}

func (cfg Config) Validate() error {
	if cfg.Generator == nil {
		return errors.New("[handler] - generator required")
	}
	if cfg.Metrics == nil {
		return errors.New("[handler] - metrics required")
	}
	if cfg.Logger == nil {
		return errors.New("[handler] - logger required")
	}
	return nil
}

func DefaultConfig() Config {
	return Config{
		Generator: ident.UUID{},
		Metrics:   telemetry.Nop(),
		Logger:    zap.NewNop(),
	}
}
