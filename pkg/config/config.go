// Package config provides environment-based configuration loading and validation.
//
// This package reads configuration from environment variables (and .env files)
// using struct tags, then validates the loaded configuration. Tunables are
// plain structs with `env` tags: the demo command loads its join TTL and
// log settings and broker.ResilientConfig's retry/circuit breaker knobs
// through this package, and the NATS and Kafka adapter Config structs carry
// the same kind of tags.
//
// Usage:
//
//	import "github.com/nova-pipeline/joinbus/pkg/config"
//
//	type PipelineConfig struct {
//		MaxAgeSeconds int `env:"JOIN_MAX_AGE_S" env-default:"60"`
//	}
//
//	var cfg PipelineConfig
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/nova-pipeline/joinbus/pkg/errors"
)

// Load reads configuration from .env file or environment variables and validates it.
func Load[T any](cfg *T) error {
	// ReadConfig fails when .env is absent; fall back to reading the
	// process environment directly in that case.
	if err := cleanenv.ReadConfig(".env", cfg); err != nil {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return errors.Wrap(err, "failed to read env config")
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return errors.Wrap(err, "config validation failed")
	}

	return nil
}
