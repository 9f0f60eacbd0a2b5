// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/mitric-lab/NEB/internal/errors"
)

// Config is the full service configuration.
type Config struct {
	Environment string `env:"ENV" envDefault:"development"`

	HTTP struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}

	Logging struct {
		// Level is left empty unless LOG_LEVEL is set; Load fills in an
		// environment-dependent default.
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}

	NEB struct {
		// ForceConstant for springs between same-state images.
		ForceConstant float64 `env:"NEB_FORCE_CONSTANT" envDefault:"1.0"`
		// SwitchForceConstant for springs across a surface switch.
		SwitchForceConstant float64 `env:"NEB_SWITCH_FORCE_CONSTANT" envDefault:"5.0"`
		// Mass of each image in the damped dynamics.
		Mass float64 `env:"NEB_MASS" envDefault:"1.0"`
		// Workers bounds concurrent image evaluations per job.
		Workers int `env:"NEB_WORKERS" envDefault:"4"`
		// MaxSteps caps the step budget a single job may request.
		MaxSteps int `env:"NEB_MAX_STEPS" envDefault:"10000"`
		// ProcsPerImage and MemPerImage are passed through to evaluators.
		ProcsPerImage int    `env:"NEB_PROCS_PER_IMAGE" envDefault:"1"`
		MemPerImage   string `env:"NEB_MEM_PER_IMAGE" envDefault:"6Gb"`
	}
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse environment").WithOp("config.Load")
	}

	// Development runs default to verbose logs unless overridden.
	if cfg.Logging.Level == "" {
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		} else {
			cfg.Logging.Level = "info"
		}
	}

	return cfg, nil
}
