package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	// Ascent carries the default run parameters applied when a request
	// leaves them unset.
	Ascent struct {
		MaxIterations int     `env:"ASCENT_MAX_ITERATIONS" envDefault:"25"`
		GradLimit     float64 `env:"ASCENT_GRAD_LIMIT" envDefault:"1e-4"`
		StepSize      float64 `env:"ASCENT_STEP_SIZE" envDefault:"1.0"`
	}
	Grid struct {
		MaxResolution int `env:"GRID_MAX_RESOLUTION" envDefault:"512"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	if cfg.Ascent.MaxIterations < 1 {
		return nil, fmt.Errorf("config: ASCENT_MAX_ITERATIONS must be at least 1, got %d", cfg.Ascent.MaxIterations)
	}
	if cfg.Ascent.StepSize <= 0 {
		return nil, fmt.Errorf("config: ASCENT_STEP_SIZE must be positive, got %v", cfg.Ascent.StepSize)
	}
	if cfg.Ascent.GradLimit <= 0 {
		return nil, fmt.Errorf("config: ASCENT_GRAD_LIMIT must be positive, got %v", cfg.Ascent.GradLimit)
	}

	return cfg, nil
}
