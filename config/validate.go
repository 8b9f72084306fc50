package config

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-clave/logging"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Decoder.TimeoutSeconds < 0 {
		return errors.New("decoder.timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	a := c.Analysis
	if a.SampleRate < 8000 || a.SampleRate > 192000 {
		return fmt.Errorf("analysis.sample_rate must be between 8000 and 192000, got %d", a.SampleRate)
	}
	if a.MaxDurationSeconds < 0 {
		return errors.New("analysis.max_duration_seconds must be >= 0")
	}
	if a.Alternatives < 1 || a.Alternatives > 23 {
		return fmt.Errorf("analysis.alternatives must be between 1 and 23, got %d", a.Alternatives)
	}
	if a.Workers < 1 {
		return errors.New("analysis.workers must be positive")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case "memory", "file", "sqlite":
	default:
		return fmt.Errorf("cache.backend must be memory, file, or sqlite, got %q", c.Cache.Backend)
	}
	if c.Cache.Enabled && c.Cache.Backend != "memory" && c.Cache.Dir == "" {
		return errors.New("cache.dir must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}
