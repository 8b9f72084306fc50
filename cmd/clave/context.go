package main

import (
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-clave/analysis"
	"github.com/RyanBlaney/sonido-clave/cache"
	"github.com/RyanBlaney/sonido-clave/config"
	"github.com/RyanBlaney/sonido-clave/logging"
	"github.com/RyanBlaney/sonido-clave/transcode"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logger logging.Logger
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
		logger:     &logging.NoOpLogger{},
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.verbose != nil && *c.verbose {
			cfg.Logging.Level = "debug"
		}
		c.config = cfg
		c.logger = newLogger(cfg.Logging)
		logging.SetGlobalLogger(c.logger)
	})
	return c.config, c.configErr
}

// newLogger writes logs to stderr so stdout carries only results
func newLogger(cfg config.Logging) logging.Logger {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		level = logging.InfoLevel
	}

	if cfg.Format == "json" {
		return logging.NewJSONLogger(os.Stderr, level)
	}

	logger := logging.NewStderrLogger()
	logger.SetLevel(level)
	return logger
}

// openStore opens the configured cache backend regardless of cache.enabled
func (c *commandContext) openStore() (cache.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return cache.Open(cfg.Cache.Backend, cfg.Cache.Dir)
}

// newEngine builds the analysis engine from config. A cache that cannot be
// opened is logged and analysis continues without it, reporting each result
// as degraded. The returned closer releases the store.
func (c *commandContext) newEngine(useCache bool, opts ...analysis.Option) (*analysis.Engine, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}

	options := []analysis.Option{
		analysis.WithLogger(c.logger),
		analysis.WithAlternatives(cfg.Analysis.Alternatives),
		analysis.WithWorkers(cfg.Analysis.Workers),
		analysis.WithExtractorConfig(analysis.ExtractorConfig{
			SampleRate:         cfg.Analysis.SampleRate,
			MaxDuration:        cfg.MaxDuration(),
			HarmonicSeparation: cfg.Analysis.HarmonicSeparation,
		}),
	}

	closer := func() {}
	if useCache && cfg.Cache.Enabled {
		store, err := cache.Open(cfg.Cache.Backend, cfg.Cache.Dir)
		if err != nil {
			c.logger.Warn("Result cache unavailable, analyzing without it", logging.Fields{
				"backend": cfg.Cache.Backend,
				"dir":     cfg.Cache.Dir,
				"error":   err.Error(),
			})
			options = append(options, analysis.WithUnavailableCache(err))
		} else {
			options = append(options, analysis.WithCache(cache.New[analysis.KeyEstimate](store, c.logger)))
			closer = func() {
				if err := store.Close(); err != nil {
					c.logger.Warn("Failed to close result cache", logging.Fields{"error": err.Error()})
				}
			}
		}
	}

	options = append(options, opts...)
	return analysis.NewEngine(options...), closer, nil
}

func (c *commandContext) newDecoder() (*transcode.Decoder, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return transcode.NewDecoder(&transcode.DecoderConfig{
		TargetSampleRate: cfg.Analysis.SampleRate,
		MaxDuration:      cfg.MaxDuration(),
		FFmpegPath:       cfg.Decoder.FFmpeg,
		Timeout:          cfg.DecoderTimeout(),
	}), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
