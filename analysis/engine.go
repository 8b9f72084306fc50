package analysis

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-clave/algorithms/tonal"
	"github.com/RyanBlaney/sonido-clave/cache"
	"github.com/RyanBlaney/sonido-clave/logging"
	"github.com/RyanBlaney/sonido-clave/transcode"
)

// Engine runs the key detection pipeline, optionally memoized by a result
// cache. An Engine is safe for concurrent use.
type Engine struct {
	extractor    *Extractor
	decider      *tonal.KeyDecider
	cache        *cache.Cache[KeyEstimate]
	cacheErr     error
	logger       logging.Logger
	workers      int
	alternatives int
	extractorCfg ExtractorConfig
}

// Option configures an Engine
type Option func(*Engine)

// WithCache memoizes results by content hash
func WithCache(c *cache.Cache[KeyEstimate]) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithUnavailableCache records that the configured store could not be
// opened. Cached analyses then report StatusDegraded with err.
func WithUnavailableCache(err error) Option {
	return func(e *Engine) {
		e.cacheErr = err
	}
}

// WithLogger sets the engine logger. Defaults to the global logger.
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithAlternatives sets how many runner-up keys are reported
func WithAlternatives(n int) Option {
	return func(e *Engine) {
		e.alternatives = n
	}
}

// WithWorkers bounds the number of files a batch analyzes at once.
// Values below 1 mean one worker per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithExtractorConfig overrides the feature extraction settings
func WithExtractorConfig(cfg ExtractorConfig) Option {
	return func(e *Engine) {
		e.extractorCfg = cfg
	}
}

// NewEngine creates an engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:       logging.GetGlobalLogger(),
		alternatives: tonal.DefaultAlternatives,
		extractorCfg: DefaultExtractorConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.workers < 1 {
		e.workers = runtime.NumCPU()
	}
	e.logger = e.logger.WithFields(logging.Fields{
		"component": "key_engine",
	})
	e.extractor = NewExtractor(e.extractorCfg, e.logger)
	e.decider = tonal.NewKeyDecider(e.alternatives)

	return e
}

// Workers returns the batch concurrency limit
func (e *Engine) Workers() int {
	return e.workers
}

// AnalyzeWaveform runs the full pipeline on w without consulting the cache
func (e *Engine) AnalyzeWaveform(w Waveform) (KeyEstimate, error) {
	features, err := e.extractor.Extract(w)
	if err != nil {
		return KeyEstimate{}, err
	}

	profile := features.Profile(e.extractor.config.Weights)
	decision := e.decider.Decide(profile, tonal.Correlate(profile))

	return KeyEstimate{
		Tonic:        decision.Key.Tonic,
		Mode:         decision.Key.Mode,
		Confidence:   decision.Confidence,
		Alternatives: decision.Alternatives,
		TempoBPM:     features.TempoBPM,
		Energy:       features.Energy,
		Brightness:   features.Brightness,
	}, nil
}

// Input is one unit of work for Analyze. Either Waveform or Decode must be
// set; Decode only runs when the cache cannot answer.
type Input struct {
	Name     string
	Hash     string // content hash of the raw file bytes; empty disables caching
	Waveform *Waveform
	Decode   func(ctx context.Context) (Waveform, error)
	Refresh  bool // recompute and overwrite any cached entry
}

func (in Input) waveform(ctx context.Context) (Waveform, error) {
	switch {
	case in.Waveform != nil:
		return *in.Waveform, nil
	case in.Decode != nil:
		return in.Decode(ctx)
	default:
		return Waveform{}, invalidInput(in.Name, "no waveform or decoder", nil)
	}
}

// FileInput hashes the file at path and defers decoding to dec
func FileInput(path string, dec *transcode.Decoder) (Input, error) {
	hash, err := cache.HashFile(path)
	if err != nil {
		return Input{}, invalidInput(path, "cannot read file", err)
	}

	return Input{
		Name: path,
		Hash: hash,
		Decode: func(ctx context.Context) (Waveform, error) {
			audio, err := dec.DecodeFile(ctx, path)
			if err != nil {
				return Waveform{}, invalidInput(path, "cannot decode audio", err)
			}
			return Waveform{
				Samples:    audio.PCM,
				SampleRate: audio.SampleRate,
				Channels:   audio.Channels,
			}, nil
		},
	}, nil
}

// Analysis is the outcome of analyzing one input
type Analysis struct {
	Name     string       `json:"name,omitempty"`
	Hash     string       `json:"hash,omitempty"`
	Estimate KeyEstimate  `json:"estimate"`
	Cache    cache.Status `json:"cache"`
	CacheErr error        `json:"-"` // set when Cache is cache.StatusDegraded
}

// Analyze estimates the key of one input. With useCache set and a cache
// configured, a stored result for in.Hash is returned without decoding.
func (e *Engine) Analyze(ctx context.Context, in Input, useCache bool) (Analysis, error) {
	start := time.Now()
	logger := e.logger.WithContext(ctx).WithFields(logging.Fields{
		"input": in.Name,
	})

	result := Analysis{Name: in.Name, Hash: in.Hash, Cache: cache.StatusOff}

	compute := func(ctx context.Context) (KeyEstimate, error) {
		w, err := in.waveform(ctx)
		if err != nil {
			return KeyEstimate{}, err
		}
		return e.AnalyzeWaveform(w)
	}

	if e.cache == nil || !useCache || in.Hash == "" {
		estimate, err := compute(ctx)
		if err != nil {
			return Analysis{}, nameInputError(err, in.Name)
		}
		result.Estimate = estimate
		if e.cache == nil && e.cacheErr != nil && useCache {
			result.Cache = cache.StatusDegraded
			result.CacheErr = e.cacheErr
		}
	} else {
		outcome, err := e.cache.GetOrCompute(ctx, in.Hash, compute, in.Refresh)
		if errors.Is(err, cache.ErrInvalidHash) {
			return Analysis{}, invalidInput(in.Name, "invalid content hash", err)
		}
		if err != nil {
			return Analysis{}, nameInputError(err, in.Name)
		}
		result.Estimate = outcome.Value
		result.Cache = outcome.Status
		result.CacheErr = outcome.StoreErr
	}

	fields := logging.Fields{
		"key":         result.Estimate.Name(),
		"confidence":  result.Estimate.Confidence,
		"cache":       string(result.Cache),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if result.CacheErr != nil {
		fields["cache_error"] = result.CacheErr.Error()
		logger.Warn("Analysis completed with cache degraded", fields)
	} else {
		logger.Debug("Analysis completed", fields)
	}

	return result, nil
}

// nameInputError attaches the input name to InputErrors that lack one
func nameInputError(err error, name string) error {
	var inputErr *InputError
	if name != "" && errors.As(err, &inputErr) && inputErr.Name == "" {
		named := *inputErr
		named.Name = name
		return &named
	}
	return err
}

// BatchResult is the outcome for the input at Index
type BatchResult struct {
	Index    int
	Analysis Analysis
	Err      error
}

// AnalyzeBatch analyzes inputs with at most Workers() running at once.
// Results are in input order.
//
// Cancelling ctx stops new inputs from starting; they report ErrSkipped.
// Inputs already running finish normally. The returned error is ctx.Err()
// when the batch was cut short; per-input failures are in BatchResult.Err.
func (e *Engine) AnalyzeBatch(ctx context.Context, inputs []Input, useCache bool) ([]BatchResult, error) {
	runID := uuid.NewString()
	ctx = logging.ContextWithFields(ctx, logging.Fields{"run_id": runID})
	logger := e.logger.WithContext(ctx)

	logger.Info("Starting batch analysis", logging.Fields{
		"inputs":  len(inputs),
		"workers": e.workers,
	})

	results := make([]BatchResult, len(inputs))
	skip := func(i int) {
		results[i].Err = fmt.Errorf("%w: %w", ErrSkipped, context.Cause(ctx))
	}

	var g errgroup.Group
	g.SetLimit(e.workers)

	for i, in := range inputs {
		results[i].Index = i
		if ctx.Err() != nil {
			skip(i)
			continue
		}

		g.Go(func() error {
			if ctx.Err() != nil {
				skip(i)
				return nil
			}
			// a started input runs to completion
			a, err := e.Analyze(context.WithoutCancel(ctx), in, useCache)
			results[i].Analysis = a
			results[i].Err = err
			return nil
		})
	}
	_ = g.Wait()

	var failed, skipped int
	for _, r := range results {
		switch {
		case errors.Is(r.Err, ErrSkipped):
			skipped++
		case r.Err != nil:
			failed++
		}
	}
	logger.Info("Batch analysis finished", logging.Fields{
		"inputs":  len(inputs),
		"failed":  failed,
		"skipped": skipped,
	})

	return results, ctx.Err()
}
