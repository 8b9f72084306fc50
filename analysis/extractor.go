package analysis

import (
	"fmt"
	"math"
	"time"

	"github.com/RyanBlaney/sonido-clave/algorithms/chroma"
	"github.com/RyanBlaney/sonido-clave/algorithms/common"
	"github.com/RyanBlaney/sonido-clave/algorithms/filters"
	"github.com/RyanBlaney/sonido-clave/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-clave/algorithms/spectral"
	"github.com/RyanBlaney/sonido-clave/algorithms/temporal"
	"github.com/RyanBlaney/sonido-clave/algorithms/windowing"
	"github.com/RyanBlaney/sonido-clave/logging"
)

const (
	// silenceThreshold is the peak amplitude below which a clip is silent
	silenceThreshold = 1e-9

	// minAnalysisSamples is the longest analysis window (the CQT chroma
	// frame); shorter clips are treated as degenerate
	minAnalysisSamples = 8192

	brightnessWindow = 2048
	brightnessHop    = 512
)

// ExtractorConfig holds feature extraction settings
type ExtractorConfig struct {
	SampleRate         int            `json:"sample_rate"`         // Analysis rate; input is resampled to it
	MaxDuration        time.Duration  `json:"max_duration"`        // Only the leading part is analyzed; 0 = everything
	HarmonicSeparation bool           `json:"harmonic_separation"` // Compute chroma from the HPSS harmonic part
	Weights            chroma.Weights `json:"weights"`
}

// DefaultExtractorConfig returns the standard analysis settings
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		SampleRate:         22050,
		MaxDuration:        120 * time.Second,
		HarmonicSeparation: true,
		Weights:            chroma.DefaultWeights,
	}
}

// Features is everything the extractor derives from one waveform
type Features struct {
	CQT        chroma.Matrix
	STFT       chroma.Matrix
	CENS       chroma.Matrix
	TempoBPM   float64
	Energy     float64
	Brightness float64
	Degenerate bool // silent or too short; every value above is zero
}

// Profile fuses the three chromagrams into one pitch-class profile
func (f *Features) Profile(w chroma.Weights) []float64 {
	return chroma.Combine(f.CQT, f.STFT, f.CENS, w)
}

// Extractor turns waveforms into Features. It holds no per-call state and
// is safe for concurrent use.
type Extractor struct {
	config ExtractorConfig
	logger logging.Logger

	dcBlock    *filters.DCRemoval
	hpss       *harmonic.HPSS
	chromaCQT  *chroma.ChromaCQT
	chromaSTFT *chroma.ChromaSTFT
	cens       *chroma.CENS
	tempo      *temporal.TempoEstimation
	envelope   *temporal.Envelope
	stft       *spectral.STFT
	window     *windowing.Hann
}

// NewExtractor creates an extractor. Zero config fields take the defaults.
func NewExtractor(config ExtractorConfig, logger logging.Logger) *Extractor {
	def := DefaultExtractorConfig()
	if config.SampleRate <= 0 {
		config.SampleRate = def.SampleRate
	}
	if config.MaxDuration < 0 {
		config.MaxDuration = 0
	}
	if config.Weights == (chroma.Weights{}) {
		config.Weights = def.Weights
	}
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}

	sr := config.SampleRate
	return &Extractor{
		config: config,
		logger: logger.WithFields(logging.Fields{
			"component": "feature_extractor",
		}),
		dcBlock:    filters.NewDCRemoval(sr),
		hpss:       harmonic.NewHPSS(),
		chromaCQT:  chroma.NewChromaCQTDefault(sr),
		chromaSTFT: chroma.NewChromaSTFTDefault(sr),
		cens:       chroma.NewCENS(),
		tempo:      temporal.NewTempoEstimation(sr),
		envelope:   temporal.NewEnvelope(),
		stft:       spectral.NewSTFT(),
		window:     windowing.NewHann(brightnessWindow),
	}
}

// Config returns the effective extraction settings
func (e *Extractor) Config() ExtractorConfig {
	return e.config
}

// Extract computes chroma and scalar features. Silent or very short input
// yields a degenerate result instead of an error.
func (e *Extractor) Extract(w Waveform) (*Features, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	signal := e.prepare(w)
	logger := e.logger.WithFields(logging.Fields{
		"samples":     len(signal),
		"sample_rate": e.config.SampleRate,
	})

	if isDegenerate(signal) {
		logger.Debug("Degenerate signal, skipping feature extraction")
		return degenerateFeatures(), nil
	}

	tonalSignal := signal
	if e.config.HarmonicSeparation {
		sep, err := e.hpss.Separate(signal, e.config.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("harmonic separation: %w", err)
		}
		tonalSignal = sep.Harmonic
	}

	features := &Features{}
	var err error

	if features.CQT, err = e.chromaCQT.Compute(tonalSignal); err != nil {
		return nil, err
	}
	if features.STFT, err = e.chromaSTFT.Compute(tonalSignal); err != nil {
		return nil, err
	}
	features.CENS = e.cens.Compute(features.STFT)

	tempo, err := e.tempo.EstimateTempo(signal)
	if err != nil {
		return nil, fmt.Errorf("tempo: %w", err)
	}
	features.TempoBPM = tempo.BPM
	features.Energy = e.envelope.ComputeEnergy(signal)

	if features.Brightness, err = e.brightness(signal); err != nil {
		return nil, err
	}

	sanitize(features)

	logger.Debug("Extracted features", logging.Fields{
		"cqt_frames":  features.CQT.Frames(),
		"stft_frames": features.STFT.Frames(),
		"cens_frames": features.CENS.Frames(),
		"tempo_bpm":   features.TempoBPM,
		"energy":      features.Energy,
		"brightness":  features.Brightness,
	})

	return features, nil
}

// prepare mixes to mono, resamples to the analysis rate, applies the
// duration cap and removes any DC offset. The caller's samples are never
// modified.
func (e *Extractor) prepare(w Waveform) []float64 {
	mono := common.Mixdown(w.Samples, w.channels())
	mono = common.Resample(mono, w.SampleRate, e.config.SampleRate)

	if e.config.MaxDuration > 0 {
		limit := int(e.config.MaxDuration.Seconds() * float64(e.config.SampleRate))
		if limit < len(mono) {
			mono = mono[:limit]
		}
	}

	common.FiniteInPlace(mono)
	e.dcBlock.ApplyInPlace(mono)
	return mono
}

func (e *Extractor) brightness(signal []float64) (float64, error) {
	spec, err := e.stft.ComputeWithWindow(signal, brightnessWindow, brightnessHop, e.config.SampleRate, e.window)
	if err != nil {
		return 0, fmt.Errorf("brightness: %w", err)
	}
	// one centroid per call; it caches bin frequencies
	centroid := spectral.NewSpectralCentroid(e.config.SampleRate)
	return centroid.Mean(spec.Magnitude), nil
}

func isDegenerate(signal []float64) bool {
	if len(signal) < minAnalysisSamples {
		return true
	}
	for _, v := range signal {
		if math.Abs(v) >= silenceThreshold {
			return false
		}
	}
	return true
}

func degenerateFeatures() *Features {
	return &Features{
		CQT:        chroma.Zero(1),
		STFT:       chroma.Zero(1),
		CENS:       chroma.Zero(1),
		Degenerate: true,
	}
}

// sanitize replaces NaN/Inf and negative values with zero
func sanitize(f *Features) {
	for _, m := range []chroma.Matrix{f.CQT, f.STFT, f.CENS} {
		for _, frame := range m {
			for i, v := range frame {
				frame[i] = math.Max(common.Finite(v), 0)
			}
		}
	}
	f.TempoBPM = math.Max(common.Finite(f.TempoBPM), 0)
	f.Energy = math.Max(common.Finite(f.Energy), 0)
	f.Brightness = math.Max(common.Finite(f.Brightness), 0)
}
