package harmonic

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-clave/algorithms/common"
	"github.com/RyanBlaney/sonido-clave/algorithms/spectral"
	"github.com/RyanBlaney/sonido-clave/algorithms/windowing"
)

// HPSS separates a signal into harmonic and percussive parts with median
// filtering of the magnitude spectrogram (Fitzgerald 2010).
//
// Harmonic energy is smooth along time, so a median across frames keeps it
// and suppresses transients. Percussive energy is smooth along frequency,
// so a median across bins keeps it and suppresses tonal peaks. The two
// filtered spectrograms are turned into soft Wiener masks that are applied
// to the complex spectrogram before resynthesis.
type HPSS struct {
	windowSize int
	hopSize    int
	kernelSize int
	maskPower  float64
	stft       *spectral.STFT
	window     *windowing.Hann
}

// Separation holds both resynthesized components, each as long as the input
type Separation struct {
	Harmonic   []float64
	Percussive []float64
}

// NewHPSS creates a separator with a 2048/512 Hann STFT, 17-bin kernels and
// power-2 soft masks
func NewHPSS() *HPSS {
	return NewHPSSWithParams(2048, 512, 17, 2.0)
}

// NewHPSSWithParams creates a separator with custom analysis parameters
func NewHPSSWithParams(windowSize, hopSize, kernelSize int, maskPower float64) *HPSS {
	return &HPSS{
		windowSize: windowSize,
		hopSize:    hopSize,
		kernelSize: kernelSize,
		maskPower:  maskPower,
		stft:       spectral.NewSTFT(),
		window:     windowing.NewHann(windowSize),
	}
}

// Separate splits signal into harmonic and percussive components
func (h *HPSS) Separate(signal []float64, sampleRate int) (*Separation, error) {
	if len(signal) < h.windowSize {
		return nil, fmt.Errorf("signal too short for separation: %d samples, need %d", len(signal), h.windowSize)
	}

	spec, err := h.stft.ComputeWithWindow(signal, h.windowSize, h.hopSize, sampleRate, h.window)
	if err != nil {
		return nil, fmt.Errorf("stft: %w", err)
	}

	harmonicMag := h.filterAcrossTime(spec.Magnitude)
	percussiveMag := h.filterAcrossFrequency(spec.Magnitude)

	harmonicSpec := make([][]complex128, spec.TimeFrames)
	percussiveSpec := make([][]complex128, spec.TimeFrames)

	for t := range spec.TimeFrames {
		harmonicSpec[t] = make([]complex128, spec.FreqBins)
		percussiveSpec[t] = make([]complex128, spec.FreqBins)

		for k := range spec.FreqBins {
			mh, mp := h.softMasks(harmonicMag[t][k], percussiveMag[t][k])
			bin := spec.Complex[t][k]
			harmonicSpec[t][k] = bin * complex(mh, 0)
			percussiveSpec[t][k] = bin * complex(mp, 0)
		}
	}

	harmonic, err := h.stft.Inverse(harmonicSpec, h.windowSize, h.hopSize, len(signal), h.window)
	if err != nil {
		return nil, fmt.Errorf("harmonic resynthesis: %w", err)
	}

	percussive, err := h.stft.Inverse(percussiveSpec, h.windowSize, h.hopSize, len(signal), h.window)
	if err != nil {
		return nil, fmt.Errorf("percussive resynthesis: %w", err)
	}

	common.FiniteInPlace(harmonic)
	common.FiniteInPlace(percussive)

	return &Separation{Harmonic: harmonic, Percussive: percussive}, nil
}

// filterAcrossTime runs the median filter along each frequency bin
func (h *HPSS) filterAcrossTime(magnitude [][]float64) [][]float64 {
	frames := len(magnitude)
	bins := len(magnitude[0])

	out := make([][]float64, frames)
	for t := range out {
		out[t] = make([]float64, bins)
	}

	track := make([]float64, frames)
	for k := range bins {
		for t := range frames {
			track[t] = magnitude[t][k]
		}
		filtered := common.MedianFilter(track, h.kernelSize)
		for t := range frames {
			out[t][k] = filtered[t]
		}
	}

	return out
}

// filterAcrossFrequency runs the median filter along each frame
func (h *HPSS) filterAcrossFrequency(magnitude [][]float64) [][]float64 {
	out := make([][]float64, len(magnitude))
	for t, frame := range magnitude {
		out[t] = common.MedianFilter(frame, h.kernelSize)
	}
	return out
}

// softMasks returns the harmonic and percussive Wiener mask values for one
// cell. The masks always sum to 1.
func (h *HPSS) softMasks(harmonic, percussive float64) (float64, float64) {
	hp := math.Pow(harmonic, h.maskPower)
	pp := math.Pow(percussive, h.maskPower)
	total := hp + pp

	if total <= 1e-30 {
		return 0.5, 0.5
	}

	mh := hp / total
	return mh, 1 - mh
}
