package temporal

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-clave/algorithms/common"
	"github.com/RyanBlaney/sonido-clave/algorithms/spectral"
	"github.com/RyanBlaney/sonido-clave/algorithms/windowing"
)

// OnsetStrength computes a spectral-flux onset envelope on a decibel scale
type OnsetStrength struct {
	windowSize int
	hopSize    int
	topDB      float64 // Dynamic range below the loudest cell
	stft       *spectral.STFT
	window     *windowing.Hann
}

// NewOnsetStrength creates an onset envelope calculator with a 2048/512
// Hann STFT and an 80 dB floor
func NewOnsetStrength() *OnsetStrength {
	return NewOnsetStrengthWithParams(2048, 512, 80.0)
}

// NewOnsetStrengthWithParams creates an onset envelope calculator with custom parameters
func NewOnsetStrengthWithParams(windowSize, hopSize int, topDB float64) *OnsetStrength {
	return &OnsetStrength{
		windowSize: windowSize,
		hopSize:    hopSize,
		topDB:      topDB,
		stft:       spectral.NewSTFT(),
		window:     windowing.NewHann(windowSize),
	}
}

// HopSize returns the envelope hop in samples
func (o *OnsetStrength) HopSize() int {
	return o.hopSize
}

// Compute returns one onset strength value per STFT frame. Frame 0 has no
// predecessor and is always 0.
func (o *OnsetStrength) Compute(signal []float64, sampleRate int) ([]float64, error) {
	spec, err := o.stft.ComputeWithWindow(signal, o.windowSize, o.hopSize, sampleRate, o.window)
	if err != nil {
		return nil, fmt.Errorf("onset stft: %w", err)
	}

	return o.FromSpectrogram(spec), nil
}

// FromSpectrogram computes the onset envelope of an existing STFT
func (o *OnsetStrength) FromSpectrogram(spec *spectral.STFTResult) []float64 {
	db := o.powerToDB(spec.Power())

	envelope := make([]float64, spec.TimeFrames)
	for t := 1; t < spec.TimeFrames; t++ {
		sum := 0.0
		for k := range spec.FreqBins {
			if d := db[t][k] - db[t-1][k]; d > 0 {
				sum += d
			}
		}
		envelope[t] = common.Finite(sum / float64(spec.FreqBins))
	}

	return envelope
}

// powerToDB converts power to decibels relative to the loudest cell,
// clipped topDB below it
func (o *OnsetStrength) powerToDB(power [][]float64) [][]float64 {
	const amin = 1e-10

	ref := amin
	for _, frame := range power {
		for _, p := range frame {
			ref = math.Max(ref, p)
		}
	}
	refDB := 10 * math.Log10(ref)
	floor := refDB - o.topDB

	db := make([][]float64, len(power))
	for t, frame := range power {
		db[t] = make([]float64, len(frame))
		for k, p := range frame {
			v := 10 * math.Log10(math.Max(p, amin))
			db[t][k] = math.Max(v, floor) - refDB
		}
	}

	return db
}

// findPeaks returns indices of local maxima at or above threshold
func findPeaks(envelope []float64, threshold float64) []int {
	var peaks []int
	for i := 1; i < len(envelope)-1; i++ {
		if envelope[i] >= threshold && envelope[i] > envelope[i-1] && envelope[i] >= envelope[i+1] {
			peaks = append(peaks, i)
		}
	}
	return peaks
}
