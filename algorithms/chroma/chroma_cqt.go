package chroma

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-clave/algorithms/spectral"
	"github.com/RyanBlaney/sonido-clave/algorithms/windowing"
)

// ChromaCQT computes a constant-Q style chromagram
//
// DIFFERENCE FROM ChromaSTFT:
//   - ChromaSTFT: linear bins averaged per semitone, short window
//   - ChromaCQT: long 8192-sample window with one log-spaced Gaussian kernel
//     per semitone (σ = half a semitone), so every band has the same width
//     in musical terms
//
// CQT frequency spacing: f_k = f_min * 2^(k/12), starting at C2 for six
// octaves. Better tonic discrimination, weaker on noisy material.
type ChromaCQT struct {
	sampleRate int
	windowSize int
	hopSize    int
	minMIDI    int     // Lowest semitone (C2 = 36)
	numBins    int     // Number of semitone bands
	sigma      float64 // Kernel width in semitones
	tuningFreq float64
	stft       *spectral.STFT
	window     *windowing.Hann
}

// NewChromaCQT creates a CQT chromagram calculator with custom parameters
func NewChromaCQT(sampleRate, windowSize, hopSize, minMIDI, octaves int, tuningFreq float64) *ChromaCQT {
	return &ChromaCQT{
		sampleRate: sampleRate,
		windowSize: windowSize,
		hopSize:    hopSize,
		minMIDI:    minMIDI,
		numBins:    octaves * Bins,
		sigma:      0.5,
		tuningFreq: tuningFreq,
		stft:       spectral.NewSTFT(),
		window:     windowing.NewHann(windowSize),
	}
}

// NewChromaCQTDefault creates CQT chromagram with standard musical settings
func NewChromaCQTDefault(sampleRate int) *ChromaCQT {
	return NewChromaCQT(
		sampleRate,
		8192,  // Long window for semitone resolution at C2
		2048,  // Hop
		36,    // C2 ≈ 65.41 Hz
		6,     // Octaves
		440.0, // A4 = 440 Hz
	)
}

// Compute computes the chromagram of signal
func (cqt *ChromaCQT) Compute(signal []float64) (Matrix, error) {
	spec, err := cqt.stft.ComputeWithWindow(signal, cqt.windowSize, cqt.hopSize, cqt.sampleRate, cqt.window)
	if err != nil {
		return nil, fmt.Errorf("chroma cqt: %w", err)
	}

	bands := cqt.kernels(spec.FreqBins, spec.FreqResolution)
	counts := bandCounts(bands)

	chromagram := make(Matrix, spec.TimeFrames)
	power := make([]float64, spec.FreqBins)

	for t := range spec.TimeFrames {
		for k, m := range spec.Magnitude[t] {
			power[k] = m * m
		}
		chromagram[t] = make([]float64, Bins)
		foldBands(chromagram[t], power, bands, counts)
	}

	return chromagram, nil
}

// Frequencies returns the center frequency of every semitone band
func (cqt *ChromaCQT) Frequencies() []float64 {
	freqs := make([]float64, cqt.numBins)
	for i := range freqs {
		freqs[i] = midiToFrequency(float64(cqt.minMIDI+i), cqt.tuningFreq)
	}
	return freqs
}

// kernels builds one Gaussian band per semitone over the FFT bins.
// Bands above Nyquist or without any supporting bin are dropped.
func (cqt *ChromaCQT) kernels(freqBins int, freqResolution float64) []semitoneBand {
	nyquist := float64(cqt.sampleRate) / 2
	reach := 3 * cqt.sigma

	bands := make([]semitoneBand, 0, cqt.numBins)

	for i := range cqt.numBins {
		midi := cqt.minMIDI + i
		center := float64(midi)
		if midiToFrequency(center+reach, cqt.tuningFreq) >= nyquist {
			break
		}

		lo := int(math.Floor(midiToFrequency(center-reach, cqt.tuningFreq) / freqResolution))
		hi := int(math.Ceil(midiToFrequency(center+reach, cqt.tuningFreq) / freqResolution))

		band := semitoneBand{pitchClass: midiToPitchClass(midi)}
		for k := max(lo, 1); k <= hi && k < freqBins; k++ {
			d := (frequencyToMIDI(float64(k)*freqResolution, cqt.tuningFreq) - center) / cqt.sigma
			if math.Abs(d) > 3 {
				continue
			}
			w := math.Exp(-0.5 * d * d)
			band.bins = append(band.bins, k)
			band.weights = append(band.weights, w)
			band.weightSum += w
		}

		if band.weightSum > 1e-12 {
			bands = append(bands, band)
		}
	}

	return bands
}
