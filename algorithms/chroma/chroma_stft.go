package chroma

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-clave/algorithms/spectral"
	"github.com/RyanBlaney/sonido-clave/algorithms/windowing"
)

// ChromaSTFT computes a chromagram from a short-window STFT
//
// DIFFERENCE FROM ChromaCQT:
//   - ChromaSTFT: 2048-sample window, 512 hop
//   - Fine time resolution, follows fast harmonic changes
//   - Coarse frequency resolution, so only 190 Hz - 5 kHz is used
//
// Each semitone band contributes its mean power density; octaves fold into
// 12 pitch classes and the frame is max-normalized.
type ChromaSTFT struct {
	sampleRate int
	windowSize int
	hopSize    int
	tuningFreq float64 // A4 frequency (default 440 Hz)
	minFreq    float64
	maxFreq    float64
	stft       *spectral.STFT
	window     *windowing.Hann
}

// NewChromaSTFT creates an STFT chromagram with custom parameters
func NewChromaSTFT(sampleRate, windowSize, hopSize int, minFreq, maxFreq, tuningFreq float64) *ChromaSTFT {
	return &ChromaSTFT{
		sampleRate: sampleRate,
		windowSize: windowSize,
		hopSize:    hopSize,
		tuningFreq: tuningFreq,
		minFreq:    minFreq,
		maxFreq:    maxFreq,
		stft:       spectral.NewSTFT(),
		window:     windowing.NewHann(windowSize),
	}
}

// NewChromaSTFTDefault creates chromagram with standard A4=440Hz tuning
func NewChromaSTFTDefault(sampleRate int) *ChromaSTFT {
	return NewChromaSTFT(sampleRate, 2048, 512, 190.0, 5000.0, 440.0)
}

// Compute computes the chromagram of signal
func (cs *ChromaSTFT) Compute(signal []float64) (Matrix, error) {
	spec, err := cs.stft.ComputeWithWindow(signal, cs.windowSize, cs.hopSize, cs.sampleRate, cs.window)
	if err != nil {
		return nil, fmt.Errorf("chroma stft: %w", err)
	}

	return cs.FromSpectrogram(spec), nil
}

// FromSpectrogram converts an existing STFT into a chromagram
func (cs *ChromaSTFT) FromSpectrogram(spec *spectral.STFTResult) Matrix {
	bands := cs.bands(spec.FreqBins, spec.FreqResolution)
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

	return chromagram
}

// bands groups FFT bins by the semitone they round to
func (cs *ChromaSTFT) bands(freqBins int, freqResolution float64) []semitoneBand {
	byMidi := make(map[int]*semitoneBand)
	var order []int

	for k := 1; k < freqBins; k++ {
		frequency := float64(k) * freqResolution
		if frequency < cs.minFreq || frequency > cs.maxFreq {
			continue
		}

		midi := int(math.Round(frequencyToMIDI(frequency, cs.tuningFreq)))
		band, ok := byMidi[midi]
		if !ok {
			band = &semitoneBand{pitchClass: midiToPitchClass(midi)}
			byMidi[midi] = band
			order = append(order, midi)
		}
		band.bins = append(band.bins, k)
		band.weights = append(band.weights, 1)
		band.weightSum++
	}

	bands := make([]semitoneBand, 0, len(order))
	for _, midi := range order {
		bands = append(bands, *byMidi[midi])
	}

	return bands
}

// frequencyToMIDI converts frequency to a fractional MIDI note number
func frequencyToMIDI(frequency, tuningFreq float64) float64 {
	if frequency <= 0 {
		return 0
	}

	// A4 = MIDI note 69
	return 69.0 + 12.0*math.Log2(frequency/tuningFreq)
}

// midiToFrequency converts a MIDI note number to Hz
func midiToFrequency(midi, tuningFreq float64) float64 {
	return tuningFreq * math.Pow(2, (midi-69.0)/12.0)
}
