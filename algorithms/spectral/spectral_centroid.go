package spectral

import "github.com/RyanBlaney/sonido-clave/algorithms/common"

// SpectralCentroid computes the spectral centroid (center of mass) of a spectrum
type SpectralCentroid struct {
	sampleRate int
	freqBins   []float64 // Pre-calculated frequency bins for efficiency
}

// NewSpectralCentroid creates a new spectral centroid calculator
func NewSpectralCentroid(sampleRate int) *SpectralCentroid {
	return &SpectralCentroid{
		sampleRate: sampleRate,
	}
}

// Compute calculates the magnitude-weighted mean frequency of one spectrum.
// The second return value is false when the spectrum carries no energy.
func (sc *SpectralCentroid) Compute(spectrum []float64) (float64, bool) {
	if len(spectrum) < 2 {
		return 0, false
	}

	if len(sc.freqBins) != len(spectrum) {
		sc.initializeFreqBins(len(spectrum))
	}

	numerator := 0.0
	denominator := 0.0

	for i, m := range spectrum {
		numerator += sc.freqBins[i] * m
		denominator += m
	}

	if denominator <= 1e-12 {
		return 0, false
	}

	return common.Finite(numerator / denominator), true
}

// ComputeFrames processes multiple frames; silent frames yield 0
func (sc *SpectralCentroid) ComputeFrames(spectrogram [][]float64) []float64 {
	centroids := make([]float64, len(spectrogram))

	for t, spectrum := range spectrogram {
		centroids[t], _ = sc.Compute(spectrum)
	}

	return centroids
}

// Mean returns the average centroid over frames that carry energy
func (sc *SpectralCentroid) Mean(spectrogram [][]float64) float64 {
	sum := 0.0
	count := 0

	for _, spectrum := range spectrogram {
		if c, ok := sc.Compute(spectrum); ok {
			sum += c
			count++
		}
	}

	if count == 0 {
		return 0
	}

	return common.Finite(sum / float64(count))
}

func (sc *SpectralCentroid) initializeFreqBins(numBins int) {
	sc.freqBins = make([]float64, numBins)
	for i := range numBins {
		sc.freqBins[i] = float64(i) * float64(sc.sampleRate) / float64((numBins-1)*2)
	}
}
