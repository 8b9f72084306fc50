package chroma

import "github.com/RyanBlaney/sonido-clave/algorithms/common"

// Weights sets how much each chroma representation contributes to the
// combined pitch-class profile
type Weights struct {
	CQT  float64 `json:"cqt"`
	STFT float64 `json:"stft"`
	CENS float64 `json:"cens"`
}

// DefaultWeights favors the constant-Q representation for its harmonic
// stability, with CENS close behind
var DefaultWeights = Weights{CQT: 0.40, STFT: 0.25, CENS: 0.35}

// Sum returns the total of all weights
func (w Weights) Sum() float64 {
	return w.CQT + w.STFT + w.CENS
}

// Combine fuses three chromagrams into one 12-value pitch-class profile
// that sums to 1. When there is no pitch energy at all the profile is
// uniform.
func Combine(cqt, stft, cens Matrix, w Weights) []float64 {
	sources := []struct {
		mean   []float64
		weight float64
	}{
		{cqt.Mean(), w.CQT},
		{stft.Mean(), w.STFT},
		{cens.Mean(), w.CENS},
	}

	profile := make([]float64, Bins)
	for _, s := range sources {
		for pc := range Bins {
			profile[pc] += s.weight * s.mean[pc]
		}
	}
	common.FiniteInPlace(profile)

	total := common.Sum(profile)
	if total <= 1e-12 {
		return Uniform()
	}

	for pc := range profile {
		profile[pc] /= total
	}

	return profile
}

// Uniform returns the flat 1/12 profile
func Uniform() []float64 {
	profile := make([]float64, Bins)
	for pc := range profile {
		profile[pc] = 1.0 / Bins
	}
	return profile
}
