package filters

import "math"

// DefaultDCCutoff is the -3 dB corner of the DC blocker in Hz
const DefaultDCCutoff = 10.0

// DCRemoval is a one-pole DC blocking filter:
//
//	y[n] = x[n] - x[n-1] + R*y[n-1]
//
// with R = 1 - 2*pi*fc/fs. Each call to Apply starts from zero state, so a
// single DCRemoval can be shared between goroutines.
//
// Reference: J. O. Smith III, "Introduction to Digital Filters", DC Blocker.
type DCRemoval struct {
	pole float64
}

// NewDCRemoval creates a DC blocker with the default cutoff
func NewDCRemoval(sampleRate int) *DCRemoval {
	return NewDCRemovalWithCutoff(sampleRate, DefaultDCCutoff)
}

// NewDCRemovalWithCutoff creates a DC blocker with the given -3 dB cutoff
func NewDCRemovalWithCutoff(sampleRate int, cutoffFreq float64) *DCRemoval {
	pole := 0.995
	if sampleRate > 0 && cutoffFreq > 0 {
		pole = 1 - 2*math.Pi*cutoffFreq/float64(sampleRate)
	}
	// keep the pole inside the unit circle
	pole = math.Max(0, math.Min(pole, 0.99999))
	return &DCRemoval{pole: pole}
}

// Pole returns the filter's R coefficient
func (dc *DCRemoval) Pole() float64 {
	return dc.pole
}

// Apply filters signal into a new slice
func (dc *DCRemoval) Apply(signal []float64) []float64 {
	out := make([]float64, len(signal))
	copy(out, signal)
	dc.ApplyInPlace(out)
	return out
}

// ApplyInPlace filters signal in place
func (dc *DCRemoval) ApplyInPlace(signal []float64) {
	var x1, y1 float64
	for i, x := range signal {
		y := x - x1 + dc.pole*y1
		x1, y1 = x, y
		signal[i] = y
	}
}
