package temporal

import (
	"github.com/RyanBlaney/sonido-clave/algorithms/common"
)

// Envelope provides amplitude envelope extraction
type Envelope struct {
	// No state needed - stateless calculation
}

// NewEnvelope creates a new envelope extractor
func NewEnvelope() *Envelope {
	return &Envelope{}
}

// ComputeRMS computes RMS envelope with given frame and hop sizes
func (e *Envelope) ComputeRMS(signal []float64, frameSize, hopSize int) []float64 {
	if len(signal) < frameSize || frameSize <= 0 || hopSize <= 0 {
		return []float64{}
	}

	numFrames := (len(signal)-frameSize)/hopSize + 1
	envelope := make([]float64, numFrames)

	for i := range numFrames {
		startIdx := i * hopSize
		envelope[i] = common.RMS(signal[startIdx : startIdx+frameSize])
	}

	return envelope
}

// ComputeEnergy returns the clip energy: the mean frame RMS using
// 2048-sample frames and a 512 hop
func (e *Envelope) ComputeEnergy(signal []float64) float64 {
	rms := e.ComputeRMS(signal, 2048, 512)
	if len(rms) == 0 {
		return 0
	}
	return common.Finite(common.Mean(rms))
}
