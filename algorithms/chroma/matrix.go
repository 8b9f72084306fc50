package chroma

import "github.com/RyanBlaney/sonido-clave/algorithms/common"

// Bins is the number of pitch classes in every chroma frame (C..B)
const Bins = 12

// Matrix is a chromagram stored frame-major: Matrix[t] is the 12-value
// pitch-class vector of frame t. Values are non-negative.
type Matrix [][]float64

// Zero returns a matrix of n all-zero frames
func Zero(n int) Matrix {
	m := make(Matrix, max(n, 1))
	for t := range m {
		m[t] = make([]float64, Bins)
	}
	return m
}

// Frames returns the number of time frames
func (m Matrix) Frames() int {
	return len(m)
}

// Mean collapses the time axis by averaging every pitch class across frames
func (m Matrix) Mean() []float64 {
	mean := make([]float64, Bins)
	if len(m) == 0 {
		return mean
	}

	for _, frame := range m {
		for pc := range Bins {
			mean[pc] += frame[pc]
		}
	}

	scale := 1.0 / float64(len(m))
	for pc := range mean {
		mean[pc] = common.Finite(mean[pc] * scale)
	}

	return mean
}

// Labels returns the chroma bin labels
func Labels() []string {
	return []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
}

// semitoneBand describes which FFT bins contribute to one semitone and
// with what weight
type semitoneBand struct {
	pitchClass int
	bins       []int
	weights    []float64
	weightSum  float64
}

// density returns the weighted mean power of the band
func (b semitoneBand) density(power []float64) float64 {
	sum := 0.0
	for i, k := range b.bins {
		sum += power[k] * b.weights[i]
	}
	return sum / b.weightSum
}

// foldBands averages band densities per pitch class and max-normalizes
// the frame. Pitch classes are averaged rather than summed so that every
// class sees the same number of octaves regardless of the analysis range.
func foldBands(frame []float64, power []float64, bands []semitoneBand, counts []int) {
	for i := range frame {
		frame[i] = 0
	}

	for _, band := range bands {
		frame[band.pitchClass] += band.density(power)
	}

	peak := 0.0
	for pc := range frame {
		if counts[pc] > 0 {
			frame[pc] /= float64(counts[pc])
		}
		frame[pc] = common.Finite(frame[pc])
		if frame[pc] > peak {
			peak = frame[pc]
		}
	}

	if peak > 1e-20 {
		for pc := range frame {
			frame[pc] /= peak
		}
	} else {
		for pc := range frame {
			frame[pc] = 0
		}
	}
}

// bandCounts returns how many bands fold into each pitch class
func bandCounts(bands []semitoneBand) []int {
	counts := make([]int, Bins)
	for _, b := range bands {
		counts[b.pitchClass]++
	}
	return counts
}

// midiToPitchClass maps a MIDI note number to its pitch class (C = 0)
func midiToPitchClass(midi int) int {
	return ((midi % Bins) + Bins) % Bins
}
