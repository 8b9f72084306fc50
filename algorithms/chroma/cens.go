package chroma

import (
	"math"

	"github.com/RyanBlaney/sonido-clave/algorithms/common"
	"github.com/RyanBlaney/sonido-clave/algorithms/windowing"
)

// CENS computes Chroma Energy Normalized Statistics (Müller 2005) from a
// finer chromagram.
//
// Steps: L1-normalize each frame, quantize against a logarithmic threshold
// ladder, smooth along time with a Hann window, downsample and
// L2-normalize. The result is robust to dynamics and articulation at the
// cost of time resolution.
type CENS struct {
	thresholds   []float64
	smoothWidth  int
	downsample   int
	smoothWindow []float64
}

// NewCENS creates a CENS calculator with a 41-frame smoother and a
// downsampling factor of 10
func NewCENS() *CENS {
	return NewCENSWithParams(41, 10)
}

// NewCENSWithParams creates a CENS calculator with custom smoothing
func NewCENSWithParams(smoothWidth, downsample int) *CENS {
	coeffs := windowing.NewHann(smoothWidth).Coefficients()
	total := common.Sum(coeffs)
	if total > 0 {
		for i := range coeffs {
			coeffs[i] /= total
		}
	}

	return &CENS{
		thresholds:   []float64{0.4, 0.2, 0.1, 0.05},
		smoothWidth:  smoothWidth,
		downsample:   max(downsample, 1),
		smoothWindow: coeffs,
	}
}

// Compute derives the CENS chromagram from a chromagram
func (c *CENS) Compute(chromagram Matrix) Matrix {
	if len(chromagram) == 0 {
		return Zero(1)
	}

	quantized := make(Matrix, len(chromagram))
	for t, frame := range chromagram {
		quantized[t] = c.quantize(frame)
	}

	smoothed := c.smooth(quantized)

	out := make(Matrix, 0, (len(smoothed)+c.downsample-1)/c.downsample)
	for t := 0; t < len(smoothed); t += c.downsample {
		frame := make([]float64, Bins)
		copy(frame, smoothed[t])
		l2Normalize(frame)
		out = append(out, frame)
	}

	return out
}

// quantize L1-normalizes a frame and counts how many thresholds each
// value exceeds
func (c *CENS) quantize(frame []float64) []float64 {
	out := make([]float64, Bins)

	total := 0.0
	for _, v := range frame {
		total += math.Abs(v)
	}
	if total <= 1e-20 {
		return out
	}

	for pc, v := range frame {
		norm := math.Abs(v) / total
		for _, th := range c.thresholds {
			if norm > th {
				out[pc]++
			}
		}
	}

	return out
}

// smooth convolves each pitch class track with the normalized Hann
// window, keeping the input length
func (c *CENS) smooth(m Matrix) Matrix {
	half := len(c.smoothWindow) / 2
	out := make(Matrix, len(m))

	for t := range m {
		out[t] = make([]float64, Bins)
		for j, w := range c.smoothWindow {
			src := t + j - half
			if src < 0 || src >= len(m) {
				continue
			}
			for pc := range Bins {
				out[t][pc] += w * m[src][pc]
			}
		}
	}

	return out
}

func l2Normalize(frame []float64) {
	sum := 0.0
	for _, v := range frame {
		sum += v * v
	}

	norm := math.Sqrt(sum)
	if norm <= 1e-20 {
		return
	}

	for i := range frame {
		frame[i] = common.Finite(frame[i] / norm)
	}
}
