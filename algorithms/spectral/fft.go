package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT provides Fast Fourier Transform functionality
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes Fast Fourier Transform using mjibson/go-dsp
// Takes []float64 input and returns []complex128 output
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	// mjibson/go-dsp handles all sizes, including non-power-of-2
	return fft.FFTReal(x)
}

// ComputeInverseReal computes inverse FFT and returns real part only
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := fft.IFFT(x)
	realResult := make([]float64, len(result))

	for i, val := range result {
		realResult[i] = real(val)
	}

	return realResult
}

// InverseHalfSpectrum rebuilds a real frame of length n from its
// non-negative frequency bins (n/2+1 values) using Hermitian symmetry.
func (f *FFT) InverseHalfSpectrum(half []complex128, n int) []float64 {
	if n <= 0 || len(half) == 0 {
		return []float64{}
	}

	full := make([]complex128, n)
	for k := 0; k < len(half) && k < n; k++ {
		full[k] = half[k]
	}
	for k := 1; k < len(half) && n-k > k; k++ {
		full[n-k] = cmplx.Conj(half[k])
	}

	return f.ComputeInverseReal(full)
}
