package common

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical functions used across algorithms using gonum for robustness

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Variance calculates the sample variance of a slice using gonum
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return stat.Variance(data, nil)
}

// PopulationVariance calculates the variance normalized by N instead of N-1
func PopulationVariance(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	_, v := stat.PopMeanVariance(data, nil)
	return v
}

// StandardDeviation calculates the sample standard deviation
func StandardDeviation(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return math.Sqrt(Variance(data))
}

// Sum returns the sum of all elements
func Sum(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Sum(data)
}

// RMS calculates root mean square. Samples are scaled by the peak before
// squaring so very large inputs do not overflow.
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	peak := 0.0
	for _, val := range data {
		peak = math.Max(peak, math.Abs(val))
	}
	if peak == 0 || math.IsInf(peak, 0) || math.IsNaN(peak) {
		return peak
	}

	sumSquares := 0.0
	for _, val := range data {
		scaled := val / peak
		sumSquares += scaled * scaled
	}

	return peak * math.Sqrt(sumSquares/float64(len(data)))
}

// Correlation calculates the Pearson correlation coefficient between two series.
// Zero-variance input has no defined correlation and yields 0.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0.0
	}

	if PopulationVariance(x) < 1e-18 || PopulationVariance(y) < 1e-18 {
		return 0.0
	}

	return Clamp(Finite(stat.Correlation(x, y, nil)), -1, 1)
}

// MedianFilter applies median filtering with given window size. The signal is
// mirrored about its edges (d c b a | a b c d) so every window holds
// windowSize values.
func MedianFilter(data []float64, windowSize int) []float64 {
	if len(data) == 0 || windowSize <= 0 {
		return data
	}

	result := make([]float64, len(data))
	halfWindow := windowSize / 2
	window := make([]float64, windowSize)

	for i := range data {
		start := i - halfWindow
		for j := range window {
			window[j] = data[reflectIndex(start+j, len(data))]
		}
		sort.Float64s(window)

		mid := windowSize / 2
		if windowSize%2 == 0 {
			result[i] = (window[mid-1] + window[mid]) / 2.0
		} else {
			result[i] = window[mid]
		}
	}

	return result
}

// reflectIndex maps i onto [0, n) by mirroring about the signal edges
func reflectIndex(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i - 1
	}
	return i
}

// Median returns the median of data without modifying it
func Median(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2.0
	}
	return sorted[mid]
}

// Clamp constrains a value to a range
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Finite replaces NaN and ±Inf with zero
func Finite(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0.0
	}
	return value
}

// FiniteInPlace replaces every NaN/Inf element of data with zero
func FiniteInPlace(data []float64) {
	for i, v := range data {
		data[i] = Finite(v)
	}
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
