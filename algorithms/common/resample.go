package common

// Mixdown averages interleaved channels into a mono signal.
// The input is not modified.
func Mixdown(samples []float64, channels int) []float64 {
	if channels <= 1 {
		mono := make([]float64, len(samples))
		copy(mono, samples)
		return mono
	}

	frames := len(samples) / channels
	mono := make([]float64, frames)
	scale := 1.0 / float64(channels)

	for i := range frames {
		sum := 0.0
		for ch := range channels {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum * scale
	}

	return mono
}

// Resample converts a signal between sample rates.
//
// Integer downsampling ratios average each block of input samples (a box
// low-pass followed by decimation). Every other ratio falls back to linear
// interpolation between neighboring samples.
func Resample(signal []float64, originalRate, targetRate int) []float64 {
	if len(signal) == 0 || originalRate <= 0 || targetRate <= 0 || originalRate == targetRate {
		return signal
	}

	if originalRate > targetRate && originalRate%targetRate == 0 {
		return decimate(signal, originalRate/targetRate)
	}

	ratio := float64(originalRate) / float64(targetRate)
	newLength := int(float64(len(signal)) / ratio)
	if newLength <= 0 {
		return []float64{}
	}

	resampled := make([]float64, newLength)
	for i := range resampled {
		resampled[i] = linearAt(signal, float64(i)*ratio)
	}

	return resampled
}

func decimate(signal []float64, factor int) []float64 {
	newLength := len(signal) / factor
	out := make([]float64, newLength)
	scale := 1.0 / float64(factor)

	for i := range out {
		sum := 0.0
		base := i * factor
		for j := range factor {
			sum += signal[base+j]
		}
		out[i] = sum * scale
	}

	return out
}

// linearAt performs linear interpolation at a fractional index
func linearAt(data []float64, index float64) float64 {
	if index <= 0 {
		return data[0]
	}
	if index >= float64(len(data)-1) {
		return data[len(data)-1]
	}

	i := int(index)
	frac := index - float64(i)
	return data[i]*(1-frac) + data[i+1]*frac
}
