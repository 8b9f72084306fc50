package spectral

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"
)

// STFT provides Short-Time Fourier Transform functionality
type STFT struct {
	fft *FFT
}

// STFTResult holds the result of STFT analysis
type STFTResult struct {
	Magnitude      [][]float64    `json:"magnitude"`       // Time x Frequency magnitude matrix
	Complex        [][]complex128 `json:"-"`               // Raw complex spectrogram (not serialized)
	TimeFrames     int            `json:"time_frames"`     // Number of time frames
	FreqBins       int            `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int            `json:"sample_rate"`     // Sample rate
	WindowSize     int            `json:"window_size"`     // FFT window size
	HopSize        int            `json:"hop_size"`        // Hop size between frames
	SignalLength   int            `json:"signal_length"`   // Samples in the analyzed signal
	FreqResolution float64        `json:"freq_resolution"` // Frequency resolution (Hz/bin)
	TimeResolution float64        `json:"time_resolution"` // Time resolution (seconds/frame)
}

// Window interface for windowing functions
type Window interface {
	ApplyInPlace(signal []float64) error
	Coefficients() []float64
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
	}
}

// FrameCount returns the number of full frames that fit in a signal
func FrameCount(signalLength, windowSize, hopSize int) int {
	if signalLength < windowSize || windowSize <= 0 || hopSize <= 0 {
		return 0
	}
	return (signalLength-windowSize)/hopSize + 1
}

// FrequencyOf returns the center frequency in Hz of an FFT bin
func (r *STFTResult) FrequencyOf(bin int) float64 {
	return float64(bin) * r.FreqResolution
}

// Power returns the squared magnitude spectrogram
func (r *STFTResult) Power() [][]float64 {
	power := make([][]float64, len(r.Magnitude))
	for t, frame := range r.Magnitude {
		power[t] = make([]float64, len(frame))
		for k, m := range frame {
			power[t][k] = m * m
		}
	}
	return power
}

// ComputeWithWindow computes STFT with parallel processing and custom window type
func (s *STFT) ComputeWithWindow(signal []float64, windowSize int, hopSize int, sampleRate int, window Window) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}

	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	numFrames := FrameCount(len(signal), windowSize, hopSize)
	if numFrames <= 0 {
		return nil, fmt.Errorf("signal too short for given window size and hop size")
	}

	// Positive frequencies only
	freqBins := windowSize/2 + 1

	magnitude := make([][]float64, numFrames)
	complexSpectrum := make([][]complex128, numFrames)
	for i := range numFrames {
		magnitude[i] = make([]float64, freqBins)
		complexSpectrum[i] = make([]complex128, freqBins)
	}

	numWorkers := s.getOptimalWorkerCount(numFrames)

	type frameJob struct {
		frameIdx int
		startIdx int
	}

	jobs := make(chan frameJob, numFrames)
	errs := make(chan error, numWorkers)

	var wg sync.WaitGroup

	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Reuse frame buffer for this worker
			frameBuffer := make([]float64, windowSize)

			for job := range jobs {
				copy(frameBuffer, signal[job.startIdx:job.startIdx+windowSize])

				if window != nil {
					if err := window.ApplyInPlace(frameBuffer); err != nil {
						errs <- fmt.Errorf("frame %d: %w", job.frameIdx, err)
						// Drain remaining jobs so the producer never blocks
						for range jobs {
						}
						return
					}
				}

				fftResult := s.fft.Compute(frameBuffer)

				for i := range freqBins {
					complexSpectrum[job.frameIdx][i] = fftResult[i]
					magnitude[job.frameIdx][i] = cmplx.Abs(fftResult[i])
				}
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameJob{frameIdx: frameIdx, startIdx: frameIdx * hopSize}
	}
	close(jobs)

	wg.Wait()
	close(errs)

	if err := <-errs; err != nil {
		return nil, err
	}

	result := &STFTResult{
		Magnitude:      magnitude,
		Complex:        complexSpectrum,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		SignalLength:   len(signal),
		FreqResolution: float64(sampleRate) / float64(windowSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}

	return result, nil
}

// Inverse resynthesizes a time-domain signal from a complex spectrogram by
// weighted overlap-add. The output has length samples; regions no frame
// covers are left at zero.
func (s *STFT) Inverse(spectrum [][]complex128, windowSize, hopSize, length int, window Window) ([]float64, error) {
	if windowSize <= 0 || hopSize <= 0 {
		return nil, fmt.Errorf("window size and hop size must be positive")
	}
	if length <= 0 {
		return []float64{}, nil
	}

	var coeffs []float64
	if window != nil {
		coeffs = window.Coefficients()
		if len(coeffs) != windowSize {
			return nil, fmt.Errorf("window length (%d) doesn't match window size (%d)", len(coeffs), windowSize)
		}
	} else {
		coeffs = make([]float64, windowSize)
		for i := range coeffs {
			coeffs[i] = 1
		}
	}

	output := make([]float64, length)
	norm := make([]float64, length)

	for t, frame := range spectrum {
		if len(frame) != windowSize/2+1 {
			return nil, fmt.Errorf("frame %d has %d bins, want %d", t, len(frame), windowSize/2+1)
		}

		samples := s.fft.InverseHalfSpectrum(frame, windowSize)
		start := t * hopSize

		for n := range windowSize {
			idx := start + n
			if idx >= length {
				break
			}
			output[idx] += samples[n] * coeffs[n]
			norm[idx] += coeffs[n] * coeffs[n]
		}
	}

	for i := range output {
		if norm[i] > 1e-10 {
			output[i] /= norm[i]
		}
	}

	return output, nil
}

// getOptimalWorkerCount determines the optimal number of workers based on workload
func (s *STFT) getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
