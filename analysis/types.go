package analysis

import (
	"time"

	"github.com/RyanBlaney/sonido-clave/algorithms/tonal"
)

// Waveform is decoded audio handed to the engine. Samples are interleaved
// when Channels > 1; Channels 0 is read as mono. The engine never modifies
// Samples.
type Waveform struct {
	Samples    []float64
	SampleRate int
	Channels   int
}

func (w Waveform) channels() int {
	if w.Channels <= 0 {
		return 1
	}
	return w.Channels
}

// Validate reports InvalidInput problems: no samples, a non-positive sample
// rate, or a sample count that does not split evenly into channels
func (w Waveform) Validate() error {
	if len(w.Samples) == 0 {
		return invalidInput("", "waveform is empty", nil)
	}
	if w.SampleRate <= 0 {
		return invalidInput("", "sample rate must be positive", nil)
	}
	if len(w.Samples)%w.channels() != 0 {
		return invalidInput("", "sample count is not a multiple of the channel count", nil)
	}
	return nil
}

// Duration returns the playing time of the waveform
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	frames := len(w.Samples) / w.channels()
	return time.Duration(frames) * time.Second / time.Duration(w.SampleRate)
}

// KeyEstimate is the result of analyzing one waveform
type KeyEstimate struct {
	Tonic        tonal.PitchClass    `json:"tonic"`
	Mode         tonal.Mode          `json:"mode"`
	Confidence   float64             `json:"confidence"`
	Alternatives []tonal.Alternative `json:"alternatives"`
	TempoBPM     float64             `json:"tempo_bpm"`
	Energy       float64             `json:"energy"`
	Brightness   float64             `json:"brightness"`
}

// Key returns the detected (tonic, mode) pair
func (k KeyEstimate) Key() tonal.Candidate {
	return tonal.Candidate{Tonic: k.Tonic, Mode: k.Mode}
}

// Name returns the key name, for example "C major"
func (k KeyEstimate) Name() string {
	return k.Key().String()
}

// Relative returns the relative major or minor of the detected key
func (k KeyEstimate) Relative() tonal.Candidate {
	return tonal.RelativeKey(k.Key())
}

// Scale pairs the key with its relative: "C/A" for C major, "Am/C" for A minor
func (k KeyEstimate) Scale() string {
	return k.Key().Short() + "/" + k.Relative().Tonic.String()
}
