package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-clave/algorithms/common"
)

// TempoResult describes the global tempo of a clip
type TempoResult struct {
	BPM    float64 `json:"bpm"`
	Period int     `json:"period_frames"` // Beat period picked from the autocorrelation
	Beats  []int   `json:"beats"`         // Beat positions in onset frames
}

// TempoEstimation estimates tempo with dynamic-programming beat tracking
// (Ellis 2007) over an onset strength envelope
type TempoEstimation struct {
	sampleRate  int
	hopSize     int
	startBPM    float64 // Center of the log-normal tempo prior
	stdOctaves  float64 // Prior width in octaves
	minBPM      float64
	maxBPM      float64
	tightness   float64 // Penalty on deviation from the beat period
	minStrength float64 // Envelope peak (dB) below which the clip has no rhythm
	minPeaks    int
	onset       *OnsetStrength
}

// NewTempoEstimation creates a tempo estimator with a 120 BPM prior and
// a 30-300 BPM search range
func NewTempoEstimation(sampleRate int) *TempoEstimation {
	onset := NewOnsetStrength()
	return &TempoEstimation{
		sampleRate:  sampleRate,
		hopSize:     onset.HopSize(),
		startBPM:    120.0,
		stdOctaves:  1.0,
		minBPM:      30.0,
		maxBPM:      300.0,
		tightness:   100.0,
		minStrength: 0.5,
		minPeaks:    4,
		onset:       onset,
	}
}

// EstimateTempo estimates tempo in BPM from a signal
func (te *TempoEstimation) EstimateTempo(signal []float64) (TempoResult, error) {
	envelope, err := te.onset.Compute(signal, te.sampleRate)
	if err != nil {
		return TempoResult{}, err
	}

	return te.FromEnvelope(envelope), nil
}

// FromEnvelope estimates tempo from an onset envelope. Envelopes without
// rhythmic content yield a zero result.
func (te *TempoEstimation) FromEnvelope(envelope []float64) TempoResult {
	if len(envelope) < 3 {
		return TempoResult{}
	}

	peak := 0.0
	for _, v := range envelope {
		peak = math.Max(peak, v)
	}
	if peak < te.minStrength {
		return TempoResult{}
	}

	if len(findPeaks(envelope, math.Max(te.minStrength, 0.1*peak))) < te.minPeaks {
		return TempoResult{}
	}

	// Unit-variance envelope keeps the tightness penalty on a fixed scale
	std := common.StandardDeviation(envelope)
	if std <= 1e-12 {
		return TempoResult{}
	}
	local := make([]float64, len(envelope))
	for i, v := range envelope {
		local[i] = v / std
	}

	period := te.estimatePeriod(local)
	if period <= 0 {
		return TempoResult{}
	}

	beats := te.trimBeats(local, te.trackBeats(local, period))
	if len(beats) < 2 {
		return TempoResult{Period: period, Beats: beats}
	}

	intervals := make([]float64, len(beats)-1)
	for i := range intervals {
		intervals[i] = float64(beats[i+1] - beats[i])
	}

	ibi := common.Median(intervals) * float64(te.hopSize) / float64(te.sampleRate)
	if ibi <= 0 {
		return TempoResult{Period: period, Beats: beats}
	}

	return TempoResult{
		BPM:    common.Finite(60.0 / ibi),
		Period: period,
		Beats:  beats,
	}
}

// estimatePeriod picks the autocorrelation lag with the highest prior-weighted
// score inside the BPM search range
func (te *TempoEstimation) estimatePeriod(envelope []float64) int {
	framesPerSecond := float64(te.sampleRate) / float64(te.hopSize)

	minLag := max(1, int(math.Floor(60.0*framesPerSecond/te.maxBPM)))
	maxLag := min(len(envelope)-1, int(math.Ceil(60.0*framesPerSecond/te.minBPM)))
	if maxLag < minLag {
		return 0
	}

	autocorr := te.calculateAutocorrelation(envelope, maxLag+1)

	bestLag := 0
	bestScore := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		bpm := 60.0 * framesPerSecond / float64(lag)
		z := math.Log2(bpm/te.startBPM) / te.stdOctaves
		score := autocorr[lag] * math.Exp(-0.5*z*z)
		if score > bestScore {
			bestScore = score
			bestLag = lag
		}
	}

	return bestLag
}

// calculateAutocorrelation calculates the unbiased autocorrelation function
func (te *TempoEstimation) calculateAutocorrelation(signal []float64, maxLag int) []float64 {
	if maxLag > len(signal) {
		maxLag = len(signal)
	}

	autocorr := make([]float64, maxLag)

	for lag := range maxLag {
		sum := 0.0
		count := 0

		for i := 0; i < len(signal)-lag; i++ {
			sum += signal[i] * signal[i+lag]
			count++
		}

		if count > 0 {
			autocorr[lag] = sum / float64(count)
		}
	}

	return autocorr
}

// trackBeats runs the dynamic program: each frame's cumulative score is its
// onset strength plus the best predecessor score, penalized by the squared
// log-deviation of the interval from the period.
func (te *TempoEstimation) trackBeats(local []float64, period int) []int {
	n := len(local)
	p := float64(period)

	cumulative := make([]float64, n)
	backlink := make([]int, n)

	for t := range n {
		backlink[t] = -1
		best := math.Inf(-1)

		lo := t - 2*period
		hi := t - int(math.Round(p/2))
		for prev := max(lo, 0); prev <= hi; prev++ {
			dev := math.Log(float64(t-prev) / p)
			score := cumulative[prev] - te.tightness*dev*dev
			if score > best {
				best = score
				backlink[t] = prev
			}
		}

		cumulative[t] = local[t]
		if backlink[t] >= 0 && best > 0 {
			cumulative[t] += best
		} else {
			backlink[t] = -1
		}
	}

	last := te.lastBeat(cumulative)
	if last < 0 {
		return nil
	}

	var beats []int
	for b := last; b >= 0; b = backlink[b] {
		beats = append(beats, b)
	}

	for i, j := 0, len(beats)-1; i < j; i, j = i+1, j-1 {
		beats[i], beats[j] = beats[j], beats[i]
	}

	return beats
}

// lastBeat returns the last local maximum of the cumulative score that is
// at least half the median local maximum
func (te *TempoEstimation) lastBeat(cumulative []float64) int {
	var maxima []float64
	var positions []int

	for t := 1; t < len(cumulative)-1; t++ {
		if cumulative[t] > cumulative[t-1] && cumulative[t] >= cumulative[t+1] {
			maxima = append(maxima, cumulative[t])
			positions = append(positions, t)
		}
	}

	if len(maxima) == 0 {
		return -1
	}

	threshold := 0.5 * common.Median(maxima)
	for i := len(positions) - 1; i >= 0; i-- {
		if maxima[i] >= threshold {
			return positions[i]
		}
	}

	return -1
}

// trimBeats drops weak beats at both ends of the sequence
func (te *TempoEstimation) trimBeats(local []float64, beats []int) []int {
	if len(beats) == 0 {
		return beats
	}

	threshold := 0.5 * common.RMS(local)

	start := 0
	for start < len(beats) && local[beats[start]] < threshold {
		start++
	}
	end := len(beats)
	for end > start && local[beats[end-1]] < threshold {
		end--
	}

	return beats[start:end]
}

// ClassifyTempoCategory classifies tempo into broad categories
func (te *TempoEstimation) ClassifyTempoCategory(tempo float64) string {
	switch {
	case tempo <= 0:
		return "none"
	case tempo < 60:
		return "very_slow"
	case tempo < 90:
		return "slow"
	case tempo < 120:
		return "moderate"
	case tempo < 150:
		return "fast"
	default:
		return "very_fast"
	}
}
