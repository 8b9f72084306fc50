package tonal

import (
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-clave/algorithms/common"
)

const (
	// TieEpsilon is the merged-score distance under which two candidates
	// count as tied
	TieEpsilon = 1e-9

	// Temperature of the softmax over merged scores
	Temperature = 0.075

	// ClarityScale sets how fast profile contrast turns into clarity
	ClarityScale = 0.3

	// DefaultAlternatives is the number of runner-up keys reported
	DefaultAlternatives = 3
)

// Alternative is a runner-up key with its own confidence
type Alternative struct {
	Tonic      PitchClass `json:"tonic"`
	Mode       Mode       `json:"mode"`
	Confidence float64    `json:"confidence"`
}

// Key returns the alternative as a Candidate
func (a Alternative) Key() Candidate {
	return Candidate{Tonic: a.Tonic, Mode: a.Mode}
}

// Decision is the outcome of merging the source scores
type Decision struct {
	Key          Candidate              `json:"key"`
	Confidence   float64                `json:"confidence"`
	Alternatives []Alternative          `json:"alternatives"`
	Merged       [NumCandidates]float64 `json:"merged"`
	Strength     float64                `json:"strength"` // Merged score of the winner, clamped to [0, 1]
	Clarity      float64                `json:"clarity"`  // Contrast of the pitch-class profile
}

// KeyDecider merges per-source correlations into a key and confidence
type KeyDecider struct {
	alternatives int
}

// NewKeyDecider creates a decider that reports n alternatives (1..23)
func NewKeyDecider(n int) *KeyDecider {
	if n < 1 {
		n = DefaultAlternatives
	}
	return &KeyDecider{alternatives: min(n, NumCandidates-1)}
}

// ranked is a candidate with its tie-break statistics
type ranked struct {
	index    int
	merged   float64
	variance float64
}

// Decide picks the key for a pitch-class profile given its correlation
// results (one per entry of Sources, in order).
//
// Confidence for candidate c is
//
//	softmax(merged/T)_c * sqrt(clamp(merged_top, 0, 1)) * clarity
//
// where clarity = 1 - exp(-cv/ClarityScale) and cv is the coefficient of
// variation of the profile. The softmax term drops when many candidates
// score close to the top; the clarity term drives flat profiles to 0.
func (kd *KeyDecider) Decide(profile []float64, results []CorrelationResult) Decision {
	var d Decision

	candidates := make([]ranked, NumCandidates)
	sourceScores := make([]float64, len(results))

	for idx := range NumCandidates {
		merged := 0.0
		for s, r := range results {
			merged += Sources[s].Weight * r.Scores[idx]
			sourceScores[s] = r.Scores[idx]
		}
		merged = common.Finite(merged)
		d.Merged[idx] = merged
		candidates[idx] = ranked{
			index:    idx,
			merged:   merged,
			variance: common.PopulationVariance(sourceScores),
		}
	}

	winner := pickWinner(candidates)
	d.Key = CandidateAt(winner.index)

	probs := softmax(d.Merged[:], Temperature)
	d.Strength = common.Clamp(winner.merged, 0, 1)
	d.Clarity = Clarity(profile)
	gate := math.Sqrt(d.Strength) * d.Clarity

	confidence := func(idx int) float64 {
		return common.Clamp(common.Finite(probs[idx]*gate), 0, 1)
	}
	d.Confidence = confidence(winner.index)

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.merged != b.merged {
			return a.merged > b.merged
		}
		if a.variance != b.variance {
			return a.variance < b.variance
		}
		return a.index < b.index
	})

	d.Alternatives = make([]Alternative, 0, kd.alternatives)
	last := math.Inf(1)
	for _, c := range candidates {
		if len(d.Alternatives) == kd.alternatives {
			break
		}
		if c.index == winner.index {
			continue
		}
		conf := confidence(c.index)
		if conf >= last {
			continue
		}
		key := CandidateAt(c.index)
		d.Alternatives = append(d.Alternatives, Alternative{Tonic: key.Tonic, Mode: key.Mode, Confidence: conf})
		last = conf
	}

	return d
}

// pickWinner returns the top merged score; candidates within TieEpsilon of
// it are resolved by the smallest cross-source variance, then the lowest
// index
func pickWinner(candidates []ranked) ranked {
	top := math.Inf(-1)
	for _, c := range candidates {
		top = math.Max(top, c.merged)
	}

	best := ranked{index: -1}
	for _, c := range candidates {
		if top-c.merged > TieEpsilon {
			continue
		}
		if best.index < 0 || c.variance < best.variance {
			best = c
		}
	}

	return best
}

// Clarity measures how far a profile is from flat: 0 for a uniform or
// empty profile, approaching 1 for a strongly peaked one
func Clarity(profile []float64) float64 {
	if len(profile) == 0 {
		return 0
	}

	mean, variance := common.Mean(profile), common.PopulationVariance(profile)
	if mean <= 1e-12 {
		return 0
	}

	cv := math.Sqrt(variance) / mean
	return common.Clamp(common.Finite(1-math.Exp(-cv/ClarityScale)), 0, 1)
}

// softmax rescales scores into probabilities at the given temperature
func softmax(scores []float64, temperature float64) []float64 {
	peak := math.Inf(-1)
	for _, s := range scores {
		peak = math.Max(peak, s)
	}

	probs := make([]float64, len(scores))
	total := 0.0
	for i, s := range scores {
		probs[i] = math.Exp((s - peak) / temperature)
		total += probs[i]
	}

	for i := range probs {
		probs[i] /= total
	}

	return probs
}
