package tonal

import "github.com/RyanBlaney/sonido-clave/algorithms/common"

// CorrelationResult holds one source's Pearson scores against all 24
// candidates, indexed by Candidate.Index
type CorrelationResult struct {
	Source string                `json:"source"`
	Scores [NumCandidates]float64 `json:"scores"`
}

// rotations caches every rotated reference vector; like Sources it is
// read-only after package initialization
var rotations = buildRotations()

func buildRotations() [len(Sources)][NumCandidates][]float64 {
	var out [len(Sources)][NumCandidates][]float64
	for s, src := range Sources {
		for idx := range NumCandidates {
			c := CandidateAt(idx)
			rotated := Rotate(src.Profile(c.Mode), c.Tonic)
			out[s][idx] = rotated[:]
		}
	}
	return out
}

// Correlate scores a 12-value pitch-class profile against every rotation
// of every source. Scores lie in [-1, 1]; a flat profile scores 0.
func Correlate(profile []float64) []CorrelationResult {
	results := make([]CorrelationResult, len(Sources))

	for s, src := range Sources {
		results[s].Source = src.Name
		for idx := range NumCandidates {
			results[s].Scores[idx] = common.Correlation(profile, rotations[s][idx])
		}
	}

	return results
}
