package analysis

import "github.com/RyanBlaney/sonido-clave/algorithms/tonal"

// Transition describes the key change between consecutive tracks
type Transition struct {
	Position int                  `json:"position"` // index of the track the transition leads into
	From     tonal.Candidate      `json:"from"`
	To       tonal.Candidate      `json:"to"`
	Distance int                  `json:"distance"` // circular semitone distance between tonics
	Kind     tonal.TransitionKind `json:"kind"`
}

// KeyTransitions lists the transition between each pair of consecutive
// estimates, in playlist order
func KeyTransitions(estimates []KeyEstimate) []Transition {
	if len(estimates) < 2 {
		return nil
	}

	transitions := make([]Transition, 0, len(estimates)-1)
	for i := 1; i < len(estimates); i++ {
		from, to := estimates[i-1].Key(), estimates[i].Key()
		transitions = append(transitions, Transition{
			Position: i,
			From:     from,
			To:       to,
			Distance: tonal.SemitoneDistance(from.Tonic, to.Tonic),
			Kind:     tonal.ClassifyTransition(from, to),
		})
	}
	return transitions
}
