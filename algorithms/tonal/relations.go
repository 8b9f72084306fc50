package tonal

// RelativeKey returns the relative major/minor key
func RelativeKey(c Candidate) Candidate {
	if c.Mode == Major {
		// Relative minor is 3 semitones down
		return Candidate{Tonic: c.Tonic.Transpose(-3), Mode: Minor}
	}
	// Relative major is 3 semitones up
	return Candidate{Tonic: c.Tonic.Transpose(3), Mode: Major}
}

// ParallelKey returns the parallel major/minor key
func ParallelKey(c Candidate) Candidate {
	if c.Mode == Major {
		return Candidate{Tonic: c.Tonic, Mode: Minor}
	}
	return Candidate{Tonic: c.Tonic, Mode: Major}
}

// DominantKey returns the dominant key (5th above)
func DominantKey(c Candidate) Candidate {
	return Candidate{Tonic: c.Tonic.Transpose(7), Mode: c.Mode}
}

// SubdominantKey returns the subdominant key (5th below)
func SubdominantKey(c Candidate) Candidate {
	return Candidate{Tonic: c.Tonic.Transpose(-7), Mode: c.Mode}
}

// IsCompatible checks if two keys are the same or closely related
func IsCompatible(a, b Candidate) bool {
	if a == b {
		return true
	}

	for _, related := range []Candidate{RelativeKey(a), ParallelKey(a), DominantKey(a), SubdominantKey(a)} {
		if b == related {
			return true
		}
	}

	return false
}

// TransitionKind names how one key moves to another
type TransitionKind string

const (
	TransitionSame        TransitionKind = "same_key"
	TransitionParallel    TransitionKind = "parallel"
	TransitionRelative    TransitionKind = "relative"
	TransitionDominant    TransitionKind = "dominant"
	TransitionSubdominant TransitionKind = "subdominant"
	TransitionDistant     TransitionKind = "distant"
)

// ClassifyTransition names the relationship between two keys
func ClassifyTransition(from, to Candidate) TransitionKind {
	switch {
	case from == to:
		return TransitionSame
	case to == ParallelKey(from):
		return TransitionParallel
	case to == RelativeKey(from):
		return TransitionRelative
	case to == DominantKey(from):
		return TransitionDominant
	case to == SubdominantKey(from):
		return TransitionSubdominant
	default:
		return TransitionDistant
	}
}

// SemitoneDistance is the circular distance between two tonics, 0..6
func SemitoneDistance(a, b PitchClass) int {
	d := int(a.normalize()) - int(b.normalize())
	if d < 0 {
		d = -d
	}
	return min(d, 12-d)
}
