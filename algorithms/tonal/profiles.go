package tonal

// Source is a published key-profile set with its merge weight
type Source struct {
	Name   string
	Weight float64
	Major  [12]float64 // Expected salience per scale degree, tonic first
	Minor  [12]float64
}

// Sources is the fixed table of key profiles. It is never written after
// initialization and is shared by all analyses.
var Sources = [...]Source{
	{
		// Krumhansl & Kessler (1982) probe-tone ratings
		Name:   "krumhansl",
		Weight: 0.35,
		Major:  [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88},
		Minor:  [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17},
	},
	{
		// Temperley (1999), revised from the Kostka-Payne corpus
		Name:   "temperley",
		Weight: 0.20,
		Major:  [12]float64{5.0, 2.0, 3.5, 2.0, 4.5, 4.0, 2.0, 4.5, 2.0, 3.5, 1.5, 4.0},
		Minor:  [12]float64{5.0, 2.0, 3.5, 4.5, 2.0, 4.0, 2.0, 4.5, 3.5, 2.0, 1.5, 4.0},
	},
	{
		// Albrecht & Shanahan (2013), tuned for pop and rock repertoire
		Name:   "albrecht",
		Weight: 0.45,
		Major:  [12]float64{0.238, 0.006, 0.111, 0.006, 0.137, 0.094, 0.016, 0.214, 0.009, 0.080, 0.008, 0.081},
		Minor:  [12]float64{0.220, 0.006, 0.104, 0.123, 0.019, 0.103, 0.012, 0.214, 0.062, 0.022, 0.061, 0.052},
	},
}

// Profile returns the reference vector for mode
func (s Source) Profile(mode Mode) [12]float64 {
	if mode == Minor {
		return s.Minor
	}
	return s.Major
}

// Rotate shifts a C-based profile so that its tonic lands on pitch class
// tonic: rotated[i] = profile[(i - tonic + 12) % 12]
func Rotate(profile [12]float64, tonic PitchClass) [12]float64 {
	var rotated [12]float64
	t := int(tonic.normalize())
	for i := range 12 {
		rotated[i] = profile[(i-t+12)%12]
	}
	return rotated
}

// SourceWeightSum returns the total merge weight of all sources
func SourceWeightSum() float64 {
	sum := 0.0
	for _, s := range Sources {
		sum += s.Weight
	}
	return sum
}
