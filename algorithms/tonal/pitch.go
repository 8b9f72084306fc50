package tonal

import (
	"fmt"
	"strings"
)

// PitchClass is a chroma index, 0 = C through 11 = B
type PitchClass int

var pitchNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// flat spellings accepted when parsing
var flatNames = map[string]PitchClass{
	"DB": 1, "EB": 3, "GB": 6, "AB": 8, "BB": 10,
}

// String returns the sharp spelling of the pitch class
func (p PitchClass) String() string {
	return pitchNames[p.normalize()]
}

func (p PitchClass) normalize() PitchClass {
	return ((p % 12) + 12) % 12
}

// Transpose returns the pitch class shifted by semitones
func (p PitchClass) Transpose(semitones int) PitchClass {
	return (p + PitchClass(semitones)).normalize()
}

// ParsePitchClass parses a pitch name such as "C", "F#" or "Bb"
func ParsePitchClass(s string) (PitchClass, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range pitchNames {
		if n == name {
			return PitchClass(i), nil
		}
	}
	if pc, ok := flatNames[name]; ok {
		return pc, nil
	}
	return 0, fmt.Errorf("unknown pitch class %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (p PitchClass) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names decode
// to C so that entries written by other versions still load.
func (p *PitchClass) UnmarshalText(text []byte) error {
	pc, err := ParsePitchClass(string(text))
	if err != nil {
		*p = 0
		return nil
	}
	*p = pc
	return nil
}

// Mode represents major or minor mode
type Mode int

const (
	Major Mode = iota
	Minor
)

// String returns "major" or "minor"
func (m Mode) String() string {
	if m == Minor {
		return "minor"
	}
	return "major"
}

// MarshalText implements encoding.TextMarshaler
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Anything other than
// "minor" decodes to major.
func (m *Mode) UnmarshalText(text []byte) error {
	if strings.EqualFold(strings.TrimSpace(string(text)), "minor") {
		*m = Minor
	} else {
		*m = Major
	}
	return nil
}

// NumCandidates is the number of (tonic, mode) keys: 12 major and 12 minor
const NumCandidates = 24

// Candidate is one (tonic, mode) key
type Candidate struct {
	Tonic PitchClass `json:"tonic"`
	Mode  Mode       `json:"mode"`
}

// CandidateAt returns the candidate with the given index. Major keys C..B
// are 0..11 and minor keys C..B are 12..23.
func CandidateAt(index int) Candidate {
	return Candidate{Tonic: PitchClass(index % 12), Mode: Mode(index / 12)}
}

// Index returns the stable candidate index
func (c Candidate) Index() int {
	return int(c.Mode)*12 + int(c.Tonic.normalize())
}

// String returns the key name, for example "A minor"
func (c Candidate) String() string {
	return c.Tonic.String() + " " + c.Mode.String()
}

// Short returns the compact key label, "C" for C major and "Am" for A minor
func (c Candidate) Short() string {
	if c.Mode == Minor {
		return c.Tonic.String() + "m"
	}
	return c.Tonic.String()
}
