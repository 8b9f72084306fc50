package harmonic

import (
	"math"
	"testing"
)

func energy(x []float64, from, to int) float64 {
	sum := 0.0
	for i := from; i < to; i++ {
		sum += x[i] * x[i]
	}
	return sum
}

func TestHPSSSineIsHarmonic(t *testing.T) {
	const sampleRate = 22050
	signal := make([]float64, sampleRate*2)
	for i := range signal {
		signal[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/sampleRate)
	}

	sep, err := NewHPSS().Separate(signal, sampleRate)
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}

	h := energy(sep.Harmonic, 4096, len(signal)-4096)
	p := energy(sep.Percussive, 4096, len(signal)-4096)
	if h < 10*p {
		t.Fatalf("sustained tone should be mostly harmonic: harmonic=%v percussive=%v", h, p)
	}
}

func TestHPSSClicksArePercussive(t *testing.T) {
	const sampleRate = 22050
	signal := make([]float64, sampleRate*3)
	for i := 0; i < len(signal); i += sampleRate / 2 {
		signal[i] = 1
	}

	sep, err := NewHPSS().Separate(signal, sampleRate)
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}

	h := energy(sep.Harmonic, 0, len(signal))
	p := energy(sep.Percussive, 0, len(signal))
	if p < h {
		t.Fatalf("click train should be mostly percussive: harmonic=%v percussive=%v", h, p)
	}
}

func TestHPSSComponentsSumToSignal(t *testing.T) {
	const sampleRate = 22050
	signal := make([]float64, sampleRate)
	for i := range signal {
		signal[i] = math.Sin(2*math.Pi*220*float64(i)/sampleRate) + 0.3*math.Sin(float64(i)*1.3)
	}

	sep, err := NewHPSS().Separate(signal, sampleRate)
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}

	for i := 4096; i < len(signal)-4096; i++ {
		if d := math.Abs(sep.Harmonic[i] + sep.Percussive[i] - signal[i]); d > 1e-6 {
			t.Fatalf("sample %d: components differ from signal by %v", i, d)
		}
	}
}

func TestHPSSTooShort(t *testing.T) {
	if _, err := NewHPSS().Separate(make([]float64, 100), 22050); err == nil {
		t.Fatal("expected error for short signal")
	}
}
