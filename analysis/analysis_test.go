package analysis

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-clave/algorithms/tonal"
)

func sineChord(t *testing.T, sampleRate int, seconds float64, freqs ...float64) Waveform {
	t.Helper()
	n := int(float64(sampleRate) * seconds)
	samples := make([]float64, n)
	for i := range samples {
		for _, f := range freqs {
			samples[i] += 0.3 * math.Sin(2*math.Pi*f*float64(i)/float64(sampleRate))
		}
	}
	return Waveform{Samples: samples, SampleRate: sampleRate, Channels: 1}
}

func whiteNoise(t *testing.T, sampleRate int, seconds float64, seed int64) Waveform {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	samples := make([]float64, int(float64(sampleRate)*seconds))
	for i := range samples {
		samples[i] = rng.Float64()*2 - 1
	}
	return Waveform{Samples: samples, SampleRate: sampleRate, Channels: 1}
}

func silence(sampleRate int, seconds float64) Waveform {
	return Waveform{
		Samples:    make([]float64, int(float64(sampleRate)*seconds)),
		SampleRate: sampleRate,
		Channels:   1,
	}
}

func checkEstimate(t *testing.T, est KeyEstimate) {
	t.Helper()
	if est.Confidence < 0 || est.Confidence > 1 {
		t.Fatalf("confidence %v out of [0, 1]", est.Confidence)
	}
	prev := math.Inf(1)
	for i, alt := range est.Alternatives {
		if alt.Key() == est.Key() {
			t.Fatalf("alternative %d repeats the detected key %v", i, est.Key())
		}
		if alt.Confidence < 0 || alt.Confidence > 1 {
			t.Fatalf("alternative %d confidence %v out of [0, 1]", i, alt.Confidence)
		}
		if alt.Confidence >= prev {
			t.Fatalf("alternative %d confidence %v not below %v", i, alt.Confidence, prev)
		}
		prev = alt.Confidence
	}
	for name, v := range map[string]float64{
		"tempo":      est.TempoBPM,
		"energy":     est.Energy,
		"brightness": est.Brightness,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("%s = %v", name, v)
		}
	}
}

func TestCMajorTriad(t *testing.T) {
	engine := NewEngine()
	est, err := engine.AnalyzeWaveform(sineChord(t, 44100, 5, 261.63, 329.63, 392.00))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	checkEstimate(t, est)

	if est.Key() != (tonal.Candidate{Tonic: 0, Mode: tonal.Major}) {
		t.Fatalf("key = %s, want C major", est.Name())
	}
	if est.Confidence <= 0.6 {
		t.Fatalf("confidence = %v, want > 0.6", est.Confidence)
	}
	if est.TempoBPM > 1 {
		t.Fatalf("tempo = %v, want 0 for a sustained chord", est.TempoBPM)
	}
	if est.Energy <= 0 || est.Brightness <= 0 {
		t.Fatalf("energy = %v, brightness = %v, want positive", est.Energy, est.Brightness)
	}
}

func TestWhiteNoiseLowConfidence(t *testing.T) {
	est, err := NewEngine().AnalyzeWaveform(whiteNoise(t, 44100, 5, 42))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	checkEstimate(t, est)

	if est.Confidence >= 1.0/3 {
		t.Fatalf("noise confidence = %v, want < 1/3", est.Confidence)
	}
}

func TestSilence(t *testing.T) {
	est, err := NewEngine().AnalyzeWaveform(silence(22050, 5))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	checkEstimate(t, est)

	if est.TempoBPM != 0 || est.Energy != 0 || est.Brightness != 0 {
		t.Fatalf("silence scalars = %v/%v/%v, want zeros", est.TempoBPM, est.Energy, est.Brightness)
	}
	if est.Confidence >= 0.2 {
		t.Fatalf("silence confidence = %v, want < 0.2", est.Confidence)
	}
}

func TestDeterminism(t *testing.T) {
	engine := NewEngine()
	w := whiteNoise(t, 22050, 3, 7)

	first, err := engine.AnalyzeWaveform(w)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := engine.AnalyzeWaveform(w)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ:\n%+v\n%+v", first, second)
	}
}

func TestStereoMatchesMono(t *testing.T) {
	engine := NewEngine()
	mono := sineChord(t, 22050, 2, 220.00, 261.63, 329.63)

	stereo := Waveform{SampleRate: mono.SampleRate, Channels: 2}
	for _, v := range mono.Samples {
		stereo.Samples = append(stereo.Samples, v, v)
	}

	a, err := engine.AnalyzeWaveform(mono)
	if err != nil {
		t.Fatalf("mono: %v", err)
	}
	b, err := engine.AnalyzeWaveform(stereo)
	if err != nil {
		t.Fatalf("stereo: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("stereo result differs from mono:\n%+v\n%+v", a, b)
	}
}

func TestInputNotModified(t *testing.T) {
	w := whiteNoise(t, 44100, 1, 3)
	orig := append([]float64(nil), w.Samples...)

	if _, err := NewEngine().AnalyzeWaveform(w); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !reflect.DeepEqual(orig, w.Samples) {
		t.Fatal("analysis modified the caller's samples")
	}
}

func TestInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		w    Waveform
	}{
		{"empty", Waveform{SampleRate: 22050}},
		{"zero rate", Waveform{Samples: []float64{0, 1}}},
		{"negative rate", Waveform{Samples: []float64{0, 1}, SampleRate: -1}},
		{"channel mismatch", Waveform{Samples: []float64{0, 1, 2}, SampleRate: 22050, Channels: 2}},
	}

	engine := NewEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.AnalyzeWaveform(tt.w)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestAnalyzeNamesInvalidInput(t *testing.T) {
	_, err := NewEngine().Analyze(context.Background(), Input{Name: "empty.wav", Waveform: &Waveform{}}, false)

	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("err = %v, want *InputError", err)
	}
	if inputErr.Name != "empty.wav" {
		t.Fatalf("name = %q", inputErr.Name)
	}

	_, err = NewEngine().Analyze(context.Background(), Input{Name: "nothing"}, false)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("input without audio: err = %v", err)
	}
}

func TestExtractorDegenerate(t *testing.T) {
	ex := NewExtractor(DefaultExtractorConfig(), nil)

	short := sineChord(t, 22050, 0.1, 440)
	f, err := ex.Extract(short)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !f.Degenerate {
		t.Fatal("clip shorter than one analysis window should be degenerate")
	}
	if f.CQT.Frames() != 1 || f.STFT.Frames() != 1 || f.CENS.Frames() != 1 {
		t.Fatalf("degenerate frames = %d/%d/%d, want 1 each", f.CQT.Frames(), f.STFT.Frames(), f.CENS.Frames())
	}

	tiny := silence(22050, 2)
	tiny.Samples[100] = 1e-12
	if f, _ := ex.Extract(tiny); !f.Degenerate {
		t.Fatal("near-silent clip should be degenerate")
	}
}

func TestExtractorDurationCap(t *testing.T) {
	cfg := DefaultExtractorConfig()
	cfg.MaxDuration = 0
	uncapped := NewExtractor(cfg, nil)
	cfg.MaxDuration = time.Second
	capped := NewExtractor(cfg, nil)

	w := sineChord(t, 22050, 3, 261.63)
	a, err := uncapped.Extract(w)
	if err != nil {
		t.Fatalf("uncapped: %v", err)
	}
	b, err := capped.Extract(w)
	if err != nil {
		t.Fatalf("capped: %v", err)
	}
	if b.STFT.Frames() >= a.STFT.Frames() {
		t.Fatalf("capped frames %d, uncapped %d", b.STFT.Frames(), a.STFT.Frames())
	}
}

func TestKeyEstimateLabels(t *testing.T) {
	tests := []struct {
		est      KeyEstimate
		name     string
		relative string
		scale    string
	}{
		{KeyEstimate{Tonic: 0, Mode: tonal.Major}, "C major", "A minor", "C/A"},
		{KeyEstimate{Tonic: 9, Mode: tonal.Minor}, "A minor", "C major", "Am/C"},
		{KeyEstimate{Tonic: 7, Mode: tonal.Major}, "G major", "E minor", "G/E"},
		{KeyEstimate{Tonic: 6, Mode: tonal.Minor}, "F# minor", "A major", "F#m/A"},
	}

	for _, tt := range tests {
		if got := tt.est.Name(); got != tt.name {
			t.Errorf("Name() = %q, want %q", got, tt.name)
		}
		if got := tt.est.Relative().String(); got != tt.relative {
			t.Errorf("%s: Relative() = %q, want %q", tt.name, got, tt.relative)
		}
		if got := tt.est.Scale(); got != tt.scale {
			t.Errorf("%s: Scale() = %q, want %q", tt.name, got, tt.scale)
		}
	}
}

func TestWaveformDuration(t *testing.T) {
	w := Waveform{Samples: make([]float64, 44100), SampleRate: 22050, Channels: 2}
	if got := w.Duration().Seconds(); got != 1 {
		t.Fatalf("duration = %vs, want 1s", got)
	}
}
