package analysis

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/RyanBlaney/sonido-clave/cache"
)

type writeFailingStore struct {
	*cache.MemoryStore
}

func (writeFailingStore) Put(context.Context, cache.Entry) error {
	return errors.New("disk full")
}

// countedInput decodes w lazily and counts how often decoding ran
func countedInput(name string, w Waveform, calls *atomic.Int32) Input {
	return Input{
		Name: name,
		Hash: cache.HashBytes([]byte(name)),
		Decode: func(context.Context) (Waveform, error) {
			calls.Add(1)
			return w, nil
		},
	}
}

func TestAnalyzeCacheIdempotent(t *testing.T) {
	c := cache.New[KeyEstimate](cache.NewMemoryStore(), nil)
	engine := NewEngine(WithCache(c))

	var calls atomic.Int32
	in := countedInput("triad.wav", sineChord(t, 22050, 2, 261.63, 329.63, 392.00), &calls)
	ctx := context.Background()

	first, err := engine.Analyze(ctx, in, true)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := engine.Analyze(ctx, in, true)
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	if first.Cache != cache.StatusMiss || second.Cache != cache.StatusHit {
		t.Fatalf("statuses = %s, %s; want miss, hit", first.Cache, second.Cache)
	}
	if calls.Load() != 1 {
		t.Fatalf("decode ran %d times, want 1", calls.Load())
	}
	if !reflect.DeepEqual(first.Estimate, second.Estimate) {
		t.Fatalf("cached estimate differs:\n%+v\n%+v", first.Estimate, second.Estimate)
	}
}

func TestAnalyzeRefreshRecomputes(t *testing.T) {
	c := cache.New[KeyEstimate](cache.NewMemoryStore(), nil)
	engine := NewEngine(WithCache(c))

	var calls atomic.Int32
	in := countedInput("noise.wav", whiteNoise(t, 22050, 1, 1), &calls)
	ctx := context.Background()

	if _, err := engine.Analyze(ctx, in, true); err != nil {
		t.Fatalf("prime: %v", err)
	}
	in.Refresh = true
	for range 2 {
		a, err := engine.Analyze(ctx, in, true)
		if err != nil {
			t.Fatalf("refresh: %v", err)
		}
		if a.Cache != cache.StatusBypass {
			t.Fatalf("status = %s, want bypass", a.Cache)
		}
	}
	if calls.Load() != 3 {
		t.Fatalf("decode ran %d times, want 3", calls.Load())
	}
}

func TestAnalyzeWithoutCache(t *testing.T) {
	c := cache.New[KeyEstimate](cache.NewMemoryStore(), nil)
	engine := NewEngine(WithCache(c))

	var calls atomic.Int32
	in := countedInput("noise.wav", whiteNoise(t, 22050, 1, 1), &calls)

	for range 2 {
		a, err := engine.Analyze(context.Background(), in, false)
		if err != nil {
			t.Fatalf("analyze: %v", err)
		}
		if a.Cache != cache.StatusOff {
			t.Fatalf("status = %s, want off", a.Cache)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("decode ran %d times, want 2", calls.Load())
	}

	stats, err := c.Store().Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Entries != 0 {
		t.Fatalf("entries = %d, want 0", stats.Entries)
	}
}

func TestAnalyzeCacheDegraded(t *testing.T) {
	c := cache.New[KeyEstimate](writeFailingStore{cache.NewMemoryStore()}, nil)
	engine := NewEngine(WithCache(c))

	w := sineChord(t, 22050, 1, 261.63, 329.63, 392.00)
	want, err := engine.AnalyzeWaveform(w)
	if err != nil {
		t.Fatalf("reference: %v", err)
	}

	a, err := engine.Analyze(context.Background(), Input{Name: "x.wav", Hash: cache.HashBytes([]byte("x")), Waveform: &w}, true)
	if err != nil {
		t.Fatalf("analyze should degrade, not fail: %v", err)
	}
	if a.Cache != cache.StatusDegraded || a.CacheErr == nil {
		t.Fatalf("status = %s, err = %v; want degraded with error", a.Cache, a.CacheErr)
	}
	if !reflect.DeepEqual(a.Estimate, want) {
		t.Fatalf("degraded estimate differs:\n%+v\n%+v", a.Estimate, want)
	}
}

func TestAnalyzeUnavailableCacheIsDegraded(t *testing.T) {
	openErr := errors.New("cache directory is read-only")
	engine := NewEngine(WithUnavailableCache(openErr))

	w := silence(22050, 1)
	in := Input{Name: "x.wav", Hash: cache.HashBytes([]byte("x")), Waveform: &w}

	a, err := engine.Analyze(context.Background(), in, true)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if a.Cache != cache.StatusDegraded || !errors.Is(a.CacheErr, openErr) {
		t.Fatalf("status = %s, err = %v; want degraded with the open error", a.Cache, a.CacheErr)
	}

	a, err = engine.Analyze(context.Background(), in, false)
	if err != nil {
		t.Fatalf("analyze without cache: %v", err)
	}
	if a.Cache != cache.StatusOff || a.CacheErr != nil {
		t.Fatalf("status = %s, err = %v; want off when the cache is not requested", a.Cache, a.CacheErr)
	}
}

func TestAnalyzeInvalidHash(t *testing.T) {
	c := cache.New[KeyEstimate](cache.NewMemoryStore(), nil)
	w := silence(22050, 1)

	_, err := NewEngine(WithCache(c)).Analyze(context.Background(), Input{Hash: "nope", Waveform: &w}, true)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestAnalyzeBatchOrder(t *testing.T) {
	engine := NewEngine(WithWorkers(4))
	waves := []Waveform{
		sineChord(t, 22050, 1, 261.63, 329.63, 392.00),
		sineChord(t, 22050, 1, 392.00, 493.88, 587.33),
		silence(22050, 1),
		whiteNoise(t, 22050, 1, 9),
		sineChord(t, 22050, 1, 220.00, 261.63, 329.63),
	}

	inputs := make([]Input, len(waves))
	for i := range waves {
		inputs[i] = Input{Waveform: &waves[i]}
	}

	results, err := engine.AnalyzeBatch(context.Background(), inputs, false)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(results) != len(inputs) {
		t.Fatalf("results = %d, want %d", len(results), len(inputs))
	}

	for i, r := range results {
		if r.Index != i || r.Err != nil {
			t.Fatalf("result %d: index %d, err %v", i, r.Index, r.Err)
		}
		want, err := engine.AnalyzeWaveform(waves[i])
		if err != nil {
			t.Fatalf("reference %d: %v", i, err)
		}
		if !reflect.DeepEqual(r.Analysis.Estimate, want) {
			t.Fatalf("result %d out of order:\n%+v\n%+v", i, r.Analysis.Estimate, want)
		}
	}
}

func TestAnalyzeBatchReportsFailuresPerInput(t *testing.T) {
	good := silence(22050, 1)
	inputs := []Input{
		{Name: "good.wav", Waveform: &good},
		{Name: "bad.wav", Waveform: &Waveform{}},
	}

	results, err := NewEngine(WithWorkers(2)).AnalyzeBatch(context.Background(), inputs, false)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if results[0].Err != nil {
		t.Fatalf("good input failed: %v", results[0].Err)
	}
	if !errors.Is(results[1].Err, ErrInvalidInput) {
		t.Fatalf("bad input err = %v", results[1].Err)
	}
}

func TestAnalyzeBatchCancelSkipsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := silence(22050, 1)
	inputs := []Input{
		{
			Name: "first.wav",
			Decode: func(context.Context) (Waveform, error) {
				cancel()
				return w, nil
			},
		},
		{Name: "second.wav", Waveform: &w},
		{Name: "third.wav", Waveform: &w},
	}

	results, err := NewEngine(WithWorkers(1)).AnalyzeBatch(ctx, inputs, false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("batch err = %v, want context.Canceled", err)
	}
	if results[0].Err != nil {
		t.Fatalf("started input should finish, got %v", results[0].Err)
	}
	for _, r := range results[1:] {
		if !errors.Is(r.Err, ErrSkipped) {
			t.Fatalf("input %d err = %v, want ErrSkipped", r.Index, r.Err)
		}
	}
}

func TestAnalyzeBatchSharedCache(t *testing.T) {
	c := cache.New[KeyEstimate](cache.NewMemoryStore(), nil)
	engine := NewEngine(WithCache(c), WithWorkers(8))

	var calls atomic.Int32
	in := countedInput("same.wav", sineChord(t, 22050, 1, 261.63), &calls)
	inputs := make([]Input, 8)
	for i := range inputs {
		inputs[i] = in
	}

	results, err := engine.AnalyzeBatch(context.Background(), inputs, true)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("input %d: %v", r.Index, r.Err)
		}
		if !reflect.DeepEqual(r.Analysis.Estimate, results[0].Analysis.Estimate) {
			t.Fatalf("input %d estimate differs", r.Index)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("decode ran %d times, want 1", calls.Load())
	}
}
