package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

type keyResult struct {
	Key        string  `json:"key"`
	Confidence float64 `json:"confidence"`
}

// failingStore fails every read and write with an i/o error
type failingStore struct {
	*MemoryStore
}

func (f *failingStore) Get(_ context.Context, hash string) (Entry, bool, error) {
	return Entry{}, false, ioError("read", hash, errors.New("disk unplugged"))
}

func (f *failingStore) Put(_ context.Context, e Entry) error {
	return ioError("write", e.Hash, errors.New("disk unplugged"))
}

// writeFailingStore reads normally but refuses writes
type writeFailingStore struct {
	*MemoryStore
}

func (w writeFailingStore) Put(_ context.Context, e Entry) error {
	return ioError("write", e.Hash, errors.New("read-only filesystem"))
}

func countingCompute(calls *atomic.Int32, key string) func(context.Context) (keyResult, error) {
	return func(context.Context) (keyResult, error) {
		calls.Add(1)
		return keyResult{Key: key, Confidence: 0.8}, nil
	}
}

func TestGetOrComputeIdempotent(t *testing.T) {
	ctx := context.Background()
	c := New[keyResult](NewMemoryStore(), nil)
	hash := testHash("track-a")

	var calls atomic.Int32
	first, err := c.GetOrCompute(ctx, hash, countingCompute(&calls, "C major"), false)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := c.GetOrCompute(ctx, hash, countingCompute(&calls, "should not run"), false)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if calls.Load() != 1 {
		t.Fatalf("compute ran %d times, want 1", calls.Load())
	}
	if first.Status != StatusMiss || second.Status != StatusHit {
		t.Fatalf("statuses = %s, %s", first.Status, second.Status)
	}
	if first.Value != second.Value {
		t.Fatalf("values differ: %+v vs %+v", first.Value, second.Value)
	}
}

func TestGetOrComputeBypass(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := New[keyResult](store, nil)
	hash := testHash("track-b")

	var calls atomic.Int32
	if _, err := c.GetOrCompute(ctx, hash, countingCompute(&calls, "G major"), false); err != nil {
		t.Fatal(err)
	}

	out, err := c.GetOrCompute(ctx, hash, countingCompute(&calls, "E minor"), true)
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 || out.Status != StatusBypass || out.Value.Key != "E minor" {
		t.Fatalf("bypass outcome = %+v after %d calls", out, calls.Load())
	}

	again, err := c.GetOrCompute(ctx, hash, countingCompute(&calls, "unused"), false)
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != StatusHit || again.Value.Key != "E minor" {
		t.Fatalf("refreshed entry not stored: %+v", again)
	}
}

func TestGetOrComputeConcurrentSameHash(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c := New[keyResult](store, nil)
	hash := testHash("shared")

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (keyResult, error) {
		calls.Add(1)
		<-release
		return keyResult{Key: "F# minor", Confidence: 0.4}, nil
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make([]Outcome[keyResult], workers)
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCompute(ctx, hash, compute, false)
		}()
	}
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("compute ran %d times, want 1", calls.Load())
	}
	for i := range workers {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if results[i].Value.Key != "F# minor" {
			t.Fatalf("worker %d got %+v", i, results[i])
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil || stats.Entries != 1 {
		t.Fatalf("stats = %+v, %v", stats, err)
	}
}

func TestGetOrComputeSharedCallersGetOwnCopy(t *testing.T) {
	type ranked struct {
		Keys []string `json:"keys"`
	}

	c := New[ranked](NewMemoryStore(), nil)
	hash := testHash("ranked")

	release := make(chan struct{})
	compute := func(context.Context) (ranked, error) {
		<-release
		return ranked{Keys: []string{"C major", "A minor"}}, nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]Outcome[ranked], workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if results[i], err = c.GetOrCompute(context.Background(), hash, compute, false); err != nil {
				t.Errorf("worker %d: %v", i, err)
			}
		}()
	}
	close(release)
	wg.Wait()

	results[0].Value.Keys[0] = "changed"
	for i := 1; i < workers; i++ {
		if got := results[i].Value.Keys; len(got) != 2 || got[0] != "C major" {
			t.Fatalf("worker %d sees %v after another caller mutated its result", i, got)
		}
	}
}

func TestGetOrComputeDegradedRead(t *testing.T) {
	c := New[keyResult](&failingStore{MemoryStore: NewMemoryStore()}, nil)

	var calls atomic.Int32
	for range 2 {
		out, err := c.GetOrCompute(context.Background(), testHash("x"), countingCompute(&calls, "D major"), false)
		if err != nil {
			t.Fatalf("store failure must not fail the call: %v", err)
		}
		if out.Status != StatusDegraded || !errors.Is(out.StoreErr, ErrStoreIO) {
			t.Fatalf("outcome = %+v", out)
		}
		if out.Value.Key != "D major" {
			t.Fatalf("value = %+v", out.Value)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("degraded cache should recompute every time, ran %d", calls.Load())
	}
}

func TestGetOrComputeDegradedWrite(t *testing.T) {
	c := New[keyResult](writeFailingStore{NewMemoryStore()}, nil)

	out, err := c.GetOrCompute(context.Background(), testHash("y"), countingCompute(new(atomic.Int32), "B minor"), false)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusDegraded || out.Value.Key != "B minor" {
		t.Fatalf("outcome = %+v", out)
	}
	var ioErr *IOError
	if !errors.As(out.StoreErr, &ioErr) || ioErr.Op != "write" {
		t.Fatalf("StoreErr = %v", out.StoreErr)
	}
}

func TestGetOrComputeOverwritesCorruptEntry(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	hash := testHash("corrupt")

	if err := os.MkdirAll(filepath.Join(dir, hash[:2]), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, hash[:2], hash+".json"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New[keyResult](store, nil)
	var calls atomic.Int32
	out, err := c.GetOrCompute(ctx, hash, countingCompute(&calls, "A major"), false)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusMiss || calls.Load() != 1 {
		t.Fatalf("outcome = %+v, calls %d", out, calls.Load())
	}

	hit, err := c.GetOrCompute(ctx, hash, countingCompute(&calls, "unused"), false)
	if err != nil || hit.Status != StatusHit || hit.Value.Key != "A major" {
		t.Fatalf("overwritten entry = %+v, %v", hit, err)
	}
}

func TestGetOrComputeComputeErrorNotStored(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c := New[keyResult](store, nil)
	hash := testHash("fails")

	boom := errors.New("decode failed")
	_, err := c.GetOrCompute(ctx, hash, func(context.Context) (keyResult, error) {
		return keyResult{}, boom
	}, false)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	if _, found, _ := store.Get(ctx, hash); found {
		t.Fatal("failed computation must not be stored")
	}
}

func TestGetOrComputeInvalidHash(t *testing.T) {
	c := New[keyResult](NewMemoryStore(), nil)
	var calls atomic.Int32
	_, err := c.GetOrCompute(context.Background(), "not-a-hash", countingCompute(&calls, "C major"), false)
	if !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 0 {
		t.Fatal("compute should not run for an invalid hash")
	}
}

func TestGetOrComputeSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := Open(BackendSQLite, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	c := New[keyResult](store, nil)
	hash := testHash("sqlite")
	var calls atomic.Int32

	for range 3 {
		out, err := c.GetOrCompute(ctx, hash, countingCompute(&calls, "Eb major"), false)
		if err != nil {
			t.Fatal(err)
		}
		if out.Value.Key != "Eb major" || out.Value.Confidence != 0.8 {
			t.Fatalf("value = %+v", out.Value)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("compute ran %d times", calls.Load())
	}
}
