package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/RyanBlaney/sonido-clave/logging"
)

// Backend names accepted by Open
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// SQLiteFileName is the database file created inside the cache directory
const SQLiteFileName = "results.db"

// Status reports how a GetOrCompute call was served
type Status string

const (
	// StatusHit means the stored result was returned and compute never ran
	StatusHit Status = "hit"
	// StatusMiss means compute ran and the result was stored
	StatusMiss Status = "miss"
	// StatusBypass means compute ran because the caller asked for a refresh
	StatusBypass Status = "bypass"
	// StatusDegraded means the store failed and the result was computed without it
	StatusDegraded Status = "degraded"
	// StatusOff means no cache was consulted
	StatusOff Status = "off"
)

// Open creates the store for backend. dir is ignored by the memory backend.
func Open(backend, dir string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile, "":
		return NewFileStore(dir)
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dir, SQLiteFileName))
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

// Outcome is the value produced by GetOrCompute together with how it was
// obtained. StoreErr is set when Status is StatusDegraded.
type Outcome[T any] struct {
	Value    T
	Status   Status
	StoreErr error
}

// Cache memoizes compute functions by content hash on top of a Store.
//
// Concurrent calls for the same hash share one computation: the first caller
// runs compute while later callers wait for its outcome. Each caller receives
// its own copy of the value, decoded from the shared JSON encoding. Only
// results that compute returned without error are persisted.
type Cache[T any] struct {
	store  Store
	group  singleflight.Group
	logger logging.Logger
	now    func() time.Time
}

// flight is what one singleflight call hands to every waiting caller
type flight[T any] struct {
	outcome Outcome[T]
	payload []byte
}

// New wraps store. A nil logger discards output.
func New[T any](store Store, logger logging.Logger) *Cache[T] {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Cache[T]{
		store:  store,
		logger: logger.WithFields(logging.Fields{"component": "result_cache"}),
		now:    time.Now,
	}
}

// Store returns the underlying store for housekeeping commands
func (c *Cache[T]) Store() Store {
	return c.store
}

// GetOrCompute returns the stored value for hash, or runs compute and stores
// its result. With bypass set, compute always runs and overwrites any entry.
//
// Store failures never fail the call: the computed value comes back with
// StatusDegraded and the failure in Outcome.StoreErr. An error is returned
// only for an invalid hash or when compute itself fails.
func (c *Cache[T]) GetOrCompute(
	ctx context.Context,
	hash string,
	compute func(ctx context.Context) (T, error),
	bypass bool,
) (Outcome[T], error) {
	if err := ValidateHash(hash); err != nil {
		return Outcome[T]{}, err
	}

	key := "get:" + hash
	run := c.lookupOrCompute
	if bypass {
		key = "refresh:" + hash
		run = c.refresh
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		return run(ctx, hash, compute)
	})
	if err != nil {
		return Outcome[T]{}, err
	}

	f := v.(flight[T])
	if shared && f.payload != nil {
		var value T
		if json.Unmarshal(f.payload, &value) == nil {
			f.outcome.Value = value
		}
	}
	return f.outcome, nil
}

func (c *Cache[T]) lookupOrCompute(
	ctx context.Context,
	hash string,
	compute func(ctx context.Context) (T, error),
) (flight[T], error) {
	entry, found, err := c.store.Get(ctx, hash)
	switch {
	case err == nil && found:
		var value T
		decodeErr := json.Unmarshal(entry.Result, &value)
		if decodeErr == nil {
			c.logger.Debug("cache hit", logging.Fields{"hash": hash})
			return flight[T]{
				outcome: Outcome[T]{Value: value, Status: StatusHit},
				payload: entry.Result,
			}, nil
		}
		c.logger.Warn("discarding undecodable cache entry", logging.Fields{
			"hash":  hash,
			"error": decodeErr.Error(),
		})
	case errors.Is(err, ErrCorruptEntry):
		c.logger.Warn("discarding corrupt cache entry", logging.Fields{
			"hash":  hash,
			"error": err.Error(),
		})
	case err != nil:
		c.logger.Warn("cache read failed, computing without cache", logging.Fields{
			"hash":  hash,
			"error": err.Error(),
		})
		value, computeErr := compute(ctx)
		if computeErr != nil {
			return flight[T]{}, computeErr
		}
		payload, _ := json.Marshal(value)
		return flight[T]{
			outcome: Outcome[T]{Value: value, Status: StatusDegraded, StoreErr: err},
			payload: payload,
		}, nil
	}

	return c.computeAndStore(ctx, hash, compute, StatusMiss)
}

func (c *Cache[T]) refresh(
	ctx context.Context,
	hash string,
	compute func(ctx context.Context) (T, error),
) (flight[T], error) {
	return c.computeAndStore(ctx, hash, compute, StatusBypass)
}

// computeAndStore runs compute and persists the result, reporting status on
// success and StatusDegraded when the write fails
func (c *Cache[T]) computeAndStore(
	ctx context.Context,
	hash string,
	compute func(ctx context.Context) (T, error),
	status Status,
) (flight[T], error) {
	value, err := compute(ctx)
	if err != nil {
		return flight[T]{}, err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		err = ioError("encode", hash, err)
		c.logger.Warn("cache encode failed", logging.Fields{
			"hash":  hash,
			"error": err.Error(),
		})
		return flight[T]{outcome: Outcome[T]{Value: value, Status: StatusDegraded, StoreErr: err}}, nil
	}

	if putErr := c.put(ctx, hash, payload); putErr != nil {
		return flight[T]{
			outcome: Outcome[T]{Value: value, Status: StatusDegraded, StoreErr: putErr},
			payload: payload,
		}, nil
	}

	c.logger.Debug("cache entry stored", logging.Fields{"hash": hash, "status": string(status)})
	return flight[T]{outcome: Outcome[T]{Value: value, Status: status}, payload: payload}, nil
}

func (c *Cache[T]) put(ctx context.Context, hash string, payload []byte) error {
	err := c.store.Put(ctx, Entry{
		Hash:          hash,
		Result:        payload,
		CreatedAt:     c.now().UTC(),
		SchemaVersion: SchemaVersion,
	})
	if err != nil {
		c.logger.Warn("cache write failed", logging.Fields{
			"hash":  hash,
			"error": err.Error(),
		})
	}
	return err
}
