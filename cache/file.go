package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

// ErrCorruptEntry indicates a stored entry that could not be decoded
var ErrCorruptEntry = errors.New("corrupt cache entry")

// FileStore keeps one JSON document per hash under dir/<hh>/<hash>.json.
//
// Writers go through a temp file and rename, so readers never observe a
// partial document. Writers, Delete and Clear also hold an advisory lock on
// dir/.lock so that separate processes sharing the directory stay
// consistent.
type FileStore struct {
	dir  string
	mu   sync.Mutex // flock does not exclude goroutines sharing one handle
	lock *flock.Flock
}

// NewFileStore creates the cache directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ioError("open", "", errors.New("cache directory is empty"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ioError("open", "", fmt.Errorf("create cache directory: %w", err))
	}

	return &FileStore{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, ".lock")),
	}, nil
}

// Dir returns the cache root
func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) path(hash string) string {
	return filepath.Join(f.dir, hash[:2], hash+".json")
}

func (f *FileStore) Get(_ context.Context, hash string) (Entry, bool, error) {
	if err := ValidateHash(hash); err != nil {
		return Entry{}, false, err
	}

	data, err := os.ReadFile(f.path(hash))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, false, nil
		}
		return Entry{}, false, ioError("read", hash, err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, hash, err)
	}
	e.Hash = hash

	return e, true, nil
}

func (f *FileStore) Put(_ context.Context, e Entry) error {
	if err := ValidateHash(e.Hash); err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	return f.withLock("write", e.Hash, func() error {
		target := f.path(e.Hash)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create shard directory: %w", err)
		}

		tmp, err := os.CreateTemp(filepath.Dir(target), e.Hash+".*.tmp")
		if err != nil {
			return fmt.Errorf("create temp file: %w", err)
		}
		tmpPath := tmp.Name()

		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("write temp file: %w", err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("close temp file: %w", err)
		}

		if err := os.Rename(tmpPath, target); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("rename temp file: %w", err)
		}
		return nil
	})
}

func (f *FileStore) Delete(_ context.Context, hash string) error {
	if err := ValidateHash(hash); err != nil {
		return err
	}

	return f.withLock("delete", hash, func() error {
		err := os.Remove(f.path(hash))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	})
}

func (f *FileStore) Clear(_ context.Context) error {
	return f.withLock("clear", "", func() error {
		shards, err := os.ReadDir(f.dir)
		if err != nil {
			return fmt.Errorf("read cache directory: %w", err)
		}
		for _, shard := range shards {
			if !shard.IsDir() || !isShardName(shard.Name()) {
				continue
			}
			if err := os.RemoveAll(filepath.Join(f.dir, shard.Name())); err != nil {
				return fmt.Errorf("remove shard %s: %w", shard.Name(), err)
			}
		}
		return nil
	})
}

func (f *FileStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Backend: BackendFile}
	err := f.walk(func(hash string, info fs.FileInfo, e Entry) {
		stats.Entries++
		stats.Bytes += info.Size()
		stats.observe(e.CreatedAt)
	})
	if err != nil {
		return Stats{}, ioError("stats", "", err)
	}
	return stats, nil
}

func (f *FileStore) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := f.walk(func(hash string, _ fs.FileInfo, e Entry) {
		entries = append(entries, e)
	})
	if err != nil {
		return nil, ioError("list", "", err)
	}

	sortNewestFirst(entries)
	return entries, nil
}

func (f *FileStore) Close() error {
	if f.lock.Locked() {
		return f.lock.Unlock()
	}
	return nil
}

// walk visits every decodable entry; unreadable documents are skipped
func (f *FileStore) walk(visit func(hash string, info fs.FileInfo, e Entry)) error {
	return filepath.WalkDir(f.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != f.dir && !isShardName(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		hash, ok := strings.CutSuffix(name, ".json")
		if !ok || ValidateHash(hash) != nil {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		var e Entry
		if json.Unmarshal(data, &e) != nil {
			return nil
		}
		e.Hash = hash

		visit(hash, info, e)
		return nil
	})
}

func (f *FileStore) withLock(op, hash string, fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.lock.Lock(); err != nil {
		return ioError(op, hash, fmt.Errorf("acquire lock: %w", err))
	}
	defer f.lock.Unlock()

	return ioError(op, hash, fn())
}

func isShardName(name string) bool {
	if len(name) != 2 {
		return false
	}
	for _, r := range name {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
