package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// timestampLayout is fixed width so text order in SQL matches time order
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore keeps entries in a single SQLite database
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ioError("open", "", fmt.Errorf("create cache directory: %w", err))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ioError("open", "", fmt.Errorf("open sqlite db: %w", err))
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, ioError("open", "", fmt.Errorf("apply pragma %q: %w", pragma, execErr))
		}
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, ioError("open", "", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_version").Scan(&count); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if count == 0 {
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", SchemaVersion); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
	}

	return tx.Commit()
}

// Path returns the database file
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Get(ctx context.Context, hash string) (Entry, bool, error) {
	if err := ValidateHash(hash); err != nil {
		return Entry{}, false, err
	}

	var (
		payload   string
		createdAt string
		version   int
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT payload, created_at, schema_version FROM results WHERE hash = ?", hash,
	).Scan(&payload, &createdAt, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, ioError("read", hash, err)
	}

	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Entry{}, false, fmt.Errorf("%w: %s: bad timestamp %q", ErrCorruptEntry, hash, createdAt)
	}

	return Entry{Hash: hash, Result: []byte(payload), CreatedAt: created, SchemaVersion: version}, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, e Entry) error {
	if err := ValidateHash(e.Hash); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO results (hash, payload, created_at, schema_version) VALUES (?, ?, ?, ?)",
		e.Hash,
		string(e.Result),
		e.CreatedAt.UTC().Format(timestampLayout),
		e.SchemaVersion,
	)
	return ioError("write", e.Hash, err)
}

func (s *SQLiteStore) Delete(ctx context.Context, hash string) error {
	if err := ValidateHash(hash); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM results WHERE hash = ?", hash)
	return ioError("delete", hash, err)
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM results")
	return ioError("clear", "", err)
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Backend: BackendSQLite}

	var (
		bytes  sql.NullInt64
		oldest sql.NullString
		newest sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1), SUM(LENGTH(payload)), MIN(created_at), MAX(created_at) FROM results",
	).Scan(&stats.Entries, &bytes, &oldest, &newest)
	if err != nil {
		return Stats{}, ioError("stats", "", err)
	}

	stats.Bytes = bytes.Int64
	if oldest.Valid {
		stats.Oldest, _ = time.Parse(time.RFC3339Nano, oldest.String)
	}
	if newest.Valid {
		stats.Newest, _ = time.Parse(time.RFC3339Nano, newest.String)
	}

	return stats, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT hash, payload, created_at, schema_version FROM results")
	if err != nil {
		return nil, ioError("list", "", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			payload   string
			createdAt string
		)
		if err := rows.Scan(&e.Hash, &payload, &createdAt, &e.SchemaVersion); err != nil {
			return nil, ioError("list", "", err)
		}
		e.Result = []byte(payload)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ioError("list", "", err)
	}

	sortNewestFirst(entries)
	return entries, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
