package imagecache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Record is one cached image.
type Record struct {
	Key       string
	Blob      []byte
	Timestamp time.Time
}

// Store persists image blobs in SQLite, keyed by URL without its query.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("image cache path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close image cache: %w", err)
	}
	return nil
}

// Get returns the record for key. ok is false when none is stored.
func (s *Store) Get(ctx context.Context, key string) (Record, bool, error) {
	var (
		rec Record
		ms  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT key, blob, timestamp FROM images WHERE key = ?`, key,
	).Scan(&rec.Key, &rec.Blob, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("query image %q: %w", key, err)
	}
	rec.Timestamp = time.UnixMilli(ms)
	return rec, true, nil
}

// Put stores or replaces a record.
func (s *Store) Put(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO images (key, blob, timestamp) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET blob = excluded.blob, timestamp = excluded.timestamp`,
		rec.Key, rec.Blob, rec.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save image %q: %w", rec.Key, err)
	}
	return nil
}

// Prune deletes records stored before cutoff and returns how many went.
// Reads never depend on it; expired records are already ignored by Loader.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE timestamp < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune image cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune image cache: %w", err)
	}
	return n, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return n, nil
}

// Key strips the query string from an image URL.
func Key(src string) string {
	key, _, _ := strings.Cut(strings.TrimSpace(src), "?")
	return key
}
