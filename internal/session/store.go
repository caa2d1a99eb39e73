// Package session keeps the most recent sanitization result for each browsing
// session so a display surface can show what was removed.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/colebrumley/nope/internal/sanitize"
)

// ErrNotFound is returned when a session has no stored result
var ErrNotFound = errors.New("session not found")

// DefaultMaxEntries bounds the store when no limit is configured.
const DefaultMaxEntries = 1000

// Store holds one sanitize.Result per session id.
type Store struct {
	db         *sql.DB
	maxEntries int
}

const sessionSchema = `
CREATE TABLE IF NOT EXISTS session_results (
    id TEXT PRIMARY KEY,
    original_url TEXT NOT NULL,
    cleaned_url TEXT NOT NULL,
    removed TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_results_updated ON session_results(updated_at);
`

// Open opens a session store. An empty path keeps results in memory only, so
// they disappear with the process.
func Open(path string, maxEntries int) (*Store, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == "" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if _, err := db.Exec(sessionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{db: db, maxEntries: maxEntries}, nil
}

// NewID returns a fresh opaque session id.
func NewID() string {
	return uuid.NewString()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores r for id, replacing any earlier result, then evicts the oldest
// sessions beyond the configured bound.
func (s *Store) Put(ctx context.Context, id string, r sanitize.Result) error {
	removed, err := json.Marshal(r.Removed)
	if err != nil {
		return fmt.Errorf("encoding removed params: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_results (id, original_url, cleaned_url, removed, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			original_url = excluded.original_url,
			cleaned_url = excluded.cleaned_url,
			removed = excluded.removed,
			updated_at = excluded.updated_at`,
		id, r.OriginalURL, r.CleanedURL, string(removed), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storing session result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM session_results WHERE id NOT IN (
			SELECT id FROM session_results ORDER BY updated_at DESC, rowid DESC LIMIT ?
		)`, s.maxEntries)
	if err != nil {
		return fmt.Errorf("evicting old sessions: %w", err)
	}
	return nil
}

// Get returns the stored result for id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (sanitize.Result, error) {
	var r sanitize.Result
	var removed string
	err := s.db.QueryRowContext(ctx,
		"SELECT original_url, cleaned_url, removed FROM session_results WHERE id = ?", id,
	).Scan(&r.OriginalURL, &r.CleanedURL, &removed)
	if err == sql.ErrNoRows {
		return sanitize.Result{}, ErrNotFound
	}
	if err != nil {
		return sanitize.Result{}, fmt.Errorf("getting session result: %w", err)
	}

	if err := json.Unmarshal([]byte(removed), &r.Removed); err != nil {
		return sanitize.Result{}, fmt.Errorf("decoding removed params: %w", err)
	}
	if r.Removed == nil {
		r.Removed = []sanitize.Param{}
	}
	return r, nil
}

// Delete discards the result for id. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session_results WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting session result: %w", err)
	}
	return nil
}

// Count returns the number of stored sessions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM session_results").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return n, nil
}

// Clear removes every stored session.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session_results"); err != nil {
		return fmt.Errorf("clearing sessions: %w", err)
	}
	return nil
}

// Cleanup removes sessions not updated within maxAge.
func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM session_results WHERE updated_at < ?", cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("cleaning up sessions: %w", err)
	}
	return result.RowsAffected()
}
