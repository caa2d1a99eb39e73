// internal/prefs/store.go
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrEmptyKey is returned when allowing an empty parameter name
var ErrEmptyKey = errors.New("parameter name is empty")

// Store persists the user allowlist in SQLite. Several processes may share
// one database file; each sees the others' writes on its next Load.
type Store struct {
	db   *sql.DB
	path string

	mu     sync.Mutex
	subs   map[int]func(*Allowlist)
	nextID int
}

const schema = `
CREATE TABLE IF NOT EXISTS user_allowlist (
    key TEXT PRIMARY KEY,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// Open opens or creates a preference database at the given path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{
		db:   db,
		path: path,
		subs: make(map[int]func(*Allowlist)),
	}, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads the persisted allowlist. A store with no entries yields an
// empty allowlist.
func (s *Store) Load(ctx context.Context) (*Allowlist, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM user_allowlist")
	if err != nil {
		return nil, fmt.Errorf("querying allowlist: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning allowlist key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading allowlist: %w", err)
	}
	return NewAllowlist(keys...), nil
}

// Allow adds key to the allowlist. Adding a key that is already present is a
// no-op and reports added=false. Subscribers are notified with the reloaded
// allowlist before Allow returns.
func (s *Store) Allow(ctx context.Context, key string) (added bool, err error) {
	if key == "" {
		return false, ErrEmptyKey
	}

	result, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO user_allowlist (key) VALUES (?)", key)
	if err != nil {
		return false, fmt.Errorf("inserting allowlist key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}

	current, err := s.Load(ctx)
	if err != nil {
		return n > 0, fmt.Errorf("reloading allowlist: %w", err)
	}
	s.notify(current)
	return n > 0, nil
}

// Subscribe registers fn to receive every new allowlist produced by Allow.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(*Allowlist)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify(a *Allowlist) {
	s.mu.Lock()
	subs := make([]func(*Allowlist), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(a)
	}
}
