// Package store provides typed access to the local context database: the
// SQLite file in which editor tooling records conversation summaries and
// per-file code context. It uses modernc.org/sqlite (pure Go, no CGO).
//
// The store never creates rows on behalf of the optimizer; rows are written
// by external indexers. Create and the Put helpers exist for those writers
// and for fixtures.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// ErrNotFound is returned by Open when the database file does not exist.
var ErrNotFound = errors.New("store: database not found")

// Store wraps a single-connection handle to a context database.
type Store struct {
	db   *sql.DB
	path string
}

// Counts holds the row count of each record collection.
type Counts struct {
	Conversations int
	CodeContexts  int
}

// Exists reports whether a database file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Open opens an existing database. It returns ErrNotFound when the file is
// absent instead of letting the driver create an empty one.
func Open(path string, opts Options) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: stat %s: %w", path, err)
	}
	return open(path, opts)
}

// Create opens the database at path, creating the file, its parent directory
// and the schema when missing.
func Create(path string, opts Options) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
		}
	}

	s, err := open(path, opts)
	if err != nil {
		return nil, err
	}
	if err := migrate(context.Background(), s.db); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func open(path string, opts Options) (*Store, error) {
	opts.defaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	// One connection: every statement of a pruning pass runs on the same
	// handle, and PRAGMAs apply consistently.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), fmt.Sprintf("PRAGMA busy_timeout=%d", opts.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close releases the connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Counts returns the number of conversation and code-context rows.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversation_context").Scan(&c.Conversations); err != nil {
		return Counts{}, fmt.Errorf("store: count conversations: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM code_context").Scan(&c.CodeContexts); err != nil {
		return Counts{}, fmt.Errorf("store: count code contexts: %w", err)
	}
	return c, nil
}

// ConversationRange returns the oldest and newest conversation timestamps.
// Rows whose timestamp cannot be parsed are ignored; both values are zero
// when no row carries a usable timestamp.
func (s *Store) ConversationRange(ctx context.Context) (oldest, newest time.Time, err error) {
	rows, err := s.db.QueryContext(ctx, "SELECT timestamp FROM conversation_context WHERE timestamp IS NOT NULL")
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("store: conversation range: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("store: scan timestamp: %w", err)
		}
		t, ok := ParseTime(raw.String)
		if !ok {
			continue
		}
		if oldest.IsZero() || t.Before(oldest) {
			oldest = t
		}
		if newest.IsZero() || t.After(newest) {
			newest = t
		}
	}
	if err := rows.Err(); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("store: conversation range rows: %w", err)
	}
	return oldest, newest, nil
}

// Vacuum rewrites the database file to reclaim pages freed by deletes.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("store: vacuum: %w", err)
	}
	return nil
}

// Update runs fn inside a transaction, committing when fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}
