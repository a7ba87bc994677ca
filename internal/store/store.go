// Package store is the SQLite data access layer: a durable, incrementally
// synced mirror of chats, contacts, groups, messages, and media metadata.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound marks row-level misses so callers can distinguish "no such
// chat/message/contact" from storage failures.
var ErrNotFound = errors.New("not found")

// ErrInvalidArgument marks empty or malformed required inputs.
var ErrInvalidArgument = errors.New("invalid argument")

// DB wraps the wacli.db handle. All methods are safe for concurrent use;
// SQLite's WAL serializes writers.
type DB struct {
	db         *sql.DB
	ftsEnabled bool
}

// Open opens (creating if needed) the database at path, applies pragmas,
// and runs the idempotent schema. FTS5 is probed once: when the runtime
// lacks the extension, search falls back to LIKE scans.
func Open(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: db path is required", ErrInvalidArgument)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA temp_store=MEMORY`); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	s := &DB{db: db}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	s.ftsEnabled = s.setupFTS() == nil

	return s, nil
}

// setupFTS creates the full-text table and its triggers. Any failure means
// the runtime SQLite lacks FTS5; the store then serves LIKE-based search.
func (s *DB) setupFTS() error {
	if _, err := s.db.Exec(ftsSchema); err != nil {
		return err
	}
	_, err := s.db.Exec(ftsTriggers)
	return err
}

// HasFTS reports whether full-text search is available in this store.
func (s *DB) HasFTS() bool {
	return s.ftsEnabled
}

// Close closes the underlying database connection.
func (s *DB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Shared scan/convert helpers
// ---------------------------------------------------------------------------

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().Unix()
}

func fromUnix(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// nullIfEmpty maps trimmed-empty strings to NULL so widening updates can
// tell "no value" from "empty value".
func nullIfEmpty(v string) any {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return v
}

// notFound rewraps sql.ErrNoRows into the store's typed miss.
func notFound(err error, what, key string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %q: %w", what, key, ErrNotFound)
	}
	return err
}
