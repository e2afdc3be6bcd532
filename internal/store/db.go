// Package store persists package metadata in SQLite. It is the only
// component that reads or writes PackageRecords; the install engine
// requests every mutation through it. SQLite flushes each statement to
// durable storage before Exec returns, which gives the store its
// write-through guarantee.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrNotInitialized is returned when the database exists but the schema
// has not been created yet. Run 'upstream init' to create it.
var ErrNotInitialized = errors.New("package store not initialized (run 'upstream init')")

// ErrNotFound is returned when no record exists for a package name.
var ErrNotFound = errors.New("package not found")

// Store provides SQLite-backed operations over package records.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the store at dbPath. Use ":memory:" for
// in-memory databases in tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = FULL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database connection for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateSchema creates all tables and indexes.
func (s *Store) CreateSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// wrapSchemaErr converts "no such table" failures into ErrNotInitialized
// so callers can distinguish a missing schema from a real query error.
func wrapSchemaErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("%w: %v", ErrNotInitialized, err)
	}
	return err
}
