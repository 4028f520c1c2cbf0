package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/diamond/internal/ir"
	"github.com/roach88/diamond/internal/kv"
)

//go:embed schema.sql
var schemaSQL string

// migrations[i] moves a database from user_version i to i+1. Version 0 is a
// file this binary has never opened.
var migrations = []string{
	schemaSQL, // 1: slots + meta
}

// pragmas are applied on every open, before migrating.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

// ErrSchemaTooNew is returned when the database was written by a newer binary.
var ErrSchemaTooNew = errors.New("store: database schema is newer than this binary")

// Store is a kv.Backend over one SQLite file.
type Store struct {
	db *sql.DB
}

var _ kv.Backend = (*Store)(nil)

// Open opens or creates the database at path, then migrates it to the
// latest schema. Opening an up-to-date database changes nothing.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: connect %s: %w", path, err)
	}

	// One connection: a kv.Tx holds it for its whole lifetime, which makes
	// SQLite's single writer the serialization point for dispatch.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Begin opens a transaction. It blocks until any open transaction finishes
// or ctx is done.
func (s *Store) Begin(ctx context.Context) (kv.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// SchemaVersion returns the user_version recorded in the database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("store: read user_version: %w", err)
	}
	return version, nil
}

// Pragma returns the current value of a pragma as text.
func (s *Store) Pragma(ctx context.Context, name string) (string, error) {
	var value string
	if err := s.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
		return "", fmt.Errorf("store: read pragma %s: %w", name, err)
	}
	return value, nil
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("store: read user_version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("%w: version %d, supported %d", ErrSchemaTooNew, version, len(migrations))
	}

	for v := version; v < len(migrations); v++ {
		if _, err := db.Exec(migrations[v]); err != nil {
			return fmt.Errorf("store: migrate to %d: %w", v+1, err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			return fmt.Errorf("store: set user_version %d: %w", v+1, err)
		}
	}

	_, err := db.Exec(`
		INSERT INTO meta (name, value) VALUES ('layout_version', ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, ir.LayoutVersion)
	if err != nil {
		return fmt.Errorf("store: record layout version: %w", err)
	}
	return nil
}
