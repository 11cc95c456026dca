// Package store keeps small local options (self-test timestamps and the like)
// in a sqlite file, the way WordPress keeps them in wp_options.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // pure Go sqlite driver

	"github.com/standardbeagle/wsd/internal/debug"
)

// Option names written by wsd
const (
	OptionSelfTestLastRun = "wsd_self_test_last_run"
)

// Store is a key/value options table
type Store struct {
	db *sql.DB
}

// Open creates or opens the options database at path. ":memory:" keeps it in memory.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	// one connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(),
		`CREATE TABLE IF NOT EXISTS options (name TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create options table: %w", err)
	}
	debug.Log("STORE", "opened %s\n", path)
	return &Store{db: db}, nil
}

// Get returns the option value and whether it exists
func (s *Store) Get(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM options WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read option %s: %w", name, err)
	}
	return value, true, nil
}

// Set inserts or replaces an option
func (s *Store) Set(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO options (name, value) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		name, value)
	if err != nil {
		return fmt.Errorf("failed to write option %s: %w", name, err)
	}
	return nil
}

// GetTime reads a Unix timestamp option; the zero time means never set
func (s *Store) GetTime(ctx context.Context, name string) (time.Time, error) {
	value, ok, err := s.Get(ctx, name)
	if err != nil || !ok {
		return time.Time{}, err
	}
	secs, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("option %s is not a timestamp: %w", name, err)
	}
	return time.Unix(secs, 0), nil
}

// SetTime stores t as a Unix timestamp
func (s *Store) SetTime(ctx context.Context, name string, t time.Time) error {
	return s.Set(ctx, name, strconv.FormatInt(t.Unix(), 10))
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
