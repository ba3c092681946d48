// Package store implements the schema and queries for the monitor's
// single-writer, many-reader embedded SQL store (spec.md §6).
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store owns two connection pools against the same SQLite file: a
// single-connection write pool (SetMaxOpenConns(1), matching the store's
// single-writer contract) and a multi-connection read pool. Writers always
// go through internal/storegate.Gate.WithWriteLock; reads never take the
// gate.
type Store struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

// Open opens (creating if absent) the SQLite database under dataRoot and
// runs forward-only migrations.
func Open(dataRoot string) (*Store, error) {
	if err := os.MkdirAll(dataRoot, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data root: %w", err)
	}
	dbPath := filepath.Join(dataRoot, "websitemonitor.db")

	writeDB, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("store: open write pool: %w", err)
	}
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)

	readDB, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&mode=ro")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("store: open read pool: %w", err)
	}
	readDB.SetMaxOpenConns(8)

	s := &Store{writeDB: writeDB, readDB: readDB}
	if err := s.migrate(); err != nil {
		writeDB.Close()
		readDB.Close()
		return nil, err
	}
	return s, nil
}

// Close closes both pools.
func (s *Store) Close() error {
	err1 := s.writeDB.Close()
	err2 := s.readDB.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// WriteDB exposes the single-connection write pool for internal/storegate.
func (s *Store) WriteDB() *sql.DB { return s.writeDB }

// ReadDB exposes the multi-connection read pool.
func (s *Store) ReadDB() *sql.DB { return s.readDB }

func (s *Store) migrate() error {
	if _, err := s.writeDB.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (name TEXT PRIMARY KEY, applied_utc TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("store: create migrations table: %w", err)
	}
	for _, m := range migrations {
		var exists int
		if err := s.writeDB.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, m.name).Scan(&exists); err != nil {
			return fmt.Errorf("store: check migration %s: %w", m.name, err)
		}
		if exists > 0 {
			continue
		}
		tx, err := s.writeDB.Begin()
		if err != nil {
			return fmt.Errorf("store: begin migration %s: %w", m.name, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: apply migration %s: %w", m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_utc) VALUES (?, ?)`, m.name, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: record migration %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("store: commit migration %s: %w", m.name, err)
		}
	}
	return nil
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
