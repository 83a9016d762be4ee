// Package store is the sole owner of all durable Operator state: a single
// SQLite database shared by the monitor, agent, harness, and any read-only
// viewer. Every exported method wraps one atomic transaction; readers are
// unrestricted, writers serialise through SQLite's own locking (WAL mode).
//
// Every Store handle verifies/creates the schema on Open — processes are
// routinely started against a deleted or never-created database (demo
// resets, tests, eval runs) and "no such table" must never surface.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codeready-toolchain/operator/pkg/errtypes"
)

// Store is a typed handle onto the shared Operator SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures the schema exists. Safe to call concurrently from multiple
// processes against the same file; CREATE TABLE IF NOT EXISTS is race-free.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path this store was opened against.
func (s *Store) Path() string {
	return s.path
}

// nowISO returns the current time formatted as UTC ISO-8601 with a timezone
// offset, the wire format spec.md §3 requires for every stored timestamp.
func nowISO() string {
	return formatTime(time.Now())
}

// storedTimeLayout keeps all nine fractional digits so stored timestamps
// compare and sort correctly as text in SQL.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// classifyErr maps a raw sqlite driver error onto the taxonomy in spec.md
// §7: a "no such table" failure here is always a bug (schema init runs
// unconditionally on Open) and is surfaced as errtypes.ErrSchemaMissing so
// callers can assert on it directly instead of string-matching.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("%w: %v", errtypes.ErrSchemaMissing, err)
	}
	return err
}
