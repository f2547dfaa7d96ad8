package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mesh-intelligence/cmdrelay/pkg/types"
)

// DatabaseFile is the file name of the store inside the data directory.
const DatabaseFile = "commands.db"

// Options tune a Backend. The zero value is usable.
type Options struct {
	// Logger receives migration and store diagnostics. Nil discards them.
	Logger *zerolog.Logger
}

// Backend owns the SQLite connection and exposes the profile and command
// tables. Writers hold mu exclusively for the span of their transaction, so
// readers never observe a half-replaced association set.
type Backend struct {
	mu       sync.RWMutex
	db       *sql.DB
	log      zerolog.Logger
	detected Generation
}

// Open opens (creating if needed) the database at path and runs
// EnsureCurrentSchema before returning.
func Open(path string, opts Options) (*Backend, error) {
	if path == "" {
		return nil, fmt.Errorf("db path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection serializes statements; mu serializes transactions.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure db: %w", err)
	}

	b := &Backend{db: db, log: zerolog.Nop()}
	if opts.Logger != nil {
		b.log = opts.Logger.With().Str("component", "store").Logger()
	}
	if err := b.EnsureCurrentSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// OpenConfig opens DatabaseFile inside cfg.DataDir.
func OpenConfig(cfg types.Config, opts Options) (*Backend, error) {
	if cfg.DataDir == "" {
		return nil, types.ErrDataDirEmpty
	}
	return Open(filepath.Join(cfg.DataDir, DatabaseFile), opts)
}

// Close releases the connection. Close is idempotent; later operations
// return types.ErrStoreClosed.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// Generation reports the on-disk generation found by the last
// EnsureCurrentSchema, before any upgrade ran.
func (b *Backend) Generation() Generation {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.detected
}

// Profiles returns the connection profile table.
func (b *Backend) Profiles() *ProfilesTable {
	return &ProfilesTable{backend: b}
}

// Commands returns the command table.
func (b *Backend) Commands() *CommandsTable {
	return &CommandsTable{backend: b}
}

// read runs fn under the shared lock.
func (b *Backend) read(fn func(db *sql.DB) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return types.ErrStoreClosed
	}
	return fn(b.db)
}

// write runs fn in a transaction under the exclusive lock and commits when
// fn returns nil.
func (b *Backend) write(fn func(tx *sql.Tx) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return types.ErrStoreClosed
	}
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
		(code == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE constraint"))
}

// timestampLayouts covers RFC 3339 values written by this package and the
// CURRENT_TIMESTAMP text of legacy rows.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05",
}

func nowTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// parseTimestamp returns the zero time for empty or unrecognized values.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
