// Package sqlite implements the SQLite store for cmdrelay: connection
// profiles, commands, their target associations, and forward migration of
// older on-disk layouts.
package sqlite

import (
	"database/sql"
	"fmt"
)

// Table names. ssh_connections keeps its historical name so existing
// databases migrate in place.
const (
	tableCommands = "commands"
	tableProfiles = "ssh_connections"
	tableTargets  = "command_targets"
	tableSettings = "settings"
	columnAlias   = "alias"
)

// Current-generation DDL. Every statement is safe to re-run.
const (
	createCommands = `CREATE TABLE IF NOT EXISTS commands (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    executable TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

	createProfiles = `CREATE TABLE IF NOT EXISTS ssh_connections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    alias TEXT UNIQUE NOT NULL,
    host TEXT NOT NULL,
    port INTEGER NOT NULL,
    username TEXT NOT NULL,
    password TEXT
);`

	// alias is deliberately not a foreign key: associations may dangle.
	createTargets = `CREATE TABLE IF NOT EXISTS command_targets (
    command_id INTEGER NOT NULL,
    alias TEXT NOT NULL,
    PRIMARY KEY (command_id, alias)
);`

	idxTargetsAlias = `CREATE INDEX IF NOT EXISTS idx_command_targets_alias ON command_targets(alias);`
)

// schemaDDL lists the current-generation statements in dependency order.
var schemaDDL = []string{
	createCommands,
	createProfiles,
	createTargets,
	idxTargetsAlias,
}

// Generation identifies one on-disk data layout.
type Generation int

// Known generations, oldest first.
const (
	// GenerationNone is a database with no commands table at all.
	GenerationNone Generation = -1

	// Generation0 has a commands table and nothing else.
	Generation0 Generation = 0

	// Generation1 adds an inline commands.alias column and the
	// ssh_connections table.
	Generation1 Generation = 1

	// Generation2 replaces the inline alias with command_targets.
	Generation2 Generation = 2

	CurrentGeneration = Generation2
)

func (g Generation) String() string {
	switch g {
	case GenerationNone:
		return "empty"
	case Generation0, Generation1, Generation2:
		return fmt.Sprintf("G%d", int(g))
	default:
		return fmt.Sprintf("unknown(%d)", int(g))
	}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// detectGeneration inspects the raw schema. A stamped user_version wins;
// unstamped databases are classified by their tables and columns.
func detectGeneration(q querier) (Generation, error) {
	var version int
	if err := q.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading user_version: %w", err)
	}
	if Generation(version) >= CurrentGeneration {
		return CurrentGeneration, nil
	}

	hasCommands, err := tableExists(q, tableCommands)
	if err != nil {
		return 0, err
	}
	if !hasCommands {
		return GenerationNone, nil
	}

	inline, err := tableHasColumn(q, tableCommands, columnAlias)
	if err != nil {
		return 0, err
	}
	if inline {
		return Generation1, nil
	}

	hasTargets, err := tableExists(q, tableTargets)
	if err != nil {
		return 0, err
	}
	if hasTargets {
		return Generation2, nil
	}
	return Generation0, nil
}

func tableExists(q querier, table string) (bool, error) {
	var name string
	err := q.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", table, err)
	}
	return true, nil
}

func tableHasColumn(q querier, table, column string) (bool, error) {
	rows, err := q.Query(`PRAGMA table_info(` + table + `)`)
	if err != nil {
		return false, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("scanning column of %s: %w", table, err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
