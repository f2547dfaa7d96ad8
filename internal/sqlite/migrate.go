package sqlite

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/cmdrelay/pkg/types"
)

// upgrade moves the schema from one generation to the next.
type upgrade struct {
	description string
	apply       func(tx *sql.Tx) error
}

// upgrades maps each generation to the step that produces its successor.
var upgrades = map[Generation]upgrade{
	Generation0: {
		description: "add inline alias column to commands",
		apply:       addInlineAlias,
	},
	Generation1: {
		description: "move inline aliases into command_targets and rebuild commands",
		apply:       moveInlineAliases,
	},
}

// EnsureCurrentSchema brings the database to CurrentGeneration and seeds
// bootstrap data into empty tables. The whole sequence runs in one
// transaction; on failure nothing is applied and the returned error wraps
// types.ErrMigration. Running it against a current database only performs
// existence checks.
func (b *Backend) EnsureCurrentSchema() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return types.ErrStoreClosed
	}
	gen, err := ensureCurrentSchema(b.db, b.log)
	if err != nil {
		return err
	}
	b.detected = gen
	return nil
}

func ensureCurrentSchema(db *sql.DB, log zerolog.Logger) (Generation, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %w", types.ErrMigration, err)
	}
	defer tx.Rollback()

	detected, err := detectGeneration(tx)
	if err != nil {
		return 0, fmt.Errorf("%w: detect generation: %w", types.ErrMigration, err)
	}
	log.Debug().Stringer("generation", detected).Msg("detected schema generation")

	for _, ddl := range schemaDDL {
		if _, err := tx.Exec(ddl); err != nil {
			return 0, fmt.Errorf("%w: create tables: %w", types.ErrMigration, err)
		}
	}

	if detected < CurrentGeneration {
		if err := migrateLegacySettings(tx, log); err != nil {
			return 0, fmt.Errorf("%w: legacy settings: %w", types.ErrMigration, err)
		}
	}

	gen := detected
	if gen == GenerationNone {
		// Tables were just created in their current shape.
		gen = CurrentGeneration
	}
	for ; gen < CurrentGeneration; gen++ {
		step, ok := upgrades[gen]
		if !ok {
			return 0, fmt.Errorf("%w: no upgrade from %s", types.ErrMigration, gen)
		}
		log.Info().Stringer("from", gen).Stringer("to", gen+1).Msg(step.description)
		if err := step.apply(tx); err != nil {
			return 0, fmt.Errorf("%w: %s: %w", types.ErrMigration, step.description, err)
		}
	}

	seeded, err := seedDefaultCommands(tx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", types.ErrMigration, err)
	}
	if seeded {
		log.Info().Int("count", len(defaultCommands)).Msg("seeded default commands")
	}
	seeded, err = seedDefaultProfile(tx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", types.ErrMigration, err)
	}
	if seeded {
		log.Info().Str("alias", defaultProfile.Alias).Msg("seeded default connection profile")
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", int(CurrentGeneration))); err != nil {
		return 0, fmt.Errorf("%w: stamp user_version: %w", types.ErrMigration, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", types.ErrMigration, err)
	}
	return detected, nil
}

// migrateLegacySettings copies a flat key/value settings table into one
// profile aliased types.DefaultAlias when it holds a host entry. A duplicate
// alias means this already ran and is logged, not returned.
func migrateLegacySettings(tx *sql.Tx, log zerolog.Logger) error {
	ok, err := tableExists(tx, tableSettings)
	if err != nil || !ok {
		return err
	}

	rows, err := tx.Query("SELECT key, value FROM settings")
	if err != nil {
		return fmt.Errorf("reading settings: %w", err)
	}
	settings := make(map[string]string)
	for rows.Next() {
		var key string
		var value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			rows.Close()
			return fmt.Errorf("scanning setting: %w", err)
		}
		settings[key] = value.String
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("reading settings: %w", err)
	}
	rows.Close()

	host, ok := settings["host"]
	if !ok {
		return nil
	}

	port := types.DefaultPort
	if raw := strings.TrimSpace(settings["port"]); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 65535 {
			log.Warn().Str("port", raw).Msg("legacy settings port invalid, using default")
		} else {
			port = n
		}
	}

	err = insertProfile(tx, types.Profile{
		Alias:    types.DefaultAlias,
		Host:     host,
		Port:     port,
		Username: settings["username"],
		Password: settings["password"],
	})
	if isUniqueViolation(err) {
		log.Warn().Str("alias", types.DefaultAlias).Msg("legacy settings already migrated")
		return nil
	}
	if err != nil {
		return fmt.Errorf("inserting legacy profile: %w", err)
	}
	log.Info().Str("alias", types.DefaultAlias).Str("host", host).Msg("migrated legacy settings")
	return nil
}

// addInlineAlias is the G0 to G1 step. Existing rows take the default alias.
func addInlineAlias(tx *sql.Tx) error {
	_, err := tx.Exec(fmt.Sprintf(
		"ALTER TABLE commands ADD COLUMN alias TEXT DEFAULT '%s'", types.DefaultAlias))
	return err
}

// moveInlineAliases is the G1 to G2 step. Each command gets one association
// from its inline alias, then commands is rebuilt without the column through
// a shadow table.
func moveInlineAliases(tx *sql.Tx) error {
	type inline struct {
		id    int64
		alias string
	}

	rows, err := tx.Query("SELECT id, alias FROM commands")
	if err != nil {
		return fmt.Errorf("reading inline aliases: %w", err)
	}
	var pending []inline
	for rows.Next() {
		var in inline
		var alias sql.NullString
		if err := rows.Scan(&in.id, &alias); err != nil {
			rows.Close()
			return fmt.Errorf("scanning inline alias: %w", err)
		}
		in.alias = strings.TrimSpace(alias.String)
		if in.alias == "" {
			in.alias = types.DefaultAlias
		}
		pending = append(pending, in)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("reading inline aliases: %w", err)
	}
	rows.Close()

	for _, in := range pending {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO command_targets (command_id, alias) VALUES (?, ?)",
			in.id, in.alias,
		); err != nil {
			return fmt.Errorf("inserting association for command %d: %w", in.id, err)
		}
	}

	stmts := []string{
		`CREATE TABLE commands_new (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    executable TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
		`INSERT INTO commands_new (id, name, executable, created_at)
    SELECT id, name, executable, created_at FROM commands`,
		`DROP TABLE commands`,
		`ALTER TABLE commands_new RENAME TO commands`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("rebuilding commands: %w", err)
		}
	}
	return nil
}
