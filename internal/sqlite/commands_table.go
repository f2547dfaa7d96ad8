package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/cmdrelay/pkg/types"
)

// CommandsTable stores commands and their target associations. Aliases are
// re-read from command_targets on every call and are not checked against
// the profile table.
type CommandsTable struct {
	backend *Backend
}

const selectCommand = "SELECT id, name, executable, created_at FROM commands"

// List returns every command ordered by name, each with its aliases.
func (ct *CommandsTable) List() ([]types.Command, error) {
	var out []types.Command
	err := ct.backend.read(func(db *sql.DB) error {
		var err error
		out, err = listCommands(db)
		return err
	})
	return out, err
}

// Get returns the command whose normalized name matches, or
// types.ErrNotFound.
func (ct *CommandsTable) Get(name string) (*types.Command, error) {
	var c *types.Command
	err := ct.backend.read(func(db *sql.DB) error {
		var err error
		c, err = loadCommand(db, "name = ?", types.NormalizeName(name))
		return err
	})
	return c, err
}

// GetByID returns the command with the given id, or types.ErrNotFound.
func (ct *CommandsTable) GetByID(id int64) (*types.Command, error) {
	var c *types.Command
	err := ct.backend.read(func(db *sql.DB) error {
		var err error
		c, err = loadCommand(db, "id = ?", id)
		return err
	})
	return c, err
}

// Add creates a command with one association per alias. The name is trimmed
// and lower-cased and the executable trimmed. Returns types.ErrDuplicateName
// if the normalized name exists.
func (ct *CommandsTable) Add(name, executable string, aliases []string) (*types.Command, error) {
	name, executable, err := normalizeCommand(name, executable)
	if err != nil {
		return nil, err
	}

	var c *types.Command
	err = ct.backend.write(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			"INSERT INTO commands (name, executable, created_at) VALUES (?, ?, ?)",
			name, executable, nowTimestamp(),
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", types.ErrDuplicateName, name)
		}
		if err != nil {
			return fmt.Errorf("inserting command %s: %w", name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("inserting command %s: %w", name, err)
		}
		if err := insertTargets(tx, id, aliases); err != nil {
			return err
		}
		c, err = loadCommand(tx, "id = ?", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Update renames and re-points a command. The association set is replaced
// wholesale together with the row update. Returns types.ErrNotFound for an
// unknown id and types.ErrDuplicateName when the new name belongs to a
// different command.
func (ct *CommandsTable) Update(id int64, name, executable string, aliases []string) (*types.Command, error) {
	name, executable, err := normalizeCommand(name, executable)
	if err != nil {
		return nil, err
	}

	var c *types.Command
	err = ct.backend.write(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			"UPDATE commands SET name = ?, executable = ? WHERE id = ?", name, executable, id,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", types.ErrDuplicateName, name)
		}
		if err != nil {
			return fmt.Errorf("updating command %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating command %d: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: command %d", types.ErrNotFound, id)
		}
		if err := replaceTargets(tx, id, aliases); err != nil {
			return err
		}
		c, err = loadCommand(tx, "id = ?", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes the command and all of its associations.
func (ct *CommandsTable) Delete(id int64) error {
	return ct.backend.write(func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM commands WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting command %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("deleting command %d: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: command %d", types.ErrNotFound, id)
		}
		if _, err := tx.Exec("DELETE FROM command_targets WHERE command_id = ?", id); err != nil {
			return fmt.Errorf("deleting associations of command %d: %w", id, err)
		}
		return nil
	})
}

func normalizeCommand(name, executable string) (string, string, error) {
	name = types.NormalizeName(name)
	if name == "" {
		return "", "", types.ErrInvalidName
	}
	executable = types.NormalizeExecutable(executable)
	if executable == "" {
		return "", "", types.ErrInvalidExecutable
	}
	return name, executable, nil
}

// insertTargets adds one association per normalized alias.
func insertTargets(q querier, commandID int64, aliases []string) error {
	for _, alias := range types.NormalizeAliases(aliases) {
		if _, err := q.Exec(
			"INSERT INTO command_targets (command_id, alias) VALUES (?, ?)", commandID, alias,
		); err != nil {
			return fmt.Errorf("inserting association %d/%s: %w", commandID, alias, err)
		}
	}
	return nil
}

// replaceTargets deletes every association of the command, then inserts the
// new set. It is never diffed.
func replaceTargets(q querier, commandID int64, aliases []string) error {
	if _, err := q.Exec("DELETE FROM command_targets WHERE command_id = ?", commandID); err != nil {
		return fmt.Errorf("clearing associations of command %d: %w", commandID, err)
	}
	return insertTargets(q, commandID, aliases)
}

func loadCommand(q querier, where string, arg any) (*types.Command, error) {
	c, err := scanCommand(q.QueryRow(selectCommand+" WHERE "+where, arg))
	if err != nil {
		return nil, err
	}
	aliases, err := loadTargets(q, c.ID)
	if err != nil {
		return nil, err
	}
	c.Aliases = aliases
	return c, nil
}

func loadTargets(q querier, commandID int64) ([]string, error) {
	rows, err := q.Query("SELECT alias FROM command_targets WHERE command_id = ? ORDER BY alias", commandID)
	if err != nil {
		return nil, fmt.Errorf("loading associations of command %d: %w", commandID, err)
	}
	defer rows.Close()

	aliases := []string{}
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, fmt.Errorf("scanning association: %w", err)
		}
		aliases = append(aliases, alias)
	}
	return aliases, rows.Err()
}

func listCommands(q querier) ([]types.Command, error) {
	rows, err := q.Query(selectCommand + " ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing commands: %w", err)
	}
	out := []types.Command{}
	index := make(map[int64]int)
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		c.Aliases = []string{}
		index[c.ID] = len(out)
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("listing commands: %w", err)
	}
	rows.Close()

	targets, err := q.Query("SELECT command_id, alias FROM command_targets ORDER BY command_id, alias")
	if err != nil {
		return nil, fmt.Errorf("listing associations: %w", err)
	}
	defer targets.Close()
	for targets.Next() {
		var id int64
		var alias string
		if err := targets.Scan(&id, &alias); err != nil {
			return nil, fmt.Errorf("scanning association: %w", err)
		}
		if i, ok := index[id]; ok {
			out[i].Aliases = append(out[i].Aliases, alias)
		}
	}
	return out, targets.Err()
}

func scanCommand(row rowScanner) (*types.Command, error) {
	var c types.Command
	var createdAt sql.NullString
	err := row.Scan(&c.ID, &c.Name, &c.Executable, &createdAt)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning command: %w", err)
	}
	c.CreatedAt = parseTimestamp(createdAt.String)
	return &c, nil
}
