package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/cmdrelay/pkg/types"
)

// ImportSummary counts the records written by Import.
type ImportSummary struct {
	Commands int
	Profiles int
}

// Export returns every command and profile as a transfer document.
func (b *Backend) Export() (types.Document, error) {
	var doc types.Document
	err := b.read(func(db *sql.DB) error {
		commands, err := listCommands(db)
		if err != nil {
			return err
		}
		profiles, err := listProfiles(db)
		if err != nil {
			return err
		}
		doc.Commands = make([]types.DocumentCommand, len(commands))
		for i, c := range commands {
			doc.Commands[i] = types.DocumentCommand{
				Name:       c.Name,
				Executable: c.Executable,
				Aliases:    c.Aliases,
			}
		}
		doc.Profiles = make([]types.DocumentProfile, len(profiles))
		for i, p := range profiles {
			doc.Profiles[i] = types.DocumentProfile{
				Alias:    p.Alias,
				Host:     p.Host,
				Port:     p.Port,
				Username: p.Username,
				Password: p.Password,
			}
		}
		return nil
	})
	return doc, err
}

// Import writes doc in one transaction. In merge mode commands matched by
// normalized name are updated in place and their association sets
// replaced, new commands are inserted, and profiles are upserted by alias.
// Replace mode first deletes all commands, profiles, and associations. Any
// invalid record aborts the import with nothing applied.
func (b *Backend) Import(doc types.Document, mode types.ImportMode) (ImportSummary, error) {
	var summary ImportSummary
	if mode != types.ImportMerge && mode != types.ImportReplace {
		return summary, fmt.Errorf("%w: %q", types.ErrInvalidImportMode, mode)
	}

	err := b.write(func(tx *sql.Tx) error {
		if mode == types.ImportReplace {
			for _, stmt := range []string{
				"DELETE FROM command_targets",
				"DELETE FROM commands",
				"DELETE FROM ssh_connections",
			} {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("clearing store: %w", err)
				}
			}
		}

		for _, dp := range doc.Profiles {
			p := dp.Profile()
			if err := p.Validate(); err != nil {
				return err
			}
			if _, err := tx.Exec(
				`INSERT INTO ssh_connections (alias, host, port, username, password) VALUES (?, ?, ?, ?, ?)
    ON CONFLICT(alias) DO UPDATE SET host = excluded.host, port = excluded.port,
        username = excluded.username, password = excluded.password`,
				p.Alias, p.Host, p.Port, p.Username, p.Password,
			); err != nil {
				return fmt.Errorf("importing profile %s: %w", p.Alias, err)
			}
			summary.Profiles++
		}

		for _, dc := range doc.Commands {
			name, executable, err := normalizeCommand(dc.Name, dc.Executable)
			if err != nil {
				return fmt.Errorf("importing command %q: %w", dc.Name, err)
			}
			var id int64
			err = tx.QueryRow("SELECT id FROM commands WHERE name = ?", name).Scan(&id)
			switch {
			case err == sql.ErrNoRows:
				res, err := tx.Exec(
					"INSERT INTO commands (name, executable, created_at) VALUES (?, ?, ?)",
					name, executable, nowTimestamp(),
				)
				if err != nil {
					return fmt.Errorf("importing command %s: %w", name, err)
				}
				if id, err = res.LastInsertId(); err != nil {
					return fmt.Errorf("importing command %s: %w", name, err)
				}
			case err != nil:
				return fmt.Errorf("importing command %s: %w", name, err)
			default:
				if _, err := tx.Exec("UPDATE commands SET executable = ? WHERE id = ?", executable, id); err != nil {
					return fmt.Errorf("importing command %s: %w", name, err)
				}
			}
			if err := replaceTargets(tx, id, dc.TargetAliases()); err != nil {
				return err
			}
			summary.Commands++
		}
		return nil
	})
	if err != nil {
		return ImportSummary{}, err
	}
	b.log.Info().Str("mode", string(mode)).Int("commands", summary.Commands).
		Int("profiles", summary.Profiles).Msg("imported document")
	return summary, nil
}
