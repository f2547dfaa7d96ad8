package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/cmdrelay/pkg/types"
)

// ProfilesTable stores connection profiles keyed by alias.
type ProfilesTable struct {
	backend *Backend
}

const selectProfile = "SELECT id, alias, host, port, username, password FROM ssh_connections"

// List returns every profile ordered by alias.
func (pt *ProfilesTable) List() ([]types.Profile, error) {
	var out []types.Profile
	err := pt.backend.read(func(db *sql.DB) error {
		var err error
		out, err = listProfiles(db)
		return err
	})
	return out, err
}

// Get returns the profile with the given alias, or types.ErrNotFound.
func (pt *ProfilesTable) Get(alias string) (*types.Profile, error) {
	var p *types.Profile
	err := pt.backend.read(func(db *sql.DB) error {
		var err error
		p, err = scanProfile(db.QueryRow(selectProfile+" WHERE alias = ?", alias))
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListAliases returns every alias in ascending order.
func (pt *ProfilesTable) ListAliases() ([]string, error) {
	profiles, err := pt.List()
	if err != nil {
		return nil, err
	}
	aliases := make([]string, len(profiles))
	for i, p := range profiles {
		aliases[i] = p.Alias
	}
	return aliases, nil
}

// Upsert writes p. With renameFrom empty it inserts a new row; otherwise it
// updates the row currently aliased renameFrom, changing its alias and
// fields, and moves that alias's associations along with it. Returns
// types.ErrDuplicateAlias when the resulting alias belongs to another row
// and types.ErrNotFound when renameFrom matches nothing.
func (pt *ProfilesTable) Upsert(p types.Profile, renameFrom string) error {
	p.Alias = strings.TrimSpace(p.Alias)
	p.Host = strings.TrimSpace(p.Host)
	if err := p.Validate(); err != nil {
		return err
	}
	renameFrom = strings.TrimSpace(renameFrom)

	return pt.backend.write(func(tx *sql.Tx) error {
		if renameFrom == "" {
			err := insertProfile(tx, p)
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", types.ErrDuplicateAlias, p.Alias)
			}
			if err != nil {
				return fmt.Errorf("inserting profile %s: %w", p.Alias, err)
			}
			return nil
		}

		res, err := tx.Exec(
			"UPDATE ssh_connections SET alias = ?, host = ?, port = ?, username = ?, password = ? WHERE alias = ?",
			p.Alias, p.Host, p.Port, p.Username, p.Password, renameFrom,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", types.ErrDuplicateAlias, p.Alias)
		}
		if err != nil {
			return fmt.Errorf("updating profile %s: %w", renameFrom, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("updating profile %s: %w", renameFrom, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: profile %s", types.ErrNotFound, renameFrom)
		}
		if p.Alias == renameFrom {
			return nil
		}

		// Commands already targeting the new alias keep one association.
		if _, err := tx.Exec(
			"UPDATE OR IGNORE command_targets SET alias = ? WHERE alias = ?", p.Alias, renameFrom,
		); err != nil {
			return fmt.Errorf("renaming associations: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM command_targets WHERE alias = ?", renameFrom); err != nil {
			return fmt.Errorf("renaming associations: %w", err)
		}
		pt.backend.log.Debug().Str("from", renameFrom).Str("to", p.Alias).Msg("renamed profile")
		return nil
	})
}

// Delete removes the profile. Associations naming the alias are left in
// place and dangle until the alias is recreated or the commands change.
func (pt *ProfilesTable) Delete(alias string) error {
	return pt.backend.write(func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM ssh_connections WHERE alias = ?", alias)
		if err != nil {
			return fmt.Errorf("deleting profile %s: %w", alias, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("deleting profile %s: %w", alias, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: profile %s", types.ErrNotFound, alias)
		}
		return nil
	})
}

func insertProfile(q querier, p types.Profile) error {
	_, err := q.Exec(
		"INSERT INTO ssh_connections (alias, host, port, username, password) VALUES (?, ?, ?, ?, ?)",
		p.Alias, p.Host, p.Port, p.Username, p.Password,
	)
	return err
}

func listProfiles(q querier) ([]types.Profile, error) {
	rows, err := q.Query(selectProfile + " ORDER BY alias")
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	out := []types.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*types.Profile, error) {
	var p types.Profile
	var password sql.NullString
	err := row.Scan(&p.ID, &p.Alias, &p.Host, &p.Port, &p.Username, &password)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning profile: %w", err)
	}
	p.Password = password.String
	return &p, nil
}
