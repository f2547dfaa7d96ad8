package sqlite

import (
	"fmt"

	"github.com/mesh-intelligence/cmdrelay/pkg/types"
)

// defaultCommand is a command seeded on first startup.
type defaultCommand struct {
	name       string
	executable string
}

// defaultCommands are inserted when the commands table is empty. Each
// targets types.DefaultAlias.
var defaultCommands = []defaultCommand{
	{"notes", "notepad.exe"},
	{"network", "ipconfig.exe"},
	{"music", `C:\Program Files\Audacity\Audacity.exe`},
	{"text", `C:\Program Files\Microsoft Office\root\Office16\WINWORD.EXE`},
	{"explorer", "explorer.exe"},
}

// defaultProfile holds placeholder connection details inserted when the
// ssh_connections table is empty.
var defaultProfile = types.Profile{
	Alias:    types.DefaultAlias,
	Host:     "192.168.0.8",
	Port:     types.DefaultPort,
	Username: "user",
	Password: "",
}

// seedDefaultCommands populates an empty commands table.
func seedDefaultCommands(q querier) (bool, error) {
	var count int
	if err := q.QueryRow("SELECT COUNT(*) FROM commands").Scan(&count); err != nil {
		return false, fmt.Errorf("counting commands: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	for _, dc := range defaultCommands {
		res, err := q.Exec(
			"INSERT INTO commands (name, executable, created_at) VALUES (?, ?, ?)",
			dc.name, dc.executable, nowTimestamp(),
		)
		if err != nil {
			return false, fmt.Errorf("seeding command %s: %w", dc.name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return false, fmt.Errorf("seeding command %s: %w", dc.name, err)
		}
		if err := insertTargets(q, id, []string{types.DefaultAlias}); err != nil {
			return false, fmt.Errorf("seeding targets for %s: %w", dc.name, err)
		}
	}
	return true, nil
}

// seedDefaultProfile populates an empty ssh_connections table.
func seedDefaultProfile(q querier) (bool, error) {
	var count int
	if err := q.QueryRow("SELECT COUNT(*) FROM ssh_connections").Scan(&count); err != nil {
		return false, fmt.Errorf("counting connections: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if err := insertProfile(q, defaultProfile); err != nil {
		return false, fmt.Errorf("seeding profile %s: %w", defaultProfile.Alias, err)
	}
	return true, nil
}
