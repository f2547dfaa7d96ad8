package types

import (
	"slices"
	"strings"
	"time"
)

// DefaultAlias is the connection alias used for bootstrap data, for
// migrated legacy settings, and for commands that name no target.
const DefaultAlias = "Primary"

// Command is a named, pre-registered payload together with the aliases of
// the targets it runs on.
type Command struct {
	// ID is the store-assigned row identifier.
	ID int64 `json:"id"`

	// Name is unique across commands, trimmed and lower-cased.
	Name string `json:"name"`

	// Executable is the payload submitted to the remote shell. The store
	// treats it as opaque; it may hold a full command line.
	Executable string `json:"executable"`

	// Aliases lists the target connection aliases, ascending and without
	// duplicates. An alias may not resolve to an existing Profile.
	Aliases []string `json:"aliases"`

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeName trims and lower-cases a command name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeExecutable trims surrounding whitespace from a payload.
func NormalizeExecutable(executable string) string {
	return strings.TrimSpace(executable)
}

// NormalizeAliases trims each alias, drops empty entries, removes duplicates,
// and sorts the result ascending. Aliases are case-sensitive.
func NormalizeAliases(aliases []string) []string {
	out := make([]string, 0, len(aliases))
	for _, a := range aliases {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		out = append(out, a)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
