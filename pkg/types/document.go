package types

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultDocumentFile is the file name used when exporting without an
// explicit path.
const DefaultDocumentFile = "commands_backup.json"

// Document is the export/import representation of the whole store.
type Document struct {
	Commands []DocumentCommand `json:"commands" yaml:"commands"`
	Profiles []DocumentProfile `json:"ssh_connections" yaml:"ssh_connections"`
}

// DocumentCommand is one exported command. Older documents carry a single
// Alias string; current documents carry Aliases.
type DocumentCommand struct {
	Name       string   `json:"name" yaml:"name"`
	Executable string   `json:"executable" yaml:"executable"`
	Aliases    []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Alias      string   `json:"alias,omitempty" yaml:"alias,omitempty"`
}

// TargetAliases merges both historical shapes into one normalized list.
// A command naming no alias at all targets DefaultAlias.
func (c DocumentCommand) TargetAliases() []string {
	all := append([]string{}, c.Aliases...)
	if c.Alias != "" {
		all = append(all, c.Alias)
	}
	out := NormalizeAliases(all)
	if len(out) == 0 {
		return []string{DefaultAlias}
	}
	return out
}

// DocumentProfile is one exported connection profile.
type DocumentProfile struct {
	Alias    string `json:"alias" yaml:"alias"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// Profile converts the record into a Profile, defaulting a missing port.
func (p DocumentProfile) Profile() Profile {
	port := p.Port
	if port == 0 {
		port = DefaultPort
	}
	return Profile{
		Alias:    strings.TrimSpace(p.Alias),
		Host:     strings.TrimSpace(p.Host),
		Port:     port,
		Username: p.Username,
		Password: p.Password,
	}
}

// ImportMode selects how Import treats existing data.
type ImportMode string

// Import modes.
const (
	// ImportMerge updates commands matched by name, inserts new ones, and
	// upserts profiles by alias.
	ImportMerge ImportMode = "merge"

	// ImportReplace deletes all commands, profiles, and associations first.
	ImportReplace ImportMode = "replace"
)

// ParseImportMode returns the mode named by s. Empty means merge.
func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ImportMerge:
		return ImportMerge, nil
	case ImportReplace:
		return ImportReplace, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidImportMode, s)
	}
}

// Format is a document encoding.
type Format string

// Supported document formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat returns the format named by s. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
}

// FormatFromPath picks a format from the file extension, JSON by default.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// EncodeDocument writes doc to w in the given format.
func EncodeDocument(w io.Writer, doc Document, format Format) error {
	if doc.Commands == nil {
		doc.Commands = []DocumentCommand{}
	}
	if doc.Profiles == nil {
		doc.Profiles = []DocumentProfile{}
	}
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
}

// DecodeDocument reads a document from r in the given format.
func DecodeDocument(r io.Reader, format Format) (Document, error) {
	var doc Document
	switch format {
	case FormatJSON, "":
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("decoding json document: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("decoding yaml document: %w", err)
		}
	default:
		return Document{}, fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
	return doc, nil
}
