package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cmdrelay/internal/paths"
	"github.com/mesh-intelligence/cmdrelay/internal/sqlite"
)

// initResult is the --json form of init's output.
type initResult struct {
	ConfigFile string `json:"config_file"`
	Database   string `json:"database"`
	Detected   string `json:"detected_generation"`
	Current    string `json:"current_generation"`
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and the command store",
		Long: "Create the configuration and data directories, then open the store,\n" +
			"upgrading an older database in place and seeding defaults into empty tables.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.openStore()
			if err != nil {
				return err
			}
			detected := backend.Generation()
			if err := backend.Close(); err != nil {
				return sysError(fmt.Errorf("close store: %w", err))
			}

			res := initResult{
				ConfigFile: filepath.Join(a.settings.configDir, paths.ConfigFileName),
				Database:   filepath.Join(a.settings.config.DataDir, sqlite.DatabaseFile),
				Detected:   detected.String(),
				Current:    sqlite.CurrentGeneration.String(),
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), res)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config:   %s\n", res.ConfigFile)
			fmt.Fprintf(out, "database: %s\n", res.Database)
			if detected == sqlite.CurrentGeneration || detected == sqlite.GenerationNone {
				fmt.Fprintf(out, "schema:   %s\n", res.Current)
			} else {
				fmt.Fprintf(out, "schema:   upgraded %s -> %s\n", res.Detected, res.Current)
			}
			fmt.Fprintln(out, okFmt("cmdrelay initialized successfully"))
			return nil
		},
	}
}
