package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cmdrelay/pkg/types"
)

func newExportCmd(a *app) *cobra.Command {
	var file, format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export commands and profiles to a file",
		Long: `Export writes every command and connection profile to a JSON or YAML
document. Use --file - to write to stdout. The format follows the file
extension unless --format is given.

Example:
  cmdrelay export
  cmdrelay export --file backup.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := documentFormat(file, format)
			if err != nil {
				return userError(err)
			}
			backend, err := a.openStore()
			if err != nil {
				return err
			}
			defer backend.Close()

			doc, err := backend.Export()
			if err != nil {
				return storeError(err)
			}

			if file == "-" {
				if err := types.EncodeDocument(cmd.OutOrStdout(), doc, f); err != nil {
					return sysError(err)
				}
				return nil
			}
			if err := writeDocument(file, doc, f); err != nil {
				return sysError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d command(s) and %d profile(s) to %s\n",
				okFmt("Exported"), len(doc.Commands), len(doc.Profiles), file)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", types.DefaultDocumentFile, "output file, or - for stdout")
	cmd.Flags().StringVar(&format, "format", "", "json or yaml (default: from file extension)")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var file, format, mode string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import commands and profiles from a file",
		Long: `Import reads a document written by export. Merge mode updates commands
with the same name and upserts profiles by alias; replace mode deletes
everything first. An invalid record aborts the import with no changes.

Example:
  cmdrelay import --file commands_backup.json
  cmdrelay import --file backup.yaml --mode replace`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := types.ParseImportMode(mode)
			if err != nil {
				return userError(err)
			}
			f, err := documentFormat(file, format)
			if err != nil {
				return userError(err)
			}

			in, err := os.Open(file)
			if err != nil {
				return userError(fmt.Errorf("open %s: %w", file, err))
			}
			defer in.Close()
			doc, err := types.DecodeDocument(in, f)
			if err != nil {
				return userError(err)
			}

			backend, err := a.openStore()
			if err != nil {
				return err
			}
			defer backend.Close()

			summary, err := backend.Import(doc, m)
			if err != nil {
				return storeError(err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"mode":     m,
					"commands": summary.Commands,
					"profiles": summary.Profiles,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d command(s) and %d profile(s) (%s)\n",
				okFmt("Imported"), summary.Commands, summary.Profiles, m)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", types.DefaultDocumentFile, "input file")
	cmd.Flags().StringVar(&format, "format", "", "json or yaml (default: from file extension)")
	cmd.Flags().StringVar(&mode, "mode", string(types.ImportMerge), "merge or replace")
	return cmd
}

func documentFormat(file, format string) (types.Format, error) {
	if format != "" {
		return types.ParseFormat(format)
	}
	return types.FormatFromPath(file), nil
}

func writeDocument(path string, doc types.Document, format types.Format) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := types.EncodeDocument(out, doc, format); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
