package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cmdrelay/pkg/types"
)

func newCommandCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "command",
		Aliases: []string{"cmd"},
		Short:   "Manage stored commands",
	}
	cmd.AddCommand(newCommandAddCmd(a))
	cmd.AddCommand(newCommandListCmd(a))
	cmd.AddCommand(newCommandGetCmd(a))
	cmd.AddCommand(newCommandUpdateCmd(a))
	cmd.AddCommand(newCommandDeleteCmd(a))
	return cmd
}

func newCommandAddCmd(a *app) *cobra.Command {
	var targets []string
	cmd := &cobra.Command{
		Use:   "add <name> <executable>",
		Short: "Add a command",
		Long: `Add stores a command. The name is trimmed and lower-cased. Each
--target associates the command with a connection alias; the default is
Primary.

Example:
  cmdrelay command add music 'start "" "C:\Program Files\Audacity\Audacity.exe"'
  cmdrelay command add lights lights.exe --target Primary --target Garage`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.openStore()
			if err != nil {
				return err
			}
			defer backend.Close()

			c, err := backend.Commands().Add(args[0], args[1], targets)
			if err != nil {
				return storeError(err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), c)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s command %q (id %d)\n", okFmt("Added"), c.Name, c.ID)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&targets, "target", "t", []string{types.DefaultAlias}, "target alias (repeatable)")
	return cmd
}

func newCommandListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.openStore()
			if err != nil {
				return err
			}
			defer backend.Close()

			commands, err := backend.Commands().List()
			if err != nil {
				return storeError(err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), commands)
			}
			out := cmd.OutOrStdout()
			if len(commands) == 0 {
				fmt.Fprintln(out, "No commands found.")
				return nil
			}
			rows := make([][]string, len(commands))
			for i, c := range commands {
				rows[i] = []string{strconv.FormatInt(c.ID, 10), c.Name, strings.Join(c.Aliases, ","), c.Executable}
			}
			printTable(out, []string{"ID", "NAME", "TARGETS", "EXECUTABLE"}, rows)
			fmt.Fprintf(out, "Total: %d command(s)\n", len(commands))
			return nil
		},
	}
}

func newCommandGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show one command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.openStore()
			if err != nil {
				return err
			}
			defer backend.Close()

			c, err := backend.Commands().Get(strings.Join(args, " "))
			if err != nil {
				return storeError(err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), c)
			}
			printCommand(cmd, c)
			return nil
		},
	}
}

func newCommandUpdateCmd(a *app) *cobra.Command {
	var (
		name       string
		executable string
		targets    []string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a command by id",
		Long: `Update rewrites a command by id. Flags that are not given keep their
current value; --target replaces the whole association set.

Example:
  cmdrelay command update 3 --executable notepad++.exe
  cmdrelay command update 3 --target Backup`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return userError(fmt.Errorf("invalid id %q", args[0]))
			}
			backend, err := a.openStore()
			if err != nil {
				return err
			}
			defer backend.Close()

			current, err := backend.Commands().GetByID(id)
			if err != nil {
				return storeError(err)
			}
			if !cmd.Flags().Changed("name") {
				name = current.Name
			}
			if !cmd.Flags().Changed("executable") {
				executable = current.Executable
			}
			if !cmd.Flags().Changed("target") {
				targets = current.Aliases
			}

			c, err := backend.Commands().Update(id, name, executable, targets)
			if err != nil {
				return storeError(err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), c)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s command %q (id %d)\n", okFmt("Updated"), c.Name, c.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&executable, "executable", "", "new executable payload")
	cmd.Flags().StringSliceVarP(&targets, "target", "t", nil, "target alias (repeatable, replaces all)")
	return cmd
}

func newCommandDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a command and its target associations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return userError(fmt.Errorf("invalid id %q", args[0]))
			}
			backend, err := a.openStore()
			if err != nil {
				return err
			}
			defer backend.Close()

			if err := backend.Commands().Delete(id); err != nil {
				return storeError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s command %d\n", okFmt("Deleted"), id)
			return nil
		},
	}
}

func printCommand(cmd *cobra.Command, c *types.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:         %d\n", c.ID)
	fmt.Fprintf(out, "Name:       %s\n", c.Name)
	fmt.Fprintf(out, "Executable: %s\n", c.Executable)
	targets := strings.Join(c.Aliases, ", ")
	if targets == "" {
		targets = infoFmt("(none)")
	}
	fmt.Fprintf(out, "Targets:    %s\n", targets)
	if !c.CreatedAt.IsZero() {
		fmt.Fprintf(out, "Created:    %s\n", c.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}
