package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cmdrelay/internal/dispatch"
	"github.com/mesh-intelligence/cmdrelay/internal/sqlite"
	"github.com/mesh-intelligence/cmdrelay/pkg/types"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <name>",
		Short: "Run a stored command on all of its targets",
		Long: `Run looks up the named command and executes its payload on every
associated target concurrently. Words are joined with single spaces, so
spoken phrases need no quoting.

Exit status is 1 when any target failed or the command is unknown.

Example:
  cmdrelay run music
  cmdrelay run open notes --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, d, err := a.dispatcher()
			if err != nil {
				return err
			}
			defer backend.Close()

			report, err := d.ExecuteName(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return storeError(err)
			}
			return a.printReport(cmd.OutOrStdout(), report)
		},
	}
}

func newExecCmd(a *app) *cobra.Command {
	var targets []string
	cmd := &cobra.Command{
		Use:   "exec [--target alias]... -- <payload>",
		Short: "Run a payload directly on the given targets",
		Long: `Exec runs a payload that is not stored as a command. Each --target
names a connection profile; the default is Primary.

Example:
  cmdrelay exec -- ipconfig.exe
  cmdrelay exec --target Primary --target Backup -- dir /s`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, d, err := a.dispatcher()
			if err != nil {
				return err
			}
			defer backend.Close()

			report := d.ExecuteDirect(cmd.Context(), strings.Join(args, " "), targets)
			return a.printReport(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringSliceVarP(&targets, "target", "t", []string{types.DefaultAlias}, "target alias (repeatable)")
	return cmd
}

// dispatcher opens the store and wires a Dispatcher to it. The caller must
// Close the backend.
func (a *app) dispatcher() (*sqlite.Backend, *dispatch.Dispatcher, error) {
	invoker, err := a.newInvoker(a.settings.config.KnownHostsPath)
	if err != nil {
		return nil, nil, userError(err)
	}
	backend, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}
	d := dispatch.New(backend.Commands(), backend.Profiles(), invoker,
		dispatch.WithTimeouts(a.settings.config.ConnectTimeout, a.settings.config.ExecTimeout),
		dispatch.WithLogger(a.log),
	)
	return backend, d, nil
}

// printReport writes the report and turns overall failure into exit
// status 1.
func (a *app) printReport(w io.Writer, report *types.Report) error {
	if a.flags.jsonMode {
		if err := printJSON(w, report); err != nil {
			return err
		}
	} else {
		if text := report.Render(); text != "" {
			fmt.Fprintln(w, text)
		}
		if len(report.Targets) > 1 {
			for _, t := range report.Targets {
				status := okFmt("ok")
				if !t.Success {
					status = errFmt(string(t.Kind))
				}
				fmt.Fprintf(w, "%s %s\n", dimFmt("["+t.Alias+"]"), status)
			}
		}
		if report.Failed() {
			fmt.Fprintln(w, errFmt("A problem occurred"))
		} else {
			fmt.Fprintln(w, okFmt("Command succeeded"))
		}
	}
	if report.Failed() {
		return &exitError{code: exitUserError}
	}
	return nil
}
