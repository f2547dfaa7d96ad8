// Package cli implements the cmdrelay command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cmdrelay/internal/remote"
	"github.com/mesh-intelligence/cmdrelay/internal/sqlite"
	"github.com/mesh-intelligence/cmdrelay/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

// app is the state shared by the subcommands of one invocation.
type app struct {
	flags    rootFlags
	settings settings
	log      zerolog.Logger

	// newInvoker builds the remote-shell capability. Tests replace it.
	newInvoker func(knownHostsPath string) (remote.Invoker, error)
}

func defaultInvoker(knownHostsPath string) (remote.Invoker, error) {
	return remote.NewSSHInvoker(knownHostsPath)
}

// NewRootCmd creates the top-level "cmdrelay" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{newInvoker: defaultInvoker, log: zerolog.Nop()})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "cmdrelay",
		Short: "Run named commands on remote machines over SSH",
		Long: "cmdrelay stores named commands and SSH connection profiles, and runs a\n" +
			"command's payload on every target it is associated with.",
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newRunCmd(a))
	root.AddCommand(newExecCmd(a))
	root.AddCommand(newCommandCmd(a))
	root.AddCommand(newProfileCmd(a))
	root.AddCommand(newExportCmd(a))
	root.AddCommand(newImportCmd(a))

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(os.Stderr, err))
}

// exitError carries a process exit code. A nil err exits silently, for
// failures already reported on stdout.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func userError(err error) error { return &exitError{code: exitUserError, err: err} }

func sysError(err error) error { return &exitError{code: exitSysError, err: err} }

// storeError maps store failures to exit codes: typed conditions the user
// can fix are user errors, everything else is a system error.
func storeError(err error) error {
	switch {
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrDuplicateName),
		errors.Is(err, types.ErrDuplicateAlias),
		errors.Is(err, types.ErrInvalidName),
		errors.Is(err, types.ErrInvalidExecutable),
		errors.Is(err, types.ErrInvalidProfile),
		errors.Is(err, types.ErrInvalidImportMode),
		errors.Is(err, types.ErrInvalidFormat):
		return userError(err)
	default:
		return sysError(err)
	}
}

// exitCode prints err to w when it has a message and returns the code to
// exit with.
func exitCode(w io.Writer, err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(w, "Error:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(w, "Error:", err)
	return exitUserError
}

// openStore opens the store in the resolved data directory. The caller must
// Close it.
func (a *app) openStore() (*sqlite.Backend, error) {
	backend, err := sqlite.OpenConfig(a.settings.config, sqlite.Options{Logger: &a.log})
	if err != nil {
		return nil, sysError(fmt.Errorf("open store: %w", err))
	}
	return backend, nil
}
