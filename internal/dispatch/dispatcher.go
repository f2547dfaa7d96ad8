// Package dispatch resolves a command to its targets, runs the payload on
// every target concurrently, and folds the per-target outcomes into one
// report.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/mesh-intelligence/cmdrelay/internal/remote"
	"github.com/mesh-intelligence/cmdrelay/pkg/types"
)

// CommandResolver looks up a command by name. A miss returns an error
// wrapping types.ErrNotFound.
type CommandResolver interface {
	Get(name string) (*types.Command, error)
}

// ProfileResolver looks up a connection profile by alias. A miss returns an
// error wrapping types.ErrNotFound.
type ProfileResolver interface {
	Get(alias string) (*types.Profile, error)
}

// Dispatcher runs commands on their targets.
type Dispatcher struct {
	commands CommandResolver
	profiles ProfileResolver
	invoker  remote.Invoker

	connectTimeout time.Duration
	execTimeout    time.Duration
	log            zerolog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeouts sets the per-target connect and exec timeouts. Non-positive
// values keep the defaults.
func WithTimeouts(connect, exec time.Duration) Option {
	return func(d *Dispatcher) {
		if connect > 0 {
			d.connectTimeout = connect
		}
		if exec > 0 {
			d.execTimeout = exec
		}
	}
}

// WithLogger sets the logger for dispatch events.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.log = log.With().Str("component", "dispatch").Logger()
	}
}

// New returns a Dispatcher reading from commands and profiles and reaching
// targets through invoker.
func New(commands CommandResolver, profiles ProfileResolver, invoker remote.Invoker, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		commands:       commands,
		profiles:       profiles,
		invoker:        invoker,
		connectTimeout: types.DefaultConnectTimeout,
		execTimeout:    types.DefaultExecTimeout,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ExecuteName dispatches the stored command called name. An unknown name
// yields an OutcomeCommandNotFound report without any remote call. The
// error is non-nil only when the command lookup itself failed.
func (d *Dispatcher) ExecuteName(ctx context.Context, name string) (*types.Report, error) {
	normalized := types.NormalizeName(name)
	cmd, err := d.commands.Get(normalized)
	if errors.Is(err, types.ErrNotFound) {
		report := &types.Report{
			RunID:          newRunID(),
			Name:           normalized,
			Outcome:        types.OutcomeCommandNotFound,
			Targets:        []types.TargetResult{},
			OverallFailure: true,
		}
		d.log.Info().Str("run_id", report.RunID).Str("name", normalized).Msg("command not recognized")
		return report, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving command %q: %w", normalized, err)
	}

	report := d.dispatch(ctx, cmd.Executable, cmd.Aliases)
	report.Name = cmd.Name
	return report, nil
}

// ExecuteDirect dispatches executable to aliases without a stored command.
// Aliases are normalized, so the report order is lexicographic.
func (d *Dispatcher) ExecuteDirect(ctx context.Context, executable string, aliases []string) *types.Report {
	return d.dispatch(ctx, types.NormalizeExecutable(executable), aliases)
}

func (d *Dispatcher) dispatch(ctx context.Context, executable string, aliases []string) *types.Report {
	report := &types.Report{
		RunID:      newRunID(),
		Executable: executable,
		Outcome:    types.OutcomeDispatched,
	}
	log := d.log.With().Str("run_id", report.RunID).Logger()

	aliases = types.NormalizeAliases(aliases)
	if len(aliases) == 0 {
		report.Outcome = types.OutcomeNoTargets
		report.Targets = []types.TargetResult{}
		report.OverallFailure = true
		log.Warn().Msg("no targets configured")
		return report
	}

	// Each goroutine owns one slot, so the report order is the alias order
	// whatever the completion order.
	results := make([]types.TargetResult, len(aliases))
	var wg conc.WaitGroup
	for i, alias := range aliases {
		wg.Go(func() {
			results[i] = d.runTarget(ctx, log.With().Str("alias", alias).Logger(), alias, executable)
		})
	}
	wg.Wait()

	report.Targets = results
	for _, r := range results {
		if !r.Success {
			report.OverallFailure = true
			break
		}
	}
	log.Info().Int("targets", len(results)).Bool("failed", report.OverallFailure).Msg("dispatch finished")
	return report
}

func (d *Dispatcher) runTarget(ctx context.Context, log zerolog.Logger, alias, executable string) types.TargetResult {
	result := types.TargetResult{Alias: alias}

	profile, err := d.profiles.Get(alias)
	if errors.Is(err, types.ErrNotFound) {
		result.Kind = types.ResultTargetNotConfigured
		result.Output = fmt.Sprintf("Error: no connection profile for alias %q", alias)
		log.Info().Str("kind", string(result.Kind)).Msg("target outcome")
		return result
	}
	if err != nil {
		result.Kind = types.ResultLookupFailed
		result.Output = fmt.Sprintf("Error: looking up connection profile %q: %v", alias, err)
		log.Info().Err(err).Str("kind", string(result.Kind)).Msg("target outcome")
		return result
	}

	log.Debug().Str("addr", profile.Address()).Msg("invoking target")
	out, err := d.invoker.Invoke(ctx, remote.Request{
		Host:           profile.Host,
		Port:           profile.Port,
		User:           profile.Username,
		Password:       profile.Password,
		Command:        executable,
		ConnectTimeout: d.connectTimeout,
		ExecTimeout:    d.execTimeout,
	})
	if err != nil {
		result.Kind = types.ResultTransportError
		result.Output = "Error: " + err.Error()
		log.Info().Err(err).Str("kind", string(result.Kind)).Msg("target outcome")
		return result
	}

	result.ExitStatus = out.ExitStatus
	result.Output = combineOutput(out)
	if marker, ok := MatchFailureMarker(out.Stdout + "\n" + out.Stderr); ok {
		result.Kind = types.ResultRemoteFailure
		result.Marker = marker
	} else {
		result.Kind = types.ResultSucceeded
		result.Success = true
	}
	log.Info().Str("kind", string(result.Kind)).Int("exit_status", out.ExitStatus).Msg("target outcome")
	return result
}

// combineOutput joins the trimmed stdout and stderr text.
func combineOutput(out remote.Output) string {
	stdout := strings.TrimSpace(out.Stdout)
	stderr := strings.TrimSpace(out.Stderr)
	switch {
	case stdout == "":
		return stderr
	case stderr == "":
		return stdout
	default:
		return stdout + "\n" + stderr
	}
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
