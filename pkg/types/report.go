package types

import "strings"

// Outcome describes how far a dispatch got before producing its report.
type Outcome string

// Dispatch outcomes.
const (
	// OutcomeDispatched means the payload was fanned out to every resolved
	// alias; per-target results carry the detail.
	OutcomeDispatched Outcome = "dispatched"

	// OutcomeCommandNotFound means the requested name matched no command.
	// No remote calls were made.
	OutcomeCommandNotFound Outcome = "command_not_found"

	// OutcomeNoTargets means the command resolved to an empty alias set.
	OutcomeNoTargets Outcome = "no_targets"
)

// ResultKind classifies one per-target outcome.
type ResultKind string

// Per-target result kinds.
const (
	ResultSucceeded           ResultKind = "succeeded"
	ResultTargetNotConfigured ResultKind = "target_not_configured"
	ResultTransportError      ResultKind = "transport_error"
	ResultRemoteFailure       ResultKind = "remote_failure"
	ResultLookupFailed        ResultKind = "lookup_failed"
)

// TargetResult is the record produced for one alias of a dispatch.
type TargetResult struct {
	Alias string `json:"alias"`

	// Output is the combined stdout and stderr text, or a human-readable
	// message when no remote output exists.
	Output string `json:"output"`

	Success bool       `json:"success"`
	Kind    ResultKind `json:"kind"`

	// Marker is the failure marker that matched, for ResultRemoteFailure.
	Marker string `json:"marker,omitempty"`

	// ExitStatus is the remote exit status when the remote command ran.
	// It is informational and does not affect Success.
	ExitStatus int `json:"exit_status"`
}

// Report is the aggregated, ordered outcome of one dispatch.
type Report struct {
	RunID      string         `json:"run_id"`
	Name       string         `json:"name,omitempty"`
	Executable string         `json:"executable,omitempty"`
	Outcome    Outcome        `json:"outcome"`
	Targets    []TargetResult `json:"targets"`

	// OverallFailure is true when any target failed, or when the dispatch
	// never reached the fan-out stage.
	OverallFailure bool `json:"overall_failure"`
}

// Failed reports the single binary signal consumed by success/problem
// announcements.
func (r *Report) Failed() bool {
	return r.OverallFailure
}

// Render returns the report text for display. With one target the output is
// returned as is; with several, each block is headed by its alias in report
// order.
func (r *Report) Render() string {
	switch r.Outcome {
	case OutcomeCommandNotFound:
		return "Error: command not recognized: \"" + r.Name + "\""
	case OutcomeNoTargets:
		return "Error: no targets configured for this command"
	}
	if len(r.Targets) == 1 {
		return r.Targets[0].Output
	}
	var b strings.Builder
	for i, t := range r.Targets {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[")
		b.WriteString(t.Alias)
		b.WriteString("]\n")
		b.WriteString(t.Output)
	}
	return b.String()
}
