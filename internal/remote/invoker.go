// Package remote runs a command string on a remote host and returns what it
// printed. The SSH implementation talks to OpenSSH-compatible servers with
// password authentication.
package remote

import (
	"context"
	"time"

	"github.com/mesh-intelligence/cmdrelay/pkg/types"
)

// Request describes one remote invocation.
type Request struct {
	Host     string
	Port     int
	User     string
	Password string

	// Command is submitted verbatim to the remote shell.
	Command string

	// ConnectTimeout bounds dial plus handshake. ExecTimeout bounds the
	// remote command from submission to exit. Zero selects
	// types.DefaultConnectTimeout and types.DefaultExecTimeout.
	ConnectTimeout time.Duration
	ExecTimeout    time.Duration
}

func (r Request) timeouts() (connect, exec time.Duration) {
	connect, exec = r.ConnectTimeout, r.ExecTimeout
	if connect <= 0 {
		connect = types.DefaultConnectTimeout
	}
	if exec <= 0 {
		exec = types.DefaultExecTimeout
	}
	return connect, exec
}

// Output is what a completed invocation produced. ExitStatus is -1 when the
// server closed the channel without reporting one.
type Output struct {
	Stdout     string
	Stderr     string
	ExitStatus int
}

// Invoker executes commands on remote hosts. A non-nil error is always a
// *TransportError; a command that ran and exited non-zero is not an error.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Output, error)
}
