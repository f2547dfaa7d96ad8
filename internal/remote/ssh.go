package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHInvoker runs commands over SSH with password or keyboard-interactive
// authentication. The zero value accepts any host key.
type SSHInvoker struct {
	hostKeyCallback ssh.HostKeyCallback
}

// NewSSHInvoker returns an invoker that verifies host keys against the
// known_hosts file at knownHostsPath. An empty path accepts any host key.
func NewSSHInvoker(knownHostsPath string) (*SSHInvoker, error) {
	path := strings.TrimSpace(knownHostsPath)
	if path == "" {
		return &SSHInvoker{}, nil
	}
	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("loading known hosts %s: %w", path, err)
	}
	return &SSHInvoker{hostKeyCallback: callback}, nil
}

// Invoke dials req.Host, authenticates, runs req.Command, and closes the
// connection whatever the outcome.
func (s *SSHInvoker) Invoke(ctx context.Context, req Request) (Output, error) {
	connectTimeout, execTimeout := req.timeouts()
	addr := net.JoinHostPort(strings.TrimSpace(req.Host), strconv.Itoa(req.Port))

	client, err := s.dial(ctx, addr, req, connectTimeout)
	if err != nil {
		return Output{}, err
	}
	defer client.Close()

	return run(ctx, client, addr, req.Command, execTimeout)
}

func (s *SSHInvoker) dial(ctx context.Context, addr string, req Request, timeout time.Duration) (*ssh.Client, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, newTransportError(stageDial, addr, err)
	}

	// The handshake is not context aware; the deadline bounds it and
	// closing the conn aborts it on cancellation.
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		conn.Close()
		return nil, newTransportError(stageDial, addr, err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, s.clientConfig(req, timeout))
	if err != nil {
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, newTransportError(stageHandshake, addr, err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		clientConn.Close()
		return nil, newTransportError(stageHandshake, addr, err)
	}
	return ssh.NewClient(clientConn, chans, reqs), nil
}

func (s *SSHInvoker) clientConfig(req Request, timeout time.Duration) *ssh.ClientConfig {
	hostKeyCallback := s.hostKeyCallback
	if hostKeyCallback == nil {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	password := req.Password
	// Windows OpenSSH commonly offers keyboard-interactive with a single
	// password prompt.
	interactive := ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range answers {
			answers[i] = password
		}
		return answers, nil
	})

	return &ssh.ClientConfig{
		User:            req.User,
		Auth:            []ssh.AuthMethod{ssh.Password(password), interactive},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}
}

// run executes command in a new session. The exec timeout and ctx both
// abort the session by closing the client.
func run(ctx context.Context, client *ssh.Client, addr, command string, timeout time.Duration) (Output, error) {
	session, err := client.NewSession()
	if err != nil {
		return Output{}, newTransportError(stageExec, addr, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if err := session.Start(command); err != nil {
		return Output{}, newTransportError(stageExec, addr, err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err = <-done:
	case <-timer.C:
		client.Close()
		return Output{}, newTransportError(stageExec, addr, fmt.Errorf("%w after %s", ErrExecTimeout, timeout))
	case <-ctx.Done():
		client.Close()
		return Output{}, newTransportError(stageExec, addr, ctx.Err())
	}

	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *ssh.ExitError
	var missingErr *ssh.ExitMissingError
	switch {
	case err == nil:
		return out, nil
	case errors.As(err, &exitErr):
		out.ExitStatus = exitErr.ExitStatus()
		return out, nil
	case errors.As(err, &missingErr):
		out.ExitStatus = -1
		return out, nil
	default:
		return Output{}, newTransportError(stageExec, addr, err)
	}
}
