package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"golang.org/x/crypto/ssh/knownhosts"
)

// Category classifies a transport failure.
type Category string

// Transport failure categories. The values are the user-facing messages.
const (
	CategoryAuth        Category = "authentication failed"
	CategoryRefused     Category = "connection refused"
	CategoryTimeout     Category = "timed out"
	CategoryUnreachable Category = "host unreachable"
	CategoryHandshake   Category = "handshake failed"
	CategoryOther       Category = "transport error"
)

// TransportError is a failure to reach, authenticate to, or hear back from
// a remote host.
type TransportError struct {
	Category Category
	Addr     string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Category, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrExecTimeout reports that the remote command outlived its exec timeout.
var ErrExecTimeout = errors.New("remote command did not finish in time")

// stage is the point of the invocation at which an error occurred.
type stage int

const (
	stageDial stage = iota
	stageHandshake
	stageExec
)

func newTransportError(s stage, addr string, err error) *TransportError {
	return &TransportError{Category: categorize(s, err), Addr: addr, Err: err}
}

func categorize(s stage, err error) Category {
	var netErr net.Error
	var dnsErr *net.DNSError
	var keyErr *knownhosts.KeyError

	switch {
	case errors.Is(err, ErrExecTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return CategoryTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return CategoryRefused
	case errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH),
		errors.As(err, &dnsErr):
		return CategoryUnreachable
	case strings.Contains(err.Error(), "unable to authenticate"):
		return CategoryAuth
	case errors.As(err, &keyErr), s == stageHandshake:
		return CategoryHandshake
	default:
		return CategoryOther
	}
}
