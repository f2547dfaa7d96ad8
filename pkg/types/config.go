package types

import (
	"errors"
	"time"
)

// Default remote-shell timeouts. Both must stay finite; they are the only
// bound on a hung target.
const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultExecTimeout    = 60 * time.Second
)

// Config holds the runtime settings shared by the store and the dispatcher.
type Config struct {
	// DataDir holds the commands.db file.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	ExecTimeout    time.Duration `json:"exec_timeout" yaml:"exec_timeout"`

	// KnownHostsPath enables host key verification when set. Empty accepts
	// any host key.
	KnownHostsPath string `json:"known_hosts" yaml:"known_hosts"`
}

// Config validation errors.
var (
	ErrDataDirEmpty          = errors.New("data directory must not be empty")
	ErrConnectTimeoutInvalid = errors.New("connect timeout must be positive")
	ErrExecTimeoutInvalid    = errors.New("exec timeout must be positive")
)

// Validate checks that the Config is usable.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return ErrDataDirEmpty
	}
	if c.ConnectTimeout <= 0 {
		return ErrConnectTimeoutInvalid
	}
	if c.ExecTimeout <= 0 {
		return ErrExecTimeoutInvalid
	}
	return nil
}
