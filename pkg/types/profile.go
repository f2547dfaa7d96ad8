package types

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is the SSH port assumed when a legacy record omits one.
const DefaultPort = 22

// Profile holds the connection details for one remote target. The password
// is stored in plaintext.
type Profile struct {
	// ID is the store-assigned row identifier.
	ID int64 `json:"id"`

	// Alias is the unique, case-sensitive short name of the target.
	Alias    string `json:"alias"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`

	// Password may be empty.
	Password string `json:"password"`
}

// Validate reports ErrInvalidProfile when the alias or host is blank or the
// port is outside 1..65535.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Alias) == "" {
		return fmt.Errorf("%w: alias must not be empty", ErrInvalidProfile)
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidProfile)
	}
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidProfile, p.Port)
	}
	return nil
}

// Address returns host:port suitable for dialing.
func (p Profile) Address() string {
	return net.JoinHostPort(strings.TrimSpace(p.Host), strconv.Itoa(p.Port))
}
