// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultPort is the port the server binds when the platform does not set PORT.
const DefaultPort Port = 10000

// ErrInvalidPort is the sentinel error wrapped by InvalidPortError.
var ErrInvalidPort = errors.New("invalid port")

type (
	// Port is a TCP port the production server binds to.
	// Unlike an ephemeral listener, zero is not allowed: the hosting
	// platform routes traffic to a fixed, known port.
	Port int

	// InvalidPortError is returned when a Port is outside 1-65535 or when a
	// textual port cannot be parsed.
	InvalidPortError struct {
		Raw   string
		Value Port
	}
)

// ParsePort parses the decimal representation of a port.
// Surrounding whitespace is ignored; anything else non-numeric is rejected.
func ParsePort(s string) (Port, error) {
	trimmed := strings.TrimSpace(s)
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, &InvalidPortError{Raw: s}
	}
	p := Port(n)
	if err := p.Validate(); err != nil {
		return 0, &InvalidPortError{Raw: s, Value: p}
	}
	return p, nil
}

// String returns the decimal string representation of the Port.
func (p Port) String() string { return strconv.Itoa(int(p)) }

// Validate returns an error if the Port is outside the range 1-65535.
func (p Port) Validate() error {
	if p < 1 || p > 65535 {
		return &InvalidPortError{Raw: p.String(), Value: p}
	}
	return nil
}

// Error implements the error interface for InvalidPortError.
func (e *InvalidPortError) Error() string {
	return fmt.Sprintf("invalid port %q: must be an integer in 1-65535", e.Raw)
}

// Unwrap returns ErrInvalidPort for errors.Is() compatibility.
func (e *InvalidPortError) Unwrap() error { return ErrInvalidPort }
