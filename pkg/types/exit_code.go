// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

const (
	// ExitEngineFailure is reported by `docker run` when the engine itself
	// failed before the container command started.
	ExitEngineFailure ExitCode = 125
	// ExitNotInvocable is reported when the container command exists but
	// cannot be executed.
	ExitNotInvocable ExitCode = 126
	// ExitNotFound is reported when the container command does not exist.
	ExitNotFound ExitCode = 127
)

type (
	// ExitCode is the status of one containerized job as observed on the host.
	// Values are in the POSIX range 0-255; zero means success.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside 0-255.
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is for programmatic detection.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if the ExitCode is outside the valid range (0-255).
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess reports whether the job exited cleanly.
func (c ExitCode) IsSuccess() bool { return c == 0 }

// IsEngineFailure reports whether the code was produced by the container
// engine rather than by the command running inside the container.
func (c ExitCode) IsEngineFailure() bool {
	return c == ExitEngineFailure || c == ExitNotInvocable || c == ExitNotFound
}

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }
