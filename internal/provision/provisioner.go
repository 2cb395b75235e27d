// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/sthagen/pantsbuild-pex/internal/identity"
)

const (
	// ModeBuild builds an absent image from its Dockerfile.
	ModeBuild Mode = "build"
	// ModePull pulls an absent image from its registry.
	ModePull Mode = "pull"
	// ModeNone requires the image to be present already.
	ModeNone Mode = "none"

	// OutcomePresent means the image was already in the local store.
	OutcomePresent Outcome = "present"
	// OutcomeBuilt means the image was built locally.
	OutcomeBuilt Outcome = "built"
	// OutcomePulled means the image was pulled from its registry.
	OutcomePulled Outcome = "pulled"
)

var (
	// ErrImageMissing is returned in ModeNone when the image is absent.
	ErrImageMissing = errors.New("image is not present locally and provisioning is disabled")

	// ErrBuild is the sentinel error wrapped by BuildError.
	ErrBuild = errors.New("image build failed")

	// ErrPull is the sentinel error wrapped by PullError.
	ErrPull = errors.New("image pull failed")

	// ErrInvalidMode is the sentinel error wrapped by InvalidModeError.
	ErrInvalidMode = errors.New("invalid provisioning mode")
)

type (
	// Mode selects how an absent image is obtained.
	Mode string

	// Outcome reports what Ensure had to do.
	Outcome string

	// BuildSpec describes how to build an image locally.
	BuildSpec struct {
		ContextDir string
		Dockerfile string
		BuildArgs  map[string]string
	}

	// Provisioner makes images available in the local engine store.
	Provisioner interface {
		// Ensure makes ref available locally according to mode.
		Ensure(ctx context.Context, ref identity.ImageRef, mode Mode, spec BuildSpec) (Outcome, error)
	}

	// BuildError reports a failed local build. Err carries the engine diagnostic.
	BuildError struct {
		Ref identity.ImageRef
		Err error
	}

	// PullError reports a failed pull. Pull mode never falls back to a build.
	PullError struct {
		Ref identity.ImageRef
		Err error
	}

	// InvalidModeError is returned when a Mode is not recognized.
	InvalidModeError struct {
		Value Mode
	}
)

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s: %v", e.Ref, e.Err)
}

// Unwrap exposes both ErrBuild and the engine error.
func (e *BuildError) Unwrap() []error { return []error{ErrBuild, e.Err} }

// Error implements the error interface.
func (e *PullError) Error() string {
	return fmt.Sprintf("pull %s: %v", e.Ref, e.Err)
}

// Unwrap exposes both ErrPull and the engine error.
func (e *PullError) Unwrap() []error { return []error{ErrPull, e.Err} }

// Error implements the error interface.
func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid provisioning mode %q (valid: build, pull, none)", e.Value)
}

// Unwrap returns ErrInvalidMode for errors.Is() compatibility.
func (e *InvalidModeError) Unwrap() error { return ErrInvalidMode }

// Validate returns an error if the Mode is not one of the defined modes.
func (m Mode) Validate() error {
	switch m {
	case ModeBuild, ModePull, ModeNone:
		return nil
	default:
		return &InvalidModeError{Value: m}
	}
}

// String returns the string representation of the Mode.
func (m Mode) String() string { return string(m) }
