// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/sthagen/pantsbuild-pex/internal/identity"
)

const (
	// KindNamed mounts a named engine volume that outlives the container.
	KindNamed Kind = "named"
	// KindBind mounts a host path.
	KindBind Kind = "bind"
	// KindAnonymous mounts a fresh volume discarded with the container.
	KindAnonymous Kind = "anonymous"
)

// ErrInvalidBinding is the sentinel error wrapped by InvalidBindingError.
var ErrInvalidBinding = errors.New("invalid volume binding")

type (
	// Kind is the lifetime class of a VolumeBinding.
	Kind string

	// VolumeBinding mounts Source at Target inside the job container.
	// Source is a volume name for KindNamed, a host path for KindBind, and
	// unused for KindAnonymous.
	VolumeBinding struct {
		Source   string
		Target   string
		Kind     Kind
		ReadOnly bool
	}

	// InvalidBindingError is returned when a VolumeBinding is malformed.
	InvalidBindingError struct {
		Value  VolumeBinding
		Reason string
	}

	// Job is one containerized command.
	Job struct {
		// Name identifies the job in container names and logs.
		Name string
		// Image is the image the job runs on.
		Image identity.ImageRef
		// Volumes are mounted in order.
		Volumes []VolumeBinding
		// ForwardEnv names host variables passed through when set.
		ForwardEnv []string
		// Env holds additional variables set verbatim.
		Env map[string]string
		// WorkDir is the working directory inside the container.
		WorkDir string
		// Args is the command line run by the image entrypoint.
		Args []string
	}
)

// Error implements the error interface.
func (e *InvalidBindingError) Error() string {
	return fmt.Sprintf("invalid volume binding %s -> %s: %s", e.Value.Source, e.Value.Target, e.Reason)
}

// Unwrap returns ErrInvalidBinding for errors.Is() compatibility.
func (e *InvalidBindingError) Unwrap() error { return ErrInvalidBinding }

// Validate checks that the binding can be expressed as an engine mount.
func (b VolumeBinding) Validate() error {
	if !path.IsAbs(b.Target) {
		return &InvalidBindingError{Value: b, Reason: "target must be an absolute container path"}
	}
	switch b.Kind {
	case KindNamed:
		if b.Source == "" || strings.ContainsAny(b.Source, "/:") {
			return &InvalidBindingError{Value: b, Reason: "named volume needs a plain name"}
		}
	case KindBind:
		if !strings.HasPrefix(b.Source, "/") {
			return &InvalidBindingError{Value: b, Reason: "bind source must be an absolute host path"}
		}
	case KindAnonymous:
	default:
		return &InvalidBindingError{Value: b, Reason: fmt.Sprintf("unknown kind %q", b.Kind)}
	}
	return nil
}

// Spec renders the binding in engine -v syntax.
func (b VolumeBinding) Spec() string {
	if b.Kind == KindAnonymous {
		return b.Target
	}
	spec := b.Source + ":" + b.Target
	if b.ReadOnly {
		spec += ":ro"
	}
	return spec
}

// Named returns a KindNamed binding.
func Named(name, target string) VolumeBinding {
	return VolumeBinding{Source: name, Target: target, Kind: KindNamed}
}

// Bind returns a KindBind binding.
func Bind(hostPath, target string) VolumeBinding {
	return VolumeBinding{Source: hostPath, Target: target, Kind: KindBind}
}

// Anonymous returns a KindAnonymous binding.
func Anonymous(target string) VolumeBinding {
	return VolumeBinding{Target: target, Kind: KindAnonymous}
}
