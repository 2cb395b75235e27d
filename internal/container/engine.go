// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sthagen/pantsbuild-pex/pkg/types"
)

const (
	// EngineTypeDocker selects the Docker CLI.
	EngineTypeDocker EngineType = "docker"
	// EngineTypePodman selects the Podman CLI.
	EngineTypePodman EngineType = "podman"
	// EngineTypeAuto selects whichever engine answers first.
	EngineTypeAuto EngineType = "auto"
)

var (
	// ErrNoEngineAvailable is the sentinel error wrapped by EngineNotAvailableError.
	ErrNoEngineAvailable = errors.New("no container engine available")

	// ErrVolumeNotFound is returned by VolumeInspect for an absent volume.
	ErrVolumeNotFound = errors.New("volume not found")

	// ErrImageNotFound is returned by ImageID for an absent image.
	ErrImageNotFound = errors.New("image not found")

	// ErrInvalidEngineType is the sentinel error wrapped by InvalidEngineTypeError.
	ErrInvalidEngineType = errors.New("invalid engine type")
)

type (
	// Engine defines the container operations the orchestrator relies on.
	Engine interface {
		// Name returns the engine name (docker or podman).
		Name() string
		// Available checks if the engine is available on the system.
		Available() bool
		// Version returns the engine version.
		Version(ctx context.Context) (string, error)

		// Build builds an image from a Dockerfile and applies every tag in opts.Tags.
		Build(ctx context.Context, opts BuildOptions) error
		// Pull fetches an image from its registry.
		Pull(ctx context.Context, image string, progress io.Writer) error
		// Push uploads a local image to its registry.
		Push(ctx context.Context, image string, progress io.Writer) error
		// Tag adds target as an alias of source.
		Tag(ctx context.Context, source, target string) error
		// ImageExists reports whether image is present in the local store.
		ImageExists(ctx context.Context, image string) (bool, error)
		// ImageID returns the content ID of a local image.
		ImageID(ctx context.Context, image string) (string, error)
		// RemoveImage removes a local image.
		RemoveImage(ctx context.Context, image string, force bool) error

		// Run runs a command in a new container.
		Run(ctx context.Context, opts RunOptions) (*RunResult, error)
		// Remove removes a container by name or ID.
		Remove(ctx context.Context, container string, force bool) error

		// VolumeCreate creates a named volume carrying the given labels.
		VolumeCreate(ctx context.Context, name string, labels map[string]string) error
		// VolumeRemove removes a named volume. Removing an absent volume is not an error.
		VolumeRemove(ctx context.Context, name string) error
		// VolumeInspect returns the volume's metadata, or ErrVolumeNotFound.
		VolumeInspect(ctx context.Context, name string) (*VolumeInfo, error)
	}

	// BuildOptions contains options for building an image.
	BuildOptions struct {
		// ContextDir is the build context directory.
		ContextDir string
		// Dockerfile is the path to the Dockerfile (relative to ContextDir).
		Dockerfile string
		// Tags are applied to the built image in order.
		Tags []string
		// BuildArgs are build-time variables.
		BuildArgs map[string]string
		// NoCache disables the build cache.
		NoCache bool
		// Stdout is where to write build output.
		Stdout io.Writer
		// Stderr is where to write build errors.
		Stderr io.Writer
	}

	// RunOptions contains options for running a container.
	RunOptions struct {
		// Image is the image to run.
		Image string
		// Command is the argv passed after the image.
		Command []string
		// Entrypoint overrides the image entrypoint when set.
		Entrypoint string
		// User is the "uid[:gid]" or name the container process runs as.
		User string
		// WorkDir is the working directory inside the container.
		WorkDir string
		// Env contains environment variables.
		Env map[string]string
		// Volumes are mounts in "source:target[:options]" or bare "target" form.
		Volumes []string
		// Remove automatically removes the container after exit.
		Remove bool
		// Name is the container name.
		Name string
		// Stdin is the standard input.
		Stdin io.Reader
		// Stdout is where to write standard output.
		Stdout io.Writer
		// Stderr is where to write standard error.
		Stderr io.Writer
		// Interactive keeps stdin open.
		Interactive bool
		// TTY allocates a pseudo-TTY.
		TTY bool
	}

	// RunResult contains the result of running a container.
	RunResult struct {
		// ContainerName is the name the container ran under, if one was set.
		ContainerName string
		// ExitCode is the exit code reported by the engine.
		ExitCode types.ExitCode
		// Error is set when the engine could not be invoked at all.
		Error error
	}

	// VolumeInfo is the subset of `volume inspect` output the orchestrator uses.
	VolumeInfo struct {
		Name   string
		Labels map[string]string
	}

	// EngineType identifies the container engine type.
	EngineType string

	// InvalidEngineTypeError is returned when an EngineType is not recognized.
	InvalidEngineTypeError struct {
		Value EngineType
	}

	// EngineNotAvailableError is returned when a container engine is not available.
	EngineNotAvailableError struct {
		Engine string
		Reason string
	}
)

// Error implements the error interface.
func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrNoEngineAvailable for errors.Is() compatibility.
func (e *EngineNotAvailableError) Unwrap() error { return ErrNoEngineAvailable }

// Error implements the error interface.
func (e *InvalidEngineTypeError) Error() string {
	return fmt.Sprintf("invalid engine type %q (valid: docker, podman, auto)", e.Value)
}

// Unwrap returns ErrInvalidEngineType for errors.Is() compatibility.
func (e *InvalidEngineTypeError) Unwrap() error { return ErrInvalidEngineType }

// Validate returns an error if the EngineType is not one of the defined types.
func (t EngineType) Validate() error {
	switch t {
	case EngineTypeDocker, EngineTypePodman, EngineTypeAuto:
		return nil
	default:
		return &InvalidEngineTypeError{Value: t}
	}
}

// String returns the string representation of the EngineType.
func (t EngineType) String() string { return string(t) }

// NewEngine creates a container engine based on preference, falling back to
// the other engine when the preferred one does not answer. Inside a Flatpak
// sandbox the engine commands run on the host.
func NewEngine(preferredType EngineType, opts ...BaseCLIEngineOption) (Engine, error) {
	if err := preferredType.Validate(); err != nil {
		return nil, err
	}
	if sandbox := DetectSandbox(); sandbox != SandboxNone {
		opts = append([]BaseCLIEngineOption{WithSandbox(sandbox)}, opts...)
	}

	docker := func() Engine { return NewDockerEngine(opts...) }
	podman := func() Engine { return NewPodmanEngine(opts...) }

	order := []func() Engine{docker, podman}
	if preferredType == EngineTypePodman {
		order = []func() Engine{podman, docker}
	}

	for _, candidate := range order {
		if engine := candidate(); engine.Available() {
			return engine, nil
		}
	}

	name := string(preferredType)
	if preferredType == EngineTypeAuto {
		name = "any"
	}
	return nil, &EngineNotAvailableError{
		Engine: name,
		Reason: "neither docker nor podman is installed or reachable",
	}
}

// AutoDetectEngine tries to find an available container engine.
func AutoDetectEngine(opts ...BaseCLIEngineOption) (Engine, error) {
	return NewEngine(EngineTypeAuto, opts...)
}
