// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/sthagen/pantsbuild-pex/internal/issue"
	"github.com/sthagen/pantsbuild-pex/pkg/types"
)

// DefaultWaitDelay bounds how long a cancelled engine command may keep its
// output pipes open after being interrupted.
const DefaultWaitDelay = 10 * time.Second

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// VolumeFormatFunc formats one -v mount spec.
	// Podman uses this to add SELinux labels to bind mounts.
	VolumeFormatFunc func(volume string) string

	// RunArgsTransformer modifies run arguments after they're built.
	// Used by Podman to inject --userns=keep-id for rootless compatibility.
	RunArgsTransformer func(args []string) []string

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine provides common implementation for CLI-based container engines.
	// Docker and Podman engines embed this struct; engine-specific probes
	// (Available, Version, ImageExists) remain on the concrete types.
	BaseCLIEngine struct {
		name               string // Engine name for error messages (e.g., "docker", "podman")
		binaryPath         string
		execCommand        ExecCommandFunc
		volumeFormatter    VolumeFormatFunc
		runArgsTransformer RunArgsTransformer
		waitDelay          time.Duration
		cmdEnvOverrides    map[string]string
		sandbox            Sandbox
	}
)

// --- Option Functions ---

// WithName sets the engine name used in error messages.
func WithName(name string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.name = name
	}
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.execCommand = fn
	}
}

// WithVolumeFormatter sets a custom volume formatter function.
func WithVolumeFormatter(fn VolumeFormatFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.volumeFormatter = fn
	}
}

// WithRunArgsTransformer sets a custom run args transformer.
func WithRunArgsTransformer(fn RunArgsTransformer) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.runArgsTransformer = fn
	}
}

// WithWaitDelay overrides DefaultWaitDelay.
func WithWaitDelay(d time.Duration) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.waitDelay = d
	}
}

// WithCmdEnvOverride adds an environment variable applied to every engine
// command, e.g. DOCKER_HOST or CONTAINERS_CONF.
func WithCmdEnvOverride(key, value string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		if e.cmdEnvOverrides == nil {
			e.cmdEnvOverrides = make(map[string]string)
		}
		e.cmdEnvOverrides[key] = value
	}
}

// --- Constructor ---

// NewBaseCLIEngine creates a new base engine with the given binary path.
func NewBaseCLIEngine(binaryPath string, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		binaryPath:         binaryPath,
		execCommand:        exec.CommandContext,
		volumeFormatter:    func(v string) string { return v },
		runArgsTransformer: func(args []string) []string { return args },
		waitDelay:          DefaultWaitDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.binaryPath == "" && e.sandbox != SandboxNone {
		// The sandbox cannot see host binaries; the spawn helper resolves it.
		e.binaryPath = e.name
	}
	return e
}

// --- Accessor Methods ---

// Name returns the engine name used in error messages.
func (e *BaseCLIEngine) Name() string {
	return e.name
}

// BinaryPath returns the path to the container engine binary.
func (e *BaseCLIEngine) BinaryPath() string {
	return e.binaryPath
}

// --- Argument Builders ---

// BuildArgs constructs arguments for a container build command.
// Build args are emitted in key order so the command line is reproducible.
//
// Generated command: <binary> build [-f file] [-t tag]... [--no-cache] [--build-arg k=v]... <context>
func (e *BaseCLIEngine) BuildArgs(opts BuildOptions) []string {
	args := []string{"build"}

	if opts.Dockerfile != "" {
		dockerfilePath := opts.Dockerfile
		if !filepath.IsAbs(dockerfilePath) && opts.ContextDir != "" {
			dockerfilePath = filepath.Join(opts.ContextDir, dockerfilePath)
		}
		args = append(args, "-f", dockerfilePath)
	}

	for _, tag := range opts.Tags {
		args = append(args, "-t", tag)
	}

	if opts.NoCache {
		args = append(args, "--no-cache")
	}

	for _, k := range slices.Sorted(maps.Keys(opts.BuildArgs)) {
		args = append(args, "--build-arg", k+"="+opts.BuildArgs[k])
	}

	contextDir := opts.ContextDir
	if contextDir == "" {
		contextDir = "."
	}
	return append(args, contextDir)
}

// RunArgs constructs arguments for a container run command.
// Environment variables are emitted in key order.
//
// Generated command: <binary> run [options] <image> [command...]
func (e *BaseCLIEngine) RunArgs(opts RunOptions) []string {
	args := []string{"run"}

	if opts.Remove {
		args = append(args, "--rm")
	}

	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}

	if opts.Entrypoint != "" {
		args = append(args, "--entrypoint", opts.Entrypoint)
	}

	if opts.User != "" {
		args = append(args, "--user", opts.User)
	}

	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}

	if opts.Interactive {
		args = append(args, "-i")
	}

	if opts.TTY {
		args = append(args, "-t")
	}

	for _, k := range slices.Sorted(maps.Keys(opts.Env)) {
		args = append(args, "-e", k+"="+opts.Env[k])
	}

	for _, v := range opts.Volumes {
		args = append(args, "-v", e.volumeFormatter(v))
	}

	args = append(args, opts.Image)
	args = append(args, opts.Command...)

	return e.runArgsTransformer(args)
}

// RemoveArgs constructs arguments for a container remove command.
func (e *BaseCLIEngine) RemoveArgs(container string, force bool) []string {
	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	return append(args, container)
}

// RemoveImageArgs constructs arguments for an image remove command.
func (e *BaseCLIEngine) RemoveImageArgs(image string, force bool) []string {
	args := []string{"rmi"}
	if force {
		args = append(args, "-f")
	}
	return append(args, image)
}

// VolumeCreateArgs constructs arguments for a volume create command.
// Labels are emitted in key order.
func (e *BaseCLIEngine) VolumeCreateArgs(name string, labels map[string]string) []string {
	args := []string{"volume", "create"}
	for _, k := range slices.Sorted(maps.Keys(labels)) {
		args = append(args, "--label", k+"="+labels[k])
	}
	return append(args, name)
}

// --- Command Execution ---

// RunCommandCombined executes a command and returns combined stdout/stderr.
// The output is returned even on failure so callers can classify it.
func (e *BaseCLIEngine) RunCommandCombined(ctx context.Context, args ...string) ([]byte, error) {
	cmd := e.CreateCommand(ctx, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}
	return out, nil
}

// RunCommandStatus executes a command and returns only the error status.
// Stderr is folded into the error text.
func (e *BaseCLIEngine) RunCommandStatus(ctx context.Context, args ...string) error {
	cmd := e.CreateCommand(ctx, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return commandError(e.binaryPath, args, err, stderr.String())
	}
	return nil
}

// RunCommandWithOutput executes a command with stdout captured to a buffer.
func (e *BaseCLIEngine) RunCommandWithOutput(ctx context.Context, args ...string) (string, error) {
	cmd := e.CreateCommand(ctx, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", commandError(e.binaryPath, args, err, stderr.String())
	}

	return out.String(), nil
}

// CreateCommand creates an exec.Cmd for the given arguments.
// Cancelling ctx interrupts the engine client first so it can stop the
// container it manages, and kills it after the wait delay.
func (e *BaseCLIEngine) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	name, args := e.sandbox.hostCommand(e.binaryPath, args, e.cmdEnvOverrides)
	cmd := e.execCommand(ctx, name, args...)
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = e.waitDelay
	if len(e.cmdEnvOverrides) > 0 && e.sandbox == SandboxNone {
		// A non-nil Env replaces the inherited environment entirely.
		cmd.Env = os.Environ()
		for _, k := range slices.Sorted(maps.Keys(e.cmdEnvOverrides)) {
			cmd.Env = append(cmd.Env, k+"="+e.cmdEnvOverrides[k])
		}
	}
	return cmd
}

// --- Promoted Engine Methods (shared by Docker and Podman) ---

// Build builds an image from a Dockerfile.
func (e *BaseCLIEngine) Build(ctx context.Context, opts BuildOptions) error {
	cmd := e.CreateCommand(ctx, e.BuildArgs(opts)...)
	var tail tailBuffer
	cmd.Stdout = opts.Stdout
	cmd.Stderr = io.MultiWriter(writerOrDiscard(opts.Stderr), &tail)

	if err := cmd.Run(); err != nil {
		return buildContainerError(e.name, opts, commandError(e.binaryPath, []string{"build"}, err, tail.String()))
	}
	return nil
}

// Pull fetches an image from its registry.
func (e *BaseCLIEngine) Pull(ctx context.Context, image string, progress io.Writer) error {
	cmd := e.CreateCommand(ctx, "pull", image)
	var tail tailBuffer
	cmd.Stdout = progress
	cmd.Stderr = io.MultiWriter(writerOrDiscard(progress), &tail)

	if err := cmd.Run(); err != nil {
		return pullContainerError(e.name, image, commandError(e.binaryPath, []string{"pull", image}, err, tail.String()))
	}
	return nil
}

// Push uploads a local image to its registry.
func (e *BaseCLIEngine) Push(ctx context.Context, image string, progress io.Writer) error {
	cmd := e.CreateCommand(ctx, "push", image)
	var tail tailBuffer
	cmd.Stdout = progress
	cmd.Stderr = io.MultiWriter(writerOrDiscard(progress), &tail)

	if err := cmd.Run(); err != nil {
		return issue.NewErrorContext().
			WithOperation("push container image").
			WithResource(image).
			WithSuggestion("Log in to the registry first (try: " + e.name + " login)").
			WithSuggestion("Check that the account may write to this repository").
			Wrap(commandError(e.binaryPath, []string{"push", image}, err, tail.String())).
			BuildError()
	}
	return nil
}

// Tag adds target as an alias of source.
func (e *BaseCLIEngine) Tag(ctx context.Context, source, target string) error {
	return e.RunCommandStatus(ctx, "tag", source, target)
}

// ImageID returns the content ID of a local image.
func (e *BaseCLIEngine) ImageID(ctx context.Context, image string) (string, error) {
	out, err := e.RunCommandCombined(ctx, "image", "inspect", "--format", "{{.Id}}", image)
	if err != nil {
		if isNotFoundOutput(out) {
			return "", fmt.Errorf("%s: %w", image, ErrImageNotFound)
		}
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Run runs a command in a container and returns the result.
// A non-zero exit code is captured in RunResult.ExitCode (not returned as error).
// Only infrastructure failures (binary not found, etc.) set RunResult.Error.
func (e *BaseCLIEngine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	cmd := e.CreateCommand(ctx, e.RunArgs(opts)...)
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	err := cmd.Run()

	result := &RunResult{ContainerName: opts.Name}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			result.ExitCode = types.ExitCode(exitErr.ExitCode())
		} else {
			result.ExitCode = 1
			result.Error = runContainerError(e.name, opts, err)
		}
	}

	return result, nil
}

// Remove removes a container.
func (e *BaseCLIEngine) Remove(ctx context.Context, container string, force bool) error {
	return e.RunCommandStatus(ctx, e.RemoveArgs(container, force)...)
}

// RemoveImage removes an image.
func (e *BaseCLIEngine) RemoveImage(ctx context.Context, image string, force bool) error {
	return e.RunCommandStatus(ctx, e.RemoveImageArgs(image, force)...)
}

// VolumeCreate creates a named volume carrying the given labels.
func (e *BaseCLIEngine) VolumeCreate(ctx context.Context, name string, labels map[string]string) error {
	return e.RunCommandStatus(ctx, e.VolumeCreateArgs(name, labels)...)
}

// VolumeRemove force-removes a named volume. An absent volume is not an error.
func (e *BaseCLIEngine) VolumeRemove(ctx context.Context, name string) error {
	out, err := e.RunCommandCombined(ctx, "volume", "rm", "-f", name)
	if err != nil && !isNotFoundOutput(out) {
		return err
	}
	return nil
}

// VolumeInspect returns the volume's labels, or ErrVolumeNotFound.
func (e *BaseCLIEngine) VolumeInspect(ctx context.Context, name string) (*VolumeInfo, error) {
	out, err := e.RunCommandCombined(ctx, "volume", "inspect", "--format", "{{json .Labels}}", name)
	if err != nil {
		if isNotFoundOutput(out) {
			return nil, fmt.Errorf("%s: %w", name, ErrVolumeNotFound)
		}
		return nil, err
	}

	info := &VolumeInfo{Name: name}
	if err := json.Unmarshal(bytes.TrimSpace(out), &info.Labels); err != nil {
		return nil, fmt.Errorf("parse labels of volume %s: %w", name, err)
	}
	return info, nil
}

// --- Helpers ---

// isNotFoundOutput recognises the "no such object" wording of both engines.
func isNotFoundOutput(out []byte) bool {
	s := strings.ToLower(string(out))
	return strings.Contains(s, "no such") || strings.Contains(s, "not known") || strings.Contains(s, "not found")
}

func commandError(binary string, args []string, err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return fmt.Errorf("command %s %v failed: %w", binary, args, err)
	}
	return fmt.Errorf("command %s %v failed: %w: %s", binary, args, err, stderr)
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// tailBuffer keeps the last few KiB written to it, enough to carry the
// engine's final diagnostic into an error message.
type tailBuffer struct {
	buf []byte
}

const tailBufferSize = 4 << 10

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - tailBufferSize; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }

// --- Actionable Error Helpers ---

// buildContainerError creates an actionable error for container build failures.
func buildContainerError(engine string, opts BuildOptions, cause error) error {
	ctx := issue.NewErrorContext().
		WithOperation("build container image")

	switch {
	case len(opts.Tags) > 0:
		ctx.WithResource(opts.Tags[0])
	case opts.Dockerfile != "":
		ctx.WithResource(opts.Dockerfile)
	default:
		ctx.WithResource(filepath.Join(opts.ContextDir, "Dockerfile"))
	}

	ctx.WithSuggestion("Check the failing Dockerfile step in the output above")
	ctx.WithSuggestion("Ensure base images are reachable (try: " + engine + " pull <base-image>)")
	ctx.WithSuggestion("Run with --verbose to stream the full build output")

	return ctx.Wrap(cause).BuildError()
}

// pullContainerError creates an actionable error for image pull failures.
func pullContainerError(engine, image string, cause error) error {
	return issue.NewErrorContext().
		WithOperation("pull container image").
		WithResource(image).
		WithSuggestion("Check registry credentials (try: " + engine + " login)").
		WithSuggestion("Verify the tag has been published").
		Wrap(cause).
		BuildError()
}

// runContainerError creates an actionable error for container run failures.
func runContainerError(engine string, opts RunOptions, cause error) error {
	return issue.NewErrorContext().
		WithOperation("run container").
		WithResource(opts.Image).
		WithSuggestion("Verify the image exists (try: " + engine + " images)").
		WithSuggestion("Check that bind mount paths exist on the host").
		Wrap(cause).
		BuildError()
}
