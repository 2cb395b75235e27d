// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"mvdan.cc/sh/v3/syntax"

	"github.com/sthagen/pantsbuild-pex/internal/container"
	"github.com/sthagen/pantsbuild-pex/pkg/types"
)

const (
	// SSHAgentEnv is the variable naming the host SSH agent socket.
	SSHAgentEnv = "SSH_AUTH_SOCK"
	// SSHAgentMountPath is where the host agent socket appears in containers.
	SSHAgentMountPath = "/run/ssh-agent.sock"
	// DefaultInspectShell replaces the entrypoint in inspect mode.
	DefaultInspectShell = "/bin/bash"
)

// ErrDispatch is the sentinel error wrapped by DispatchError.
var ErrDispatch = errors.New("job dispatch failed")

var containerNameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

type (
	// Options selects per-invocation behavior.
	Options struct {
		// Interactive attaches stdin and allocates a TTY.
		Interactive bool
		// Inspect starts the inspect shell instead of the job's command.
		Inspect bool
	}

	// Config holds the host-side settings shared by every job.
	Config struct {
		// HostEnv is the host environment snapshot used for forwarding.
		HostEnv map[string]string
		// User is the "uid:gid" jobs run as; empty keeps the image default.
		User string
		// InspectShell overrides DefaultInspectShell.
		InspectShell string
		Stdin        io.Reader
		Stdout       io.Writer
		Stderr       io.Writer
		Logger       *log.Logger
	}

	// DispatchError reports a job that could not be started or supervised.
	DispatchError struct {
		Job string
		Err error
	}

	// Dispatcher runs jobs on a container engine.
	Dispatcher struct {
		engine container.Engine
		config Config
	}
)

// Error implements the error interface.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch job %s: %v", e.Job, e.Err)
}

// Unwrap exposes both ErrDispatch and the cause.
func (e *DispatchError) Unwrap() []error { return []error{ErrDispatch, e.Err} }

// NewDispatcher creates a Dispatcher.
func NewDispatcher(engine container.Engine, cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.InspectShell == "" {
		cfg.InspectShell = DefaultInspectShell
	}
	return &Dispatcher{engine: engine, config: cfg}
}

// Run executes job once and returns its exit code. A non-zero exit code is
// not an error. The container is always removed, including when ctx is
// cancelled while the job runs.
func (d *Dispatcher) Run(ctx context.Context, job Job, opts Options) (types.ExitCode, error) {
	runOpts, err := d.RunOptions(job, opts)
	if err != nil {
		return 0, &DispatchError{Job: job.Name, Err: err}
	}

	logger := d.config.Logger.With("job", job.Name, "image", job.Image.String())
	logger.Debug("dispatching", "container", runOpts.Name, "command", quoteArgs(runOpts.Command))

	result, err := d.engine.Run(ctx, runOpts)
	if ctx.Err() != nil {
		// The engine client was interrupted; make sure the container goes too.
		if rmErr := d.engine.Remove(context.WithoutCancel(ctx), runOpts.Name, true); rmErr != nil {
			logger.Debug("container removal after cancellation failed", "err", rmErr)
		}
		return 0, &DispatchError{Job: job.Name, Err: ctx.Err()}
	}
	if err != nil {
		return 0, &DispatchError{Job: job.Name, Err: err}
	}
	if result.Error != nil {
		return 0, &DispatchError{Job: job.Name, Err: result.Error}
	}

	logger.Debug("job finished", "exit", result.ExitCode)
	return result.ExitCode, nil
}

// RunOptions assembles the engine options for job without running it.
func (d *Dispatcher) RunOptions(job Job, opts Options) (container.RunOptions, error) {
	if err := job.Image.Validate(); err != nil {
		return container.RunOptions{}, err
	}

	volumes := make([]string, 0, len(job.Volumes)+1)
	for _, b := range job.Volumes {
		if err := b.Validate(); err != nil {
			return container.RunOptions{}, err
		}
		volumes = append(volumes, b.Spec())
	}

	env := make(map[string]string, len(job.ForwardEnv)+len(job.Env)+1)
	for _, name := range job.ForwardEnv {
		if v, ok := d.config.HostEnv[name]; ok {
			env[name] = v
		}
	}
	for k, v := range job.Env {
		env[k] = v
	}

	if sock := d.config.HostEnv[SSHAgentEnv]; sock != "" {
		volumes = append(volumes, sock+":"+SSHAgentMountPath)
		env[SSHAgentEnv] = SSHAgentMountPath
	}

	runOpts := container.RunOptions{
		Image:       job.Image.String(),
		Command:     job.Args,
		User:        d.config.User,
		WorkDir:     job.WorkDir,
		Env:         env,
		Volumes:     volumes,
		Remove:      true,
		Name:        containerName(job.Name),
		Stdout:      d.config.Stdout,
		Stderr:      d.config.Stderr,
		Interactive: opts.Interactive,
		TTY:         opts.Interactive,
	}
	if opts.Interactive {
		runOpts.Stdin = d.config.Stdin
	}
	if opts.Inspect {
		runOpts.Entrypoint = d.config.InspectShell
		runOpts.Command = nil
	}
	return runOpts, nil
}

func containerName(job string) string {
	slug := strings.Trim(containerNameUnsafe.ReplaceAllString(job, "-"), "-.")
	if slug == "" {
		slug = "job"
	}
	return "dtox-" + slug + "-" + uuid.NewString()[:8]
}

// quoteArgs renders argv as a copy-pastable shell command line.
func quoteArgs(args []string) string {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		q, err := syntax.Quote(a, syntax.LangBash)
		if err != nil {
			q = fmt.Sprintf("%q", a)
		}
		quoted = append(quoted, q)
	}
	return strings.Join(quoted, " ")
}
