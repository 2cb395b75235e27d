// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"io"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"

	"github.com/sthagen/pantsbuild-pex/internal/config"
	"github.com/sthagen/pantsbuild-pex/internal/container"
	"github.com/sthagen/pantsbuild-pex/internal/dispatch"
	"github.com/sthagen/pantsbuild-pex/internal/provision"
	"github.com/sthagen/pantsbuild-pex/internal/volume"
)

type (
	// Orchestrator runs dtox workflows against one container engine.
	Orchestrator struct {
		cfg         *config.Config
		engine      container.Engine
		fsys        fs.FS
		provisioner provision.Provisioner
		populator   *volume.Populator
		dispatcher  *dispatch.Dispatcher
		logger      *log.Logger

		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer

		noCache bool
	}

	// Option configures an Orchestrator.
	Option func(*Orchestrator)
)

// WithLogger sets the logger shared by every component.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStreams sets the standard streams jobs and engine output use.
func WithStreams(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(o *Orchestrator) {
		o.stdin, o.stdout, o.stderr = stdin, stdout, stderr
	}
}

// WithFS overrides the filesystem build inputs are read from. It defaults to
// the project root.
func WithFS(fsys fs.FS) Option {
	return func(o *Orchestrator) {
		o.fsys = fsys
	}
}

// WithNoCache disables the engine build cache for image builds.
func WithNoCache(noCache bool) Option {
	return func(o *Orchestrator) {
		o.noCache = noCache
	}
}

// WithProvisioner replaces the engine-backed image provisioner.
func WithProvisioner(p provision.Provisioner) Option {
	return func(o *Orchestrator) {
		o.provisioner = p
	}
}

// New wires the components for cfg on engine. engine may be nil for an
// orchestrator that only resolves identities and reads the test matrix.
func New(cfg *config.Config, engine container.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:    cfg,
		engine: engine,
		logger: log.New(io.Discard),
		stdin:  os.Stdin,
		stdout: io.Discard,
		stderr: io.Discard,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.fsys == nil {
		o.fsys = os.DirFS(cfg.Root)
	}

	if o.provisioner == nil {
		o.provisioner = provision.NewImageProvisioner(engine,
			provision.WithLogger(o.logger),
			provision.WithOutput(o.stderr),
			provision.WithNoCache(o.noCache),
		)
	}
	o.populator = volume.NewPopulator(engine, o.logger, o.stderr)
	o.dispatcher = dispatch.NewDispatcher(engine, dispatch.Config{
		HostEnv:      cfg.HostEnv,
		User:         cfg.Host.Owner(),
		InspectShell: cfg.Job.InspectShell,
		Stdin:        o.stdin,
		Stdout:       o.stdout,
		Stderr:       o.stderr,
		Logger:       o.logger,
	})
	return o
}

// Config returns the configuration the orchestrator was built with.
func (o *Orchestrator) Config() *config.Config { return o.cfg }
