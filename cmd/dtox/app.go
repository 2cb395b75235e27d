// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/sthagen/pantsbuild-pex/internal/config"
	"github.com/sthagen/pantsbuild-pex/internal/container"
	"github.com/sthagen/pantsbuild-pex/internal/orchestrator"
)

type (
	// EngineFactory creates the container engine for a configured engine type.
	EngineFactory func(container.EngineType) (container.Engine, error)

	// App wires CLI services and shared dependencies. Every command handler
	// receives an App and reaches configuration and the engine through it.
	App struct {
		Config    config.Provider
		NewEngine EngineFactory
		stdin     io.Reader
		stdout    io.Writer
		stderr    io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config    config.Provider
		NewEngine EngineFactory
		Stdin     io.Reader
		Stdout    io.Writer
		Stderr    io.Writer
	}

	// globalFlags holds the persistent flags of the root command.
	globalFlags struct {
		configPath string
		projectDir string
		engine     string
		verbose    bool
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.NewEngine == nil {
		deps.NewEngine = func(t container.EngineType) (container.Engine, error) {
			return container.NewEngine(t)
		}
	}
	return &App{
		Config:    deps.Config,
		NewEngine: deps.NewEngine,
		stdin:     deps.Stdin,
		stdout:    deps.Stdout,
		stderr:    deps.Stderr,
	}
}

func (f *globalFlags) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: f.configPath, ProjectDir: f.projectDir}
}

// logger returns the logger shared by every component of one invocation.
func (a *App) logger(verbose bool) *log.Logger {
	l := log.NewWithOptions(a.stderr, log.Options{Prefix: "dtox"})
	if verbose {
		l.SetLevel(log.DebugLevel)
	}
	return l
}

// loadConfig loads the project configuration and applies the --engine override.
func (a *App) loadConfig(ctx context.Context, flags *globalFlags) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, flags.loadOptions())
	if err != nil {
		return nil, err
	}
	if flags.engine != "" {
		engine := container.EngineType(flags.engine)
		if err := engine.Validate(); err != nil {
			return nil, err
		}
		cfg.Engine = engine
	}
	return cfg, nil
}

// planner returns an orchestrator for commands that only read the project
// and never reach the container engine.
func (a *App) planner(ctx context.Context, flags *globalFlags) (*orchestrator.Orchestrator, error) {
	cfg, err := a.loadConfig(ctx, flags)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(cfg, nil, orchestrator.WithLogger(a.logger(flags.verbose))), nil
}

// orchestrator loads configuration, connects to the container engine, and
// wires an orchestrator writing to the App's streams.
func (a *App) orchestrator(ctx context.Context, flags *globalFlags, opts ...orchestrator.Option) (*orchestrator.Orchestrator, error) {
	cfg, err := a.loadConfig(ctx, flags)
	if err != nil {
		return nil, err
	}
	engine, err := a.NewEngine(cfg.Engine)
	if err != nil {
		return nil, err
	}

	logger := a.logger(flags.verbose)
	logger.Debug("container engine selected", "engine", engine.Name())

	opts = append([]orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithStreams(a.stdin, a.stdout, a.stderr),
	}, opts...)
	return orchestrator.New(cfg, engine, opts...), nil
}
