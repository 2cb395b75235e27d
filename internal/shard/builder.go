// SPDX-License-Identifier: MPL-2.0

package shard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"mvdan.cc/sh/v3/shell"

	"github.com/sthagen/pantsbuild-pex/internal/dispatch"
	"github.com/sthagen/pantsbuild-pex/internal/identity"
	"github.com/sthagen/pantsbuild-pex/internal/provision"
	"github.com/sthagen/pantsbuild-pex/pkg/types"
)

const (
	// MountPath is where the shard work directory appears in shard jobs.
	MountPath = "/shards"

	// EnvShard names the environment a shard job builds.
	EnvShard = "DTOX_SHARD_ENV"
	// EnvShardOutput is the in-container path the shard job writes its tar to.
	EnvShardOutput = "DTOX_SHARD_OUTPUT"
	// EnvCachePath is the in-container cache directory the shard job fills.
	EnvCachePath = "DTOX_CACHE_PATH"

	// DefaultCommand populates the cache for one environment and archives it
	// relative to the filesystem root, so the archive is usable as an image layer.
	DefaultCommand = `sh -c 'tox -e "$DTOX_SHARD_ENV" --notest && tar -C / -cf "$DTOX_SHARD_OUTPUT" "${DTOX_CACHE_PATH#/}"'`

	// DefaultParallelism bounds concurrent shard jobs when unset.
	DefaultParallelism = 4

	artifactExt = ".tar"
)

var (
	// ErrShard is the sentinel error wrapped by ShardError.
	ErrShard = errors.New("cache shard build failed")

	// ErrArtifactMissing is returned when a shard job exits cleanly without output.
	ErrArtifactMissing = errors.New("shard artifact missing")
)

type (
	// Workdir is the host directory holding shard artifacts, one per environment.
	Workdir string

	// CacheShard is one environment's cache export.
	CacheShard struct {
		Env  EnvSpec
		Path string
	}

	// Runner runs one containerized job. *dispatch.Dispatcher satisfies it.
	Runner interface {
		Run(ctx context.Context, job dispatch.Job, opts dispatch.Options) (types.ExitCode, error)
	}

	// BuilderConfig configures shard jobs.
	BuilderConfig struct {
		// Image is the job image, ensured before each shard runs.
		Image identity.ImageRef
		Mode  provision.Mode
		Spec  provision.BuildSpec
		// Job is the template every shard job starts from.
		Job dispatch.Job
		// Command is a shell-word template; DTOX_* variables expand per shard.
		Command string
		// CachePath is the in-container cache directory; each shard gets a
		// fresh anonymous volume there.
		CachePath   string
		Parallelism int
		Logger      *log.Logger
	}

	// Builder runs shard jobs in parallel.
	Builder struct {
		provisioner provision.Provisioner
		runner      Runner
		workdir     Workdir
		config      BuilderConfig
	}

	// ShardError reports one failed shard. Err is nil when the job ran but
	// exited with a non-zero ExitCode.
	ShardError struct {
		Env      string
		ExitCode types.ExitCode
		Err      error
	}
)

// Error implements the error interface.
func (e *ShardError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("shard %s: job exited with code %s", e.Env, e.ExitCode)
	}
	return fmt.Sprintf("shard %s: %v", e.Env, e.Err)
}

// Unwrap exposes ErrShard and the cause, if any.
func (e *ShardError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrShard}
	}
	return []error{ErrShard, e.Err}
}

// Reset empties the work directory, creating it if needed.
func (w Workdir) Reset() error {
	if err := os.RemoveAll(string(w)); err != nil {
		return fmt.Errorf("clear shard workdir: %w", err)
	}
	if err := os.MkdirAll(string(w), 0o755); err != nil {
		return fmt.Errorf("create shard workdir: %w", err)
	}
	return nil
}

// ArtifactPath returns the host path of env's shard artifact.
func (w Workdir) ArtifactPath(env string) string {
	return filepath.Join(string(w), env+artifactExt)
}

// Shards returns the expected shard for every environment, whether or not
// its artifact exists yet.
func (w Workdir) Shards(envs []EnvSpec) []CacheShard {
	shards := make([]CacheShard, len(envs))
	for i, env := range envs {
		shards[i] = CacheShard{Env: env, Path: w.ArtifactPath(env.Name)}
	}
	return shards
}

// NewBuilder creates a Builder writing artifacts into workdir.
func NewBuilder(p provision.Provisioner, r Runner, workdir Workdir, cfg BuilderConfig) *Builder {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}
	return &Builder{provisioner: p, runner: r, workdir: workdir, config: cfg}
}

// BuildShards runs one job per environment, at most Parallelism at a time.
// A failing shard does not stop the others. The returned shards are the
// successful ones in envs order; every failure is joined into the error.
func (b *Builder) BuildShards(ctx context.Context, envs []EnvSpec) ([]CacheShard, error) {
	hostDir, err := filepath.Abs(string(b.workdir))
	if err != nil {
		return nil, fmt.Errorf("resolve shard workdir: %w", err)
	}
	if err := os.MkdirAll(hostDir, 0o755); err != nil {
		return nil, fmt.Errorf("create shard workdir: %w", err)
	}

	b.config.Logger.Infof("Building caches for %d tox environments.", len(envs))

	results := make([]error, len(envs))
	var g errgroup.Group
	g.SetLimit(b.config.Parallelism)
	for i, env := range envs {
		b.config.Logger.Debug("queued shard", "env", env.Name, "interpreter", env.Interpreter, "pip", env.Pip, "kind", env.Kind)
		g.Go(func() error {
			results[i] = b.buildShard(ctx, hostDir, env)
			return nil
		})
	}
	_ = g.Wait()

	var (
		shards []CacheShard
		errs   []error
	)
	for i, env := range envs {
		if results[i] != nil {
			errs = append(errs, results[i])
			continue
		}
		shards = append(shards, CacheShard{Env: env, Path: filepath.Join(hostDir, env.Name+artifactExt)})
	}
	return shards, errors.Join(errs...)
}

func (b *Builder) buildShard(ctx context.Context, hostDir string, env EnvSpec) error {
	logger := b.config.Logger.With("env", env.Name)

	if _, err := b.provisioner.Ensure(ctx, b.config.Image, b.config.Mode, b.config.Spec); err != nil {
		return &ShardError{Env: env.Name, Err: err}
	}

	job, err := b.job(hostDir, env)
	if err != nil {
		return &ShardError{Env: env.Name, Err: err}
	}

	// Drop a stale artifact so a job that writes nothing is detected.
	artifact := filepath.Join(hostDir, env.Name+artifactExt)
	if err := os.Remove(artifact); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &ShardError{Env: env.Name, Err: err}
	}

	code, err := b.runner.Run(ctx, job, dispatch.Options{})
	if err != nil {
		return &ShardError{Env: env.Name, Err: err}
	}
	if !code.IsSuccess() {
		logger.Error("shard job failed", "exit", code)
		return &ShardError{Env: env.Name, ExitCode: code}
	}

	if _, err := os.Stat(artifact); err != nil {
		return &ShardError{Env: env.Name, Err: fmt.Errorf("%w: %s", ErrArtifactMissing, artifact)}
	}
	logger.Info("shard built", "artifact", artifact)
	return nil
}

// job derives env's job from the template.
func (b *Builder) job(hostDir string, env EnvSpec) (dispatch.Job, error) {
	vars := map[string]string{
		EnvShard:       env.Name,
		EnvShardOutput: MountPath + "/" + env.Name + artifactExt,
		EnvCachePath:   b.config.CachePath,
	}

	args, err := shell.Fields(b.config.Command, func(name string) string { return vars[name] })
	if err != nil {
		return dispatch.Job{}, fmt.Errorf("expand shard command: %w", err)
	}

	job := b.config.Job
	job.Name = "shard-" + env.Name
	job.Image = b.config.Image
	job.Args = args
	job.Volumes = append(slices.Clone(job.Volumes), dispatch.Bind(hostDir, MountPath))
	if b.config.CachePath != "" {
		job.Volumes = append(job.Volumes, dispatch.Anonymous(b.config.CachePath))
	}
	job.Env = maps.Clone(job.Env)
	if job.Env == nil {
		job.Env = make(map[string]string, len(vars))
	}
	maps.Copy(job.Env, vars)
	return job, nil
}
