// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	v1 "github.com/google/go-containerregistry/pkg/v1"

	"github.com/sthagen/pantsbuild-pex/internal/config"
	"github.com/sthagen/pantsbuild-pex/internal/container"
	"github.com/sthagen/pantsbuild-pex/internal/dispatch"
	"github.com/sthagen/pantsbuild-pex/internal/issue"
	"github.com/sthagen/pantsbuild-pex/internal/provision"
	"github.com/sthagen/pantsbuild-pex/internal/shard"
)

// Build arguments of the single-Dockerfile cache image.
const (
	PexRepoArg = "PEX_REPO"
	GitRefArg  = "GIT_REF"
	ToxEnvsArg = "TOX_ENVS"
)

// ErrPartialCache is returned when a request would publish a cache image
// that lacks some test environments of the matrix.
var ErrPartialCache = errors.New("published cache images must cover every test environment")

// CacheRequest selects the shards of a cache build or merge.
type CacheRequest struct {
	// Envs narrows the shards that are built; empty means every shard.
	// Merges always cover the whole matrix.
	Envs []string
	// PostAction publishes the merged image; empty skips the merge after a build.
	PostAction shard.PostAction
	// Tag overrides the configured cache tag.
	Tag string
}

// Matrix loads the CI test matrix and reconciles it with the declared shards.
func (o *Orchestrator) Matrix() ([]shard.EnvSpec, error) {
	ref := o.cfg.MatrixRef()
	matrix, err := shard.LoadMatrix(ref)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load test matrix").
			WithResource(ref.File).
			WithSuggestion(fmt.Sprintf("Check that jobs.%s.strategy.matrix.%s is a list of tox environments", ref.Job, ref.Key)).
			Wrap(err).
			BuildError()
	}

	shards, err := shard.ReconcileShards(matrix, o.cfg.Matrix.Shards)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("reconcile cache shards").
			WithResource(ref.File).
			WithSuggestion("Update matrix.shards in " + config.ConfigFileName + " to list every test environment once").
			WithSuggestion("Or remove matrix.shards to shard by the test matrix directly").
			Wrap(err).
			BuildError()
	}
	for _, s := range shards {
		o.logger.Debug("cache shard", "env", s.Name, "interpreter", s.Interpreter, "kind", s.Kind)
	}
	return shards, nil
}

// BuildCache builds the selected shards in parallel. A run over every shard
// clears the work directory first. With a PostAction every shard of the
// matrix is merged and published afterwards, so a narrowed build only
// publishes when the other shards were built before; any failed or missing
// shard prevents that.
func (o *Orchestrator) BuildCache(ctx context.Context, req CacheRequest) ([]shard.CacheShard, error) {
	all, err := o.Matrix()
	if err != nil {
		return nil, err
	}
	envs, err := shard.Select(all, req.Envs)
	if err != nil {
		return nil, err
	}

	workdir := o.cfg.ShardWorkdir()
	if len(req.Envs) == 0 {
		if err := workdir.Reset(); err != nil {
			return nil, err
		}
	}

	refs, err := o.Prepare(ctx)
	if err != nil {
		return nil, err
	}

	builder := shard.NewBuilder(o.provisioner, o.dispatcher, workdir, shard.BuilderConfig{
		Image:       refs.Derived,
		Mode:        provision.ModeBuild,
		Spec:        o.derivedSpec(refs.Base),
		Job:         o.shardJob(),
		Command:     o.cfg.Cache.Command,
		CachePath:   o.cfg.Cache.DataPath,
		Parallelism: o.cfg.Cache.Parallelism,
		Logger:      o.logger,
	})
	shards, err := builder.BuildShards(ctx, envs)
	if err != nil {
		return shards, err
	}

	if req.PostAction != "" {
		if _, err := o.merge(ctx, workdir.Shards(all), req); err != nil {
			return shards, err
		}
	}
	return shards, nil
}

// shardJob is the template shard jobs start from. Unlike regular jobs they
// share no persistent volume, so concurrent shards cannot see each other.
func (o *Orchestrator) shardJob() dispatch.Job {
	return dispatch.Job{
		Volumes: []dispatch.VolumeBinding{
			dispatch.Bind(o.cfg.Root, o.cfg.Job.Workdir),
			dispatch.Anonymous(o.cfg.Job.ToxStatePath),
		},
		ForwardEnv: o.cfg.Job.ForwardEnv,
		WorkDir:    o.cfg.Job.Workdir,
	}
}

// MergeCache merges previously built shard artifacts and publishes the
// result. Every shard of the matrix must be present.
func (o *Orchestrator) MergeCache(ctx context.Context, req CacheRequest) (v1.Hash, error) {
	if req.PostAction == "" {
		req.PostAction = shard.PostActionExport
	}
	if len(req.Envs) > 0 {
		return v1.Hash{}, partialCacheError(req.Envs, "Drop --env: a merge always covers every test environment")
	}
	all, err := o.Matrix()
	if err != nil {
		return v1.Hash{}, err
	}
	return o.merge(ctx, o.cfg.ShardWorkdir().Shards(all), req)
}

func partialCacheError(envs []string, suggestion string) error {
	return issue.NewErrorContext().
		WithOperation("publish cache image").
		WithResource(strings.Join(envs, ", ")).
		WithSuggestion(suggestion).
		Wrap(ErrPartialCache).
		BuildError()
}

func (o *Orchestrator) merge(ctx context.Context, shards []shard.CacheShard, req CacheRequest) (v1.Hash, error) {
	target, err := o.cfg.CacheImageTagged(req.Tag)
	if err != nil {
		return v1.Hash{}, err
	}

	merger := shard.NewMerger(shard.MergerConfig{
		BaseImage:  o.cfg.Cache.MergeBase,
		ExportPath: o.cfg.Path(o.cfg.Cache.ExportPath),
		Credentials: shard.Credentials{
			Username: o.cfg.Registry.Username,
			Password: o.cfg.Registry.Password,
		},
		Insecure: o.cfg.Registry.Insecure,
		Logger:   o.logger,
	})
	digest, err := merger.MergeAndPublish(ctx, shards, target, req.PostAction)
	if err != nil {
		ec := issue.NewErrorContext().
			WithOperation("merge cache shards").
			WithResource(target.String())
		if errors.Is(err, shard.ErrMerge) {
			ec.WithSuggestion("Rebuild the missing shards (try: dtox cache --mode build --env NAME)")
		} else if req.PostAction == shard.PostActionPush {
			ec.WithSuggestion("Set DTOX_REGISTRY_USERNAME and DTOX_REGISTRY_PASSWORD, or log in with the container engine")
		}
		return v1.Hash{}, ec.Wrap(err).BuildError()
	}
	return digest, nil
}

// BuildCacheImage builds the cache image in one engine build of the cache
// Dockerfile, which populates every test environment itself, then tags and
// optionally pushes it.
func (o *Orchestrator) BuildCacheImage(ctx context.Context, req CacheRequest) error {
	all, err := o.Matrix()
	if err != nil {
		return err
	}
	envs, err := shard.Select(all, req.Envs)
	if err != nil {
		return err
	}
	if req.PostAction == shard.PostActionPush && len(envs) < len(all) {
		return partialCacheError(req.Envs, "Drop --env to push an image covering the whole test matrix")
	}
	target, err := o.cfg.CacheImageTagged(req.Tag)
	if err != nil {
		return err
	}

	names := make([]string, len(envs))
	for i, e := range envs {
		names[i] = e.Name
	}
	o.logger.Infof("Building caches for %d tox environments.", len(envs))

	err = o.engine.Build(ctx, container.BuildOptions{
		ContextDir: o.cfg.Path(o.cfg.Cache.ContextDir),
		Dockerfile: o.cfg.Path(o.cfg.Cache.Dockerfile),
		Tags:       []string{target.String()},
		BuildArgs: map[string]string{
			PexRepoArg: o.cfg.Cache.PexRepo,
			GitRefArg:  o.cfg.Cache.GitRef,
			ToxEnvsArg: strings.Join(names, ","),
		},
		NoCache: o.noCache,
		Stdout:  o.stderr,
		Stderr:  o.stderr,
	})
	if err != nil {
		return err
	}

	switch req.PostAction {
	case "", shard.PostActionExport:
		return nil
	case shard.PostActionPush:
		return o.engine.Push(ctx, target.String(), o.stderr)
	default:
		return req.PostAction.Validate()
	}
}
