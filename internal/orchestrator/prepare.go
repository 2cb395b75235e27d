// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"context"
	"maps"

	"github.com/sthagen/pantsbuild-pex/internal/config"
	"github.com/sthagen/pantsbuild-pex/internal/identity"
	"github.com/sthagen/pantsbuild-pex/internal/issue"
	"github.com/sthagen/pantsbuild-pex/internal/provision"
	"github.com/sthagen/pantsbuild-pex/internal/volume"
)

// BaseImageArg is the derived image build argument naming its base.
const BaseImageArg = "BASE_IMAGE"

// Refs resolves the base and derived image references from the configured
// build inputs. No container operation happens before this succeeds.
func (o *Orchestrator) Refs() (identity.Refs, error) {
	refs, err := identity.ResolveRefs(o.fsys, o.cfg.BaseLayer(), o.cfg.DerivedLayer())
	if err != nil {
		return identity.Refs{}, issue.NewErrorContext().
			WithOperation("resolve image identity").
			WithResource(o.cfg.Root).
			WithSuggestion("Check the base.inputs and derived.inputs paths in " + config.ConfigFileName).
			Wrap(err).
			BuildError()
	}
	return refs, nil
}

// Prepare ensures the base image with the configured base mode, then the
// derived image, which is always built locally on top of it.
func (o *Orchestrator) Prepare(ctx context.Context) (identity.Refs, error) {
	refs, err := o.Refs()
	if err != nil {
		return identity.Refs{}, err
	}

	outcome, err := o.provisioner.Ensure(ctx, refs.Base, o.cfg.Base.Mode, o.baseSpec())
	if err != nil {
		return identity.Refs{}, err
	}
	o.logger.Debug("base image ready", "image", refs.Base.String(), "outcome", outcome)

	outcome, err = o.provisioner.Ensure(ctx, refs.Derived, provision.ModeBuild, o.derivedSpec(refs.Base))
	if err != nil {
		return identity.Refs{}, err
	}
	o.logger.Debug("derived image ready", "image", refs.Derived.String(), "outcome", outcome)
	return refs, nil
}

func (o *Orchestrator) baseSpec() provision.BuildSpec {
	return provision.BuildSpec{
		ContextDir: o.cfg.Path(o.cfg.Base.ContextDir),
		Dockerfile: o.cfg.Path(o.cfg.Base.Dockerfile),
	}
}

func (o *Orchestrator) derivedSpec(base identity.ImageRef) provision.BuildSpec {
	args := maps.Clone(o.cfg.Host.BuildArgs())
	args[BaseImageArg] = base.String()
	return provision.BuildSpec{
		ContextDir: o.cfg.Path(o.cfg.Derived.ContextDir),
		Dockerfile: o.cfg.Path(o.cfg.Derived.Dockerfile),
		BuildArgs:  args,
	}
}

// Populate seeds the cache volume from the published cache image. It does
// nothing in empty cache mode.
func (o *Orchestrator) Populate(ctx context.Context, refs identity.Refs) (volume.Result, error) {
	if o.cfg.Cache.Mode != config.CacheModePull {
		o.logger.Debug("cache population skipped", "mode", o.cfg.Cache.Mode)
		return volume.ResultCold, nil
	}

	cacheImage, err := o.cfg.CacheImage()
	if err != nil {
		return "", err
	}
	fixup := refs.Derived
	if o.cfg.Job.FixupImage != "" {
		if fixup, err = identity.ParseImageRef(o.cfg.Job.FixupImage); err != nil {
			return "", err
		}
	}

	result, err := o.populator.Populate(ctx, volume.Request{
		Volume:     o.cacheVolume(),
		CacheImage: cacheImage,
		FixupImage: fixup,
		Owner:      o.cfg.Host.Owner(),
	})
	if err != nil {
		return "", issue.NewErrorContext().
			WithOperation("populate cache volume").
			WithResource(o.cfg.VolumeName(config.VolumeCache)).
			WithSuggestion("Remove the volume and retry (try: " + o.engine.Name() + " volume rm " + o.cfg.VolumeName(config.VolumeCache) + ")").
			WithSuggestion("Set CACHE_MODE=empty to start from an empty cache").
			Wrap(err).
			BuildError()
	}
	o.logger.Info("cache volume ready", "volume", o.cfg.VolumeName(config.VolumeCache), "result", result)
	return result, nil
}

func (o *Orchestrator) cacheVolume() volume.CacheVolume {
	return volume.CacheVolume{Name: o.cfg.VolumeName(config.VolumeCache), MountPath: o.cfg.Cache.DataPath}
}
