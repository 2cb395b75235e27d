// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/sthagen/pantsbuild-pex/internal/container"
	"github.com/sthagen/pantsbuild-pex/internal/identity"
)

// ImageProvisioner implements Provisioner on top of a container engine.
//
// Concurrent Ensure calls for the same reference inside one process share a
// single check-and-build. Separate processes may still race and build the
// same identity twice; the result is identical so the race is tolerated.
type ImageProvisioner struct {
	engine container.Engine
	config *Config
	group  singleflight.Group
}

// NewImageProvisioner creates a provisioner bound to engine.
func NewImageProvisioner(engine container.Engine, opts ...Option) *ImageProvisioner {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	return &ImageProvisioner{engine: engine, config: cfg}
}

// Ensure makes ref available locally.
//
// A present image is returned as-is without consulting mode. An absent image
// is built, pulled, or reported as ErrImageMissing depending on mode. Failure
// to query the engine is fatal; it is never mistaken for absence.
func (p *ImageProvisioner) Ensure(ctx context.Context, ref identity.ImageRef, mode Mode, spec BuildSpec) (Outcome, error) {
	if err := mode.Validate(); err != nil {
		return "", err
	}
	if err := ref.Validate(); err != nil {
		return "", err
	}

	v, err, _ := p.group.Do(ref.String(), func() (any, error) {
		return p.ensure(ctx, ref, mode, spec)
	})
	if err != nil {
		return "", err
	}
	return v.(Outcome), nil
}

func (p *ImageProvisioner) ensure(ctx context.Context, ref identity.ImageRef, mode Mode, spec BuildSpec) (Outcome, error) {
	logger := p.config.Logger.With("image", ref.String(), "mode", mode)

	exists, err := p.engine.ImageExists(ctx, ref.String())
	if err != nil {
		return "", fmt.Errorf("check image %s: %w", ref, err)
	}
	if exists {
		logger.Debug("image present, skipping provisioning")
		return OutcomePresent, nil
	}

	switch mode {
	case ModeBuild:
		logger.Info("building image", "context", spec.ContextDir)
		if err := p.engine.Build(ctx, p.buildOptions(ref, spec)); err != nil {
			return "", &BuildError{Ref: ref, Err: err}
		}
		return OutcomeBuilt, nil

	case ModePull:
		logger.Info("pulling image")
		if err := p.engine.Pull(ctx, ref.String(), p.config.Output); err != nil {
			return "", &PullError{Ref: ref, Err: err}
		}
		return OutcomePulled, nil

	default:
		return "", fmt.Errorf("%s: %w", ref, ErrImageMissing)
	}
}

func (p *ImageProvisioner) buildOptions(ref identity.ImageRef, spec BuildSpec) container.BuildOptions {
	tags := []string{ref.String()}
	if p.config.TagLatest && ref.Tag != identity.LatestTag {
		tags = append(tags, ref.Latest().String())
	}
	return container.BuildOptions{
		ContextDir: spec.ContextDir,
		Dockerfile: spec.Dockerfile,
		Tags:       tags,
		BuildArgs:  spec.BuildArgs,
		NoCache:    p.config.NoCache,
		Stdout:     p.config.Output,
		Stderr:     p.config.Output,
	}
}
