// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"context"
	"errors"

	"github.com/sthagen/pantsbuild-pex/internal/config"
	"github.com/sthagen/pantsbuild-pex/internal/dispatch"
	"github.com/sthagen/pantsbuild-pex/internal/identity"
	"github.com/sthagen/pantsbuild-pex/pkg/types"
)

// ErrNoTarget is returned when a run names neither a target nor inspect mode.
var ErrNoTarget = errors.New("no target given")

// RunRequest selects one job.
type RunRequest struct {
	// Target is the tox environment to run; empty only with Inspect.
	Target string
	// Args are passed to tox after "--".
	Args []string
	// Inspect opens the inspect shell instead of running the target.
	Inspect bool
	// NoCachePull skips cache volume population.
	NoCachePull bool
	// Interactive attaches stdin and a TTY.
	Interactive bool
}

// Run prepares the images, populates the cache volume, and runs one job,
// returning its exit code verbatim.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (types.ExitCode, error) {
	if req.Target == "" && !req.Inspect {
		return 0, ErrNoTarget
	}

	refs, err := o.Prepare(ctx)
	if err != nil {
		return 0, err
	}
	if !req.NoCachePull {
		if _, err := o.Populate(ctx, refs); err != nil {
			return 0, err
		}
	}

	job := o.Job(refs.Derived, jobName(req.Target), toxArgs(req.Target, req.Args))
	return o.dispatcher.Run(ctx, job, dispatch.Options{Interactive: req.Interactive, Inspect: req.Inspect})
}

// Job returns a job on image with the project's standard bindings: the
// project checkout at the job workdir and the persistent cache, tmp and
// tox-state volumes.
func (o *Orchestrator) Job(image identity.ImageRef, name string, args []string) dispatch.Job {
	cfg := o.cfg
	return dispatch.Job{
		Name:  name,
		Image: image,
		Volumes: []dispatch.VolumeBinding{
			dispatch.Bind(cfg.Root, cfg.Job.Workdir),
			dispatch.Named(cfg.VolumeName(config.VolumeCache), cfg.Cache.DataPath),
			dispatch.Named(cfg.VolumeName(config.VolumeTmp), cfg.Job.TmpPath),
			dispatch.Named(cfg.VolumeName(config.VolumeToxState), cfg.Job.ToxStatePath),
		},
		ForwardEnv: cfg.Job.ForwardEnv,
		WorkDir:    cfg.Job.Workdir,
		Args:       args,
	}
}

func jobName(target string) string {
	if target == "" {
		return "inspect"
	}
	return target
}

func toxArgs(target string, posargs []string) []string {
	if target == "" {
		return nil
	}
	args := []string{"tox", "-e", target}
	if len(posargs) > 0 {
		args = append(append(args, "--"), posargs...)
	}
	return args
}
