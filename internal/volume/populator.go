// SPDX-License-Identifier: MPL-2.0

package volume

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/sthagen/pantsbuild-pex/internal/container"
	"github.com/sthagen/pantsbuild-pex/internal/identity"
)

// SeedLabel is the volume label recording the cache image ID a volume was seeded from.
const SeedLabel = "dtox.seed"

const (
	// ResultSeeded means the volume was rebuilt from the cache image.
	ResultSeeded Result = "seeded"
	// ResultAlreadySeeded means the volume already held the current cache.
	ResultAlreadySeeded Result = "already-seeded"
	// ResultCold means no cache could be applied; the volume is empty or stale.
	ResultCold Result = "cold"
)

const (
	StagePull  Stage = "pull"
	StageSeed  Stage = "seed"
	StageChown Stage = "chown"
)

// ErrPopulation is the sentinel error wrapped by PopulationError.
var ErrPopulation = errors.New("cache volume population failed")

type (
	// Result reports what Populate did.
	Result string

	// Stage names the step of population that failed.
	Stage string

	// CacheVolume is a named volume mounted at MountPath inside job containers.
	CacheVolume struct {
		Name      string
		MountPath string
	}

	// Request describes one population.
	Request struct {
		Volume CacheVolume
		// CacheImage is the published image whose MountPath contents seed the volume.
		CacheImage identity.ImageRef
		// FixupImage runs the ownership fixup; it must provide chown.
		FixupImage identity.ImageRef
		// Owner is the "uid:gid" that must own the mount path afterwards.
		Owner string
	}

	// PopulationError describes a recoverable failure. Populate logs it and
	// reports a cold cache rather than returning it, except for StageChown.
	PopulationError struct {
		Volume string
		Stage  Stage
		Err    error
	}

	// Populator seeds cache volumes.
	Populator struct {
		engine container.Engine
		logger *log.Logger
		output io.Writer
	}
)

// Error implements the error interface.
func (e *PopulationError) Error() string {
	return fmt.Sprintf("populate volume %s (%s): %v", e.Volume, e.Stage, e.Err)
}

// Unwrap exposes both ErrPopulation and the cause.
func (e *PopulationError) Unwrap() []error { return []error{ErrPopulation, e.Err} }

// NewPopulator creates a Populator. A nil logger discards log output and a
// nil output discards engine progress.
func NewPopulator(engine container.Engine, logger *log.Logger, output io.Writer) *Populator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if output == nil {
		output = io.Discard
	}
	return &Populator{engine: engine, logger: logger, output: output}
}

// Populate brings req.Volume in line with the current cache image.
//
// The returned error is non-nil only for failures that leave the volume
// unusable by jobs: the engine refusing volume operations or the ownership
// fixup failing. A missing or uncopyable cache image yields ResultCold.
func (p *Populator) Populate(ctx context.Context, req Request) (Result, error) {
	logger := p.logger.With("volume", req.Volume.Name, "cache", req.CacheImage.String())

	seedID, perr := p.fetchCache(ctx, req)
	if perr != nil {
		logger.Warn("cache image unavailable, continuing with a cold cache", "err", perr)
		created, err := p.ensureExists(ctx, req.Volume.Name)
		if err != nil || !created {
			return ResultCold, err
		}
		if err := p.chown(ctx, req); err != nil {
			p.discard(ctx, req.Volume.Name)
			return "", err
		}
		return ResultCold, nil
	}

	info, err := p.engine.VolumeInspect(ctx, req.Volume.Name)
	switch {
	case err == nil && info.Labels[SeedLabel] == seedID:
		logger.Debug("volume already seeded from this cache image", "seed", seedID)
		return ResultAlreadySeeded, nil
	case err != nil && !errors.Is(err, container.ErrVolumeNotFound):
		return "", fmt.Errorf("inspect volume %s: %w", req.Volume.Name, err)
	}

	if err := p.recreate(ctx, req.Volume.Name, map[string]string{SeedLabel: seedID}); err != nil {
		return "", err
	}

	logger.Info("seeding cache volume", "seed", seedID)
	if perr := p.seed(ctx, req); perr != nil {
		logger.Warn("seeding failed, continuing with a cold cache", "err", perr)
		if err := p.recreate(context.WithoutCancel(ctx), req.Volume.Name, nil); err != nil {
			return "", err
		}
		if err := p.chown(ctx, req); err != nil {
			p.discard(ctx, req.Volume.Name)
			return "", err
		}
		return ResultCold, nil
	}

	// The seed label only survives on a volume whose fixup succeeded.
	if err := p.chown(ctx, req); err != nil {
		p.discard(ctx, req.Volume.Name)
		return "", err
	}
	return ResultSeeded, nil
}

// fetchCache pulls the cache image and returns its content ID.
func (p *Populator) fetchCache(ctx context.Context, req Request) (string, *PopulationError) {
	if err := p.engine.Pull(ctx, req.CacheImage.String(), p.output); err != nil {
		return "", &PopulationError{Volume: req.Volume.Name, Stage: StagePull, Err: err}
	}
	id, err := p.engine.ImageID(ctx, req.CacheImage.String())
	if err != nil {
		return "", &PopulationError{Volume: req.Volume.Name, Stage: StagePull, Err: err}
	}
	return id, nil
}

// seed runs a disposable container of the cache image with the empty volume
// mounted; the engine copies the image's files at the mount path into it.
func (p *Populator) seed(ctx context.Context, req Request) *PopulationError {
	result, err := p.engine.Run(ctx, container.RunOptions{
		Image:      req.CacheImage.String(),
		Entrypoint: "true",
		Remove:     true,
		Volumes:    []string{req.Volume.Name + ":" + req.Volume.MountPath},
		Stdout:     p.output,
		Stderr:     p.output,
	})
	if err == nil && result.Error != nil {
		err = result.Error
	}
	if err == nil && !result.ExitCode.IsSuccess() {
		err = fmt.Errorf("seed container exited with code %d", result.ExitCode)
	}
	if err != nil {
		return &PopulationError{Volume: req.Volume.Name, Stage: StageSeed, Err: err}
	}
	return nil
}

// chown hands the mount path to the job user. It runs as root.
func (p *Populator) chown(ctx context.Context, req Request) error {
	if req.Owner == "" {
		return nil
	}
	result, err := p.engine.Run(ctx, container.RunOptions{
		Image:      req.FixupImage.String(),
		Entrypoint: "chown",
		User:       "root",
		Remove:     true,
		Volumes:    []string{req.Volume.Name + ":" + req.Volume.MountPath},
		Command:    []string{"-R", req.Owner, req.Volume.MountPath},
		Stdout:     p.output,
		Stderr:     p.output,
	})
	if err == nil && result.Error != nil {
		err = result.Error
	}
	if err == nil && !result.ExitCode.IsSuccess() {
		err = fmt.Errorf("chown exited with code %d", result.ExitCode)
	}
	if err != nil {
		return &PopulationError{Volume: req.Volume.Name, Stage: StageChown, Err: err}
	}
	return nil
}

func (p *Populator) recreate(ctx context.Context, name string, labels map[string]string) error {
	if err := p.engine.VolumeRemove(ctx, name); err != nil {
		return fmt.Errorf("remove volume %s: %w", name, err)
	}
	if err := p.engine.VolumeCreate(ctx, name, labels); err != nil {
		return fmt.Errorf("create volume %s: %w", name, err)
	}
	return nil
}

// discard removes the volume so the next Populate starts from scratch. It
// runs even when ctx is already cancelled.
func (p *Populator) discard(ctx context.Context, name string) {
	if err := p.engine.VolumeRemove(context.WithoutCancel(ctx), name); err != nil {
		p.logger.Warn("could not remove volume after a failed population", "volume", name, "err", err)
	}
}

// ensureExists creates an unlabeled volume if none exists and reports
// whether it did.
func (p *Populator) ensureExists(ctx context.Context, name string) (bool, error) {
	_, err := p.engine.VolumeInspect(ctx, name)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, container.ErrVolumeNotFound) {
		return false, fmt.Errorf("inspect volume %s: %w", name, err)
	}
	if err := p.engine.VolumeCreate(ctx, name, nil); err != nil {
		return false, fmt.Errorf("create volume %s: %w", name, err)
	}
	return true, nil
}
