// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sthagen/pantsbuild-pex/internal/container"
	"github.com/sthagen/pantsbuild-pex/internal/identity"
	"github.com/sthagen/pantsbuild-pex/internal/provision"
	"github.com/sthagen/pantsbuild-pex/internal/shard"
)

const (
	// CacheModePull seeds the cache volume from the published cache image.
	CacheModePull CacheMode = "pull"
	// CacheModeEmpty starts from an empty cache volume.
	CacheModeEmpty CacheMode = "empty"

	// VolumeCache holds the persistent tool cache.
	VolumeCache = "cache"
	// VolumeTmp holds scratch space that survives between jobs.
	VolumeTmp = "tmp"
	// VolumeToxState holds tox environments.
	VolumeToxState = "tox-state"
)

var (
	// ErrInvalidCacheMode is the sentinel error wrapped by InvalidCacheModeError.
	ErrInvalidCacheMode = errors.New("invalid cache mode")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// CacheMode selects how the cache volume starts out.
	CacheMode string

	// InvalidCacheModeError is returned when a CacheMode is not recognized.
	InvalidCacheModeError struct {
		Value CacheMode
	}

	// InvalidConfigError collects the field errors of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config is the complete dtox configuration.
	Config struct {
		// Project prefixes volume and container names.
		Project  string               `mapstructure:"project" toml:"project"`
		Engine   container.EngineType `mapstructure:"engine" toml:"engine"`
		Base     LayerConfig          `mapstructure:"base" toml:"base"`
		Derived  LayerConfig          `mapstructure:"derived" toml:"derived"`
		Cache    CacheConfig          `mapstructure:"cache" toml:"cache"`
		Matrix   MatrixConfig         `mapstructure:"matrix" toml:"matrix"`
		Job      JobConfig            `mapstructure:"job" toml:"job"`
		Registry RegistryConfig       `mapstructure:"registry" toml:"registry"`

		// Root is the project directory; relative paths resolve against it.
		Root string `mapstructure:"-" toml:"-"`
		// Host is the invoking user.
		Host HostIdentity `mapstructure:"-" toml:"-"`
		// HostEnv is the environment snapshot taken at load time.
		HostEnv map[string]string `mapstructure:"-" toml:"-"`
	}

	// LayerConfig describes one image layer and the files its identity covers.
	LayerConfig struct {
		Repository string         `mapstructure:"repository" toml:"repository"`
		ContextDir string         `mapstructure:"context_dir" toml:"context_dir"`
		Dockerfile string         `mapstructure:"dockerfile" toml:"dockerfile"`
		Inputs     []string       `mapstructure:"inputs" toml:"inputs"`
		Mode       provision.Mode `mapstructure:"mode" toml:"mode,omitempty"`
	}

	// CacheConfig configures the cache volume and the cache image build.
	CacheConfig struct {
		Image string    `mapstructure:"image" toml:"image"`
		Tag   string    `mapstructure:"tag" toml:"tag"`
		Mode  CacheMode `mapstructure:"mode" toml:"mode"`
		// DataPath is where the cache lives inside containers.
		DataPath     string `mapstructure:"data_path" toml:"data_path"`
		VolumeSuffix string `mapstructure:"volume_suffix" toml:"volume_suffix"`
		// MergeBase is the image shard layers are stacked on; empty for none.
		MergeBase   string `mapstructure:"merge_base" toml:"merge_base"`
		ExportPath  string `mapstructure:"export_path" toml:"export_path"`
		Workdir     string `mapstructure:"workdir" toml:"workdir"`
		Parallelism int    `mapstructure:"parallelism" toml:"parallelism"`
		Command     string `mapstructure:"command" toml:"command"`
		// ContextDir and Dockerfile build the cache image in one engine build.
		ContextDir string `mapstructure:"context_dir" toml:"context_dir"`
		Dockerfile string `mapstructure:"dockerfile" toml:"dockerfile"`
		PexRepo    string `mapstructure:"pex_repo" toml:"pex_repo"`
		GitRef     string `mapstructure:"git_ref" toml:"git_ref"`
	}

	// MatrixConfig locates the CI test matrix and the declared shard list.
	MatrixConfig struct {
		File   string   `mapstructure:"file" toml:"file"`
		Job    string   `mapstructure:"job" toml:"job"`
		Key    string   `mapstructure:"key" toml:"key"`
		Shards []string `mapstructure:"shards" toml:"shards"`
	}

	// JobConfig holds the settings shared by every dispatched job.
	JobConfig struct {
		Workdir      string   `mapstructure:"workdir" toml:"workdir"`
		TmpPath      string   `mapstructure:"tmp_path" toml:"tmp_path"`
		ToxStatePath string   `mapstructure:"tox_state_path" toml:"tox_state_path"`
		ForwardEnv   []string `mapstructure:"forward_env" toml:"forward_env"`
		InspectShell string   `mapstructure:"inspect_shell" toml:"inspect_shell"`
		// FixupImage runs the volume ownership fixup; empty means the derived image.
		FixupImage string `mapstructure:"fixup_image" toml:"fixup_image"`
	}

	// RegistryConfig holds registry access settings. The password is only
	// ever taken from the environment.
	RegistryConfig struct {
		Username string `mapstructure:"username" toml:"username,omitempty"`
		Password string `mapstructure:"password" toml:"-"`
		Insecure bool   `mapstructure:"insecure" toml:"insecure"`
	}
)

// Error implements the error interface.
func (e *InvalidCacheModeError) Error() string {
	return fmt.Sprintf("invalid cache mode %q (expected pull or empty)", e.Value)
}

// Unwrap returns ErrInvalidCacheMode for errors.Is() compatibility.
func (e *InvalidCacheModeError) Unwrap() error { return ErrInvalidCacheMode }

// Validate returns an error if the CacheMode is not recognized.
func (m CacheMode) Validate() error {
	switch m {
	case CacheModePull, CacheModeEmpty:
		return nil
	default:
		return &InvalidCacheModeError{Value: m}
	}
}

// String returns the string representation of the CacheMode.
func (m CacheMode) String() string { return string(m) }

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig and the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// Validate checks the settings CUE cannot, mostly those that environment
// variables may have overridden after schema validation.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Base.Mode.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Cache.Mode.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.CacheImage(); err != nil {
		errs = append(errs, err)
	}
	for _, repo := range []string{c.Base.Repository, c.Derived.Repository} {
		if _, err := identity.NewImageRef(repo, identity.LatestTag); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Job.FixupImage != "" {
		if _, err := identity.ParseImageRef(c.Job.FixupImage); err != nil {
			errs = append(errs, err)
		}
	}
	if len(c.Base.Inputs) == 0 || len(c.Derived.Inputs) == 0 {
		errs = append(errs, errors.New("base and derived layers need at least one input"))
	}
	if c.Cache.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("cache.parallelism must be at least 1, got %d", c.Cache.Parallelism))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// BaseLayer returns the base image layer for identity resolution.
func (c *Config) BaseLayer() identity.Layer {
	return identity.Layer{Repository: c.Base.Repository, Inputs: identity.BuildInputSet(c.Base.Inputs)}
}

// DerivedLayer returns the derived image layer for identity resolution.
func (c *Config) DerivedLayer() identity.Layer {
	return identity.Layer{Repository: c.Derived.Repository, Inputs: identity.BuildInputSet(c.Derived.Inputs)}
}

// CacheImage returns the published cache image reference.
func (c *Config) CacheImage() (identity.ImageRef, error) {
	return identity.NewImageRef(c.Cache.Image, c.Cache.Tag)
}

// CacheImageTagged returns the cache image reference with tag, or the
// configured tag when tag is empty.
func (c *Config) CacheImageTagged(tag string) (identity.ImageRef, error) {
	if tag == "" {
		tag = c.Cache.Tag
	}
	return identity.NewImageRef(c.Cache.Image, tag)
}

// VolumeName returns the engine volume name for kind, e.g. "pex-cache-ci".
func (c *Config) VolumeName(kind string) string {
	return c.Project + "-" + kind + c.Cache.VolumeSuffix
}

// Path resolves p against the project root unless it is absolute.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// MatrixRef returns the location of the CI test matrix.
func (c *Config) MatrixRef() shard.MatrixRef {
	return shard.MatrixRef{File: c.Path(c.Matrix.File), Job: c.Matrix.Job, Key: c.Matrix.Key}
}

// ShardWorkdir returns the host directory holding shard artifacts.
func (c *Config) ShardWorkdir() shard.Workdir {
	return shard.Workdir(c.Path(c.Cache.Workdir))
}
