// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/sthagen/pantsbuild-pex/internal/container"
	"github.com/sthagen/pantsbuild-pex/internal/issue"
	"github.com/sthagen/pantsbuild-pex/internal/provision"
	"github.com/sthagen/pantsbuild-pex/internal/shard"
	"github.com/sthagen/pantsbuild-pex/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "dtox"
	// ConfigFileName is the project configuration file looked up in the project root.
	ConfigFileName = "dtox.cue"
)

//go:embed config_schema.cue
var configSchema []byte

// envBindings maps config keys to the environment variables overriding them.
var envBindings = map[string]string{
	"engine":              "DTOX_ENGINE",
	"base.mode":           "BASE_MODE",
	"cache.mode":          "CACHE_MODE",
	"cache.tag":           "CACHE_TAG",
	"cache.volume_suffix": "DTOX_VOLUME_SUFFIX",
	"registry.username":   "DTOX_REGISTRY_USERNAME",
	"registry.password":   "DTOX_REGISTRY_PASSWORD",
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Project: "pex",
		Engine:  container.EngineTypeAuto,
		Base: LayerConfig{
			Repository: "ghcr.io/pantsbuild/pex/base",
			ContextDir: "docker/base",
			Dockerfile: "docker/base/Dockerfile",
			Inputs:     []string{"docker/base/Dockerfile", "docker/base/install_pythons.sh"},
			Mode:       provision.ModePull,
		},
		Derived: LayerConfig{
			Repository: "ghcr.io/pantsbuild/pex/dev",
			ContextDir: "docker/user",
			Dockerfile: "docker/user/Dockerfile",
			Inputs:     []string{"docker/user/Dockerfile"},
		},
		Cache: CacheConfig{
			Image:       "ghcr.io/pantsbuild/pex/cache",
			Tag:         "latest",
			Mode:        CacheModePull,
			DataPath:    "/development/pex_dev",
			MergeBase:   "docker.io/library/debian:stable-slim",
			ExportPath:  "dist/pex-cache.tar",
			Workdir:     ".dtox/shards",
			Parallelism: shard.DefaultParallelism,
			Command:     shard.DefaultCommand,
			ContextDir:  "docker/cache",
			Dockerfile:  "docker/cache/Dockerfile",
			PexRepo:     "https://github.com/pantsbuild/pex",
			GitRef:      "HEAD",
		},
		Matrix: MatrixConfig{
			File: ".github/workflows/ci.yml",
			Job:  "linux-tests",
			Key:  "tox-env",
		},
		Job: JobConfig{
			Workdir:      "/development/pex",
			TmpPath:      "/tmp",
			ToxStatePath: "/development/pex/.tox",
			ForwardEnv:   []string{"CI", "TERM", "PEX_VERBOSE", "_PEX_TEST_PROJECT_DIR"},
			InspectShell: "/bin/bash",
		},
	}
}

// Load reads the configuration for the project at opts.ProjectDir.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, _, err := loadWithOptions(ctx, opts)
	return cfg, err
}

// loadWithOptions returns the configuration and the path of the file it was
// read from, empty when only defaults and the environment apply.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	root, err := projectRoot(opts)
	if err != nil {
		return nil, "", err
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, "", fmt.Errorf("bind %s: %w", env, err)
		}
	}

	path, err := resolveConfigPath(opts, root)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Compare it with the output of 'dtox config show'").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Root = root
	cfg.HostEnv = snapshotEnv(os.Environ())
	// viper skips empty variables, but an empty CACHE_MODE selects the
	// empty cache.
	if mode, ok := cfg.HostEnv[envBindings["cache.mode"]]; ok && mode == "" {
		cfg.Cache.Mode = CacheModeEmpty
	}
	if cfg.Host, err = lookupHostIdentity(cfg.HostEnv); err != nil {
		return nil, "", err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Check the BASE_MODE, CACHE_MODE, CACHE_TAG and DTOX_ENGINE environment variables").
			Wrap(err).
			BuildError()
	}
	return &cfg, path, nil
}

func projectRoot(opts LoadOptions) (string, error) {
	switch {
	case opts.ProjectDir != "":
		return filepath.Abs(opts.ProjectDir)
	case opts.ConfigFilePath != "":
		return filepath.Abs(filepath.Dir(opts.ConfigFilePath))
	default:
		return os.Getwd()
	}
}

// resolveConfigPath returns the explicit config file, which must exist, or
// the project's dtox.cue when present.
func resolveConfigPath(opts LoadOptions, root string) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'dtox config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}
	if p := filepath.Join(root, ConfigFileName); fileExists(p) {
		return p, nil
	}
	return "", nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("project", d.Project)
	v.SetDefault("engine", string(d.Engine))

	for prefix, l := range map[string]LayerConfig{"base": d.Base, "derived": d.Derived} {
		v.SetDefault(prefix+".repository", l.Repository)
		v.SetDefault(prefix+".context_dir", l.ContextDir)
		v.SetDefault(prefix+".dockerfile", l.Dockerfile)
		v.SetDefault(prefix+".inputs", l.Inputs)
	}
	v.SetDefault("base.mode", string(d.Base.Mode))

	v.SetDefault("cache.image", d.Cache.Image)
	v.SetDefault("cache.tag", d.Cache.Tag)
	v.SetDefault("cache.mode", string(d.Cache.Mode))
	v.SetDefault("cache.data_path", d.Cache.DataPath)
	v.SetDefault("cache.volume_suffix", d.Cache.VolumeSuffix)
	v.SetDefault("cache.merge_base", d.Cache.MergeBase)
	v.SetDefault("cache.export_path", d.Cache.ExportPath)
	v.SetDefault("cache.workdir", d.Cache.Workdir)
	v.SetDefault("cache.parallelism", d.Cache.Parallelism)
	v.SetDefault("cache.command", d.Cache.Command)
	v.SetDefault("cache.context_dir", d.Cache.ContextDir)
	v.SetDefault("cache.dockerfile", d.Cache.Dockerfile)
	v.SetDefault("cache.pex_repo", d.Cache.PexRepo)
	v.SetDefault("cache.git_ref", d.Cache.GitRef)

	v.SetDefault("matrix.file", d.Matrix.File)
	v.SetDefault("matrix.job", d.Matrix.Job)
	v.SetDefault("matrix.key", d.Matrix.Key)
	v.SetDefault("matrix.shards", d.Matrix.Shards)

	v.SetDefault("job.workdir", d.Job.Workdir)
	v.SetDefault("job.tmp_path", d.Job.TmpPath)
	v.SetDefault("job.tox_state_path", d.Job.ToxStatePath)
	v.SetDefault("job.forward_env", d.Job.ForwardEnv)
	v.SetDefault("job.inspect_shell", d.Job.InspectShell)
	v.SetDefault("job.fixup_image", d.Job.FixupImage)

	v.SetDefault("registry.username", d.Registry.Username)
	v.SetDefault("registry.insecure", d.Registry.Insecure)
}

// loadCUEIntoViper validates the file against #Config and merges it over the
// defaults. Fields stay optional, so values need not be concrete.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	schema, err := cueutil.CompileSchema(configSchema, "#Config")
	if err != nil {
		return err
	}

	var settings map[string]any
	if err := schema.Decode(data, &settings, cueutil.WithFilename(path), cueutil.WithConcrete(false)); err != nil {
		return err
	}

	if err := v.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// snapshotEnv turns os.Environ output into a map; later duplicates win.
func snapshotEnv(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
