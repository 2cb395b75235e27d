// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sthagen/pantsbuild-pex/internal/config"
	"github.com/sthagen/pantsbuild-pex/internal/container"
	"github.com/sthagen/pantsbuild-pex/internal/container/mocks"
	"github.com/sthagen/pantsbuild-pex/internal/identity"
	"github.com/sthagen/pantsbuild-pex/internal/testutil"
	"github.com/sthagen/pantsbuild-pex/pkg/types"
)

const ciWorkflow = `
jobs:
  linux-tests:
    strategy:
      matrix:
        tox-env: [py27, py311, pypy310]
`

type (
	// staticConfig serves a fixed configuration.
	staticConfig struct {
		cfg  *config.Config
		path string
	}

	harness struct {
		app    *App
		engine *mocks.MockEngine
		cfg    *config.Config
		stdout bytes.Buffer
		stderr bytes.Buffer
	}
)

func (s staticConfig) Load(ctx context.Context, _ config.LoadOptions) (*config.Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := *s.cfg
	return &c, nil
}

func (s staticConfig) Path(config.LoadOptions) (string, error) { return s.path, nil }

func newHarness(t *testing.T) *harness {
	t.Helper()

	root := t.TempDir()
	testutil.MustWriteFile(t, root, "docker/base/Dockerfile", "FROM debian:stable-slim\n")
	testutil.MustWriteFile(t, root, "docker/base/install_pythons.sh", "#!/bin/sh\n")
	testutil.MustWriteFile(t, root, "docker/user/Dockerfile", "ARG BASE_IMAGE\nFROM $BASE_IMAGE\n")
	testutil.MustWriteFile(t, root, ".github/workflows/ci.yml", ciWorkflow)

	cfg := config.DefaultConfig()
	cfg.Root = root
	cfg.Cache.Mode = config.CacheModeEmpty
	cfg.Host = config.HostIdentity{User: "pex", UID: "1000", Group: "pex", GID: "1000"}
	cfg.HostEnv = map[string]string{}

	h := &harness{engine: mocks.NewMockEngine(gomock.NewController(t)), cfg: cfg}
	h.engine.EXPECT().Name().Return("docker").AnyTimes()
	h.app = NewApp(Dependencies{
		Config: staticConfig{cfg: cfg},
		NewEngine: func(container.EngineType) (container.Engine, error) {
			return h.engine, nil
		},
		Stdin:  &bytes.Buffer{},
		Stdout: &h.stdout,
		Stderr: &h.stderr,
	})
	return h
}

func (h *harness) execute(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRootCommand(h.app)
	root.SetArgs(args)
	root.SetOut(&h.stdout)
	root.SetErr(&h.stderr)
	return root.ExecuteContext(t.Context())
}

func (h *harness) refs(t *testing.T) identity.Refs {
	t.Helper()
	refs, err := identity.ResolveRefs(os.DirFS(h.cfg.Root), h.cfg.BaseLayer(), h.cfg.DerivedLayer())
	require.NoError(t, err)
	return refs
}

func requireExitCode(t *testing.T, err error, want types.ExitCode) {
	t.Helper()
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "want *ExitError, got %v", err)
	assert.Equal(t, want, exitErr.Code)
}

func TestRunCommand_PassesExitCodeThrough(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	refs := h.refs(t)

	var ran container.RunOptions
	h.engine.EXPECT().ImageExists(gomock.Any(), gomock.Any()).Return(true, nil).Times(2)
	h.engine.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, opts container.RunOptions) (*container.RunResult, error) {
		ran = opts
		return &container.RunResult{ExitCode: 3}, nil
	})

	err := h.execute(t, "run", "py311", "--", "-k", "test_pex_root")
	requireExitCode(t, err, 3)
	assert.Nil(t, errors.Unwrap(err), "a job exit code is not an error")

	assert.Equal(t, refs.Derived.String(), ran.Image)
	assert.Equal(t, []string{"tox", "-e", "py311", "--", "-k", "test_pex_root"}, ran.Command)
	assert.False(t, ran.TTY, "no TTY without a terminal")
	assert.Empty(t, h.stderr.String())
}

func TestRunCommand_Success(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.engine.EXPECT().ImageExists(gomock.Any(), gomock.Any()).Return(true, nil).Times(2)
	h.engine.EXPECT().Run(gomock.Any(), gomock.Any()).Return(&container.RunResult{}, nil)

	require.NoError(t, h.execute(t, "run", "py27"))
}

func TestRunCommand_EngineUnavailable(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.app.NewEngine = func(container.EngineType) (container.Engine, error) {
		return nil, &container.EngineNotAvailableError{Engine: "docker", Reason: "daemon not running"}
	}

	err := h.execute(t, "run", "py311")
	requireExitCode(t, err, 1)
	require.ErrorIs(t, err, container.ErrNoEngineAvailable)
	assert.Contains(t, h.stderr.String(), "daemon not running")
}

func TestRunCommand_InvalidEngineFlag(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	err := h.execute(t, "--engine", "containerd", "run", "py311")
	requireExitCode(t, err, 1)
	require.ErrorIs(t, err, container.ErrInvalidEngineType)
}

func TestIdentityCommand(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.app.NewEngine = func(container.EngineType) (container.Engine, error) {
		t.Fatal("identity must not reach the container engine")
		return nil, nil
	}
	refs := h.refs(t)

	require.NoError(t, h.execute(t, "identity", "--layer", "derived"))
	assert.Equal(t, refs.Derived.String()+"\n", h.stdout.String())

	h.stdout.Reset()
	require.NoError(t, h.execute(t, "identity"))
	assert.Contains(t, h.stdout.String(), refs.Base.String())
	assert.Contains(t, h.stdout.String(), refs.Derived.String())

	err := h.execute(t, "identity", "--layer", "cache")
	requireExitCode(t, err, 1)
}

func TestIdentityCommand_MissingInput(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, os.Remove(h.cfg.Path("docker/user/Dockerfile")))

	err := h.execute(t, "identity")
	requireExitCode(t, err, 1)
	require.ErrorIs(t, err, identity.ErrInputRead)
	assert.Contains(t, h.stderr.String(), "docker/user/Dockerfile")
}

func TestMatrixCommand(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.execute(t, "matrix"))
	for _, env := range []string{"py27", "py311", "pypy310"} {
		assert.Contains(t, h.stdout.String(), env)
	}

	h.stdout.Reset()
	require.NoError(t, h.execute(t, "matrix", "--check"))
	assert.Contains(t, h.stdout.String(), "3 cache shards match")
}

func TestMatrixCommand_CheckMismatch(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.cfg.Matrix.Shards = []string{"py27", "py311", "py314"}

	err := h.execute(t, "matrix", "--check")
	requireExitCode(t, err, 1)
	assert.Contains(t, h.stderr.String(), "pypy310")
	assert.Contains(t, h.stderr.String(), "py314")
}

func TestCacheCommand_RejectsInvalidFlags(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.app.NewEngine = func(container.EngineType) (container.Engine, error) {
		t.Fatal("invalid flags must be rejected before the engine is created")
		return nil, nil
	}

	requireExitCode(t, h.execute(t, "cache", "--post-action", "upload"), 1)
	assert.Contains(t, h.stderr.String(), "upload")
}

func TestCacheCommand_ImageModePushes(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	gomock.InOrder(
		h.engine.EXPECT().Build(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, opts container.BuildOptions) error {
			assert.Equal(t, []string{"ghcr.io/pantsbuild/pex/cache:nightly"}, opts.Tags)
			assert.Equal(t, "py27,py311,pypy310", opts.BuildArgs["TOX_ENVS"])
			return nil
		}),
		h.engine.EXPECT().Push(gomock.Any(), "ghcr.io/pantsbuild/pex/cache:nightly", gomock.Any()).Return(nil),
	)

	require.NoError(t, h.execute(t, "cache", "--mode", "image", "--post-action", "push", "--tag", "nightly"))
	assert.Contains(t, h.stdout.String(), "cache image built")
}

func TestConfigCommands(t *testing.T) {
	t.Parallel()

	t.Run("show toml", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		require.NoError(t, h.execute(t, "config", "show", "--format", "toml"))
		assert.Contains(t, h.stdout.String(), "ghcr.io/pantsbuild/pex/cache")
		assert.Contains(t, h.stdout.String(), "[cache]")
	})

	t.Run("show cue", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		require.NoError(t, h.execute(t, "config", "show"))
		assert.Contains(t, h.stdout.String(), "ghcr.io/pantsbuild/pex/cache")
	})

	t.Run("show unknown format", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		requireExitCode(t, h.execute(t, "config", "show", "--format", "yaml"), 1)
	})

	t.Run("path without file", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		require.NoError(t, h.execute(t, "config", "path"))
		assert.Contains(t, h.stdout.String(), "(using defaults)")
	})
}

func TestSplitRunArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		args        []string
		dash        int
		wantTarget  string
		wantPosargs []string
	}{
		{name: "none", args: nil, dash: -1, wantTarget: "", wantPosargs: nil},
		{name: "target only", args: []string{"py311"}, dash: -1, wantTarget: "py311", wantPosargs: []string{}},
		{name: "posargs after dash", args: []string{"py311", "-k", "foo"}, dash: 1, wantTarget: "py311", wantPosargs: []string{"-k", "foo"}},
		{name: "dash first", args: []string{"-k", "foo"}, dash: 0, wantTarget: "", wantPosargs: []string{"-k", "foo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			target, posargs := splitRunArgs(tt.args, tt.dash)
			assert.Equal(t, tt.wantTarget, target)
			assert.Equal(t, tt.wantPosargs, posargs)
		})
	}
}
