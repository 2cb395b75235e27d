// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sthagen/pantsbuild-pex/internal/container"
	"github.com/sthagen/pantsbuild-pex/internal/container/mocks"
	"github.com/sthagen/pantsbuild-pex/internal/identity"
	"github.com/sthagen/pantsbuild-pex/pkg/types"
)

var jobImage = identity.ImageRef{Repository: "ghcr.io/pantsbuild/pex/dev", Tag: "abc"}

func testJob() Job {
	return Job{
		Name:  "py311",
		Image: jobImage,
		Volumes: []VolumeBinding{
			Bind("/home/me/pex", "/development/pex"),
			Named("pex-cache", "/development/pex_dev"),
			Anonymous("/development/pex/.tox"),
		},
		ForwardEnv: []string{"PEX_VERBOSE", "UNSET_VAR"},
		Env:        map[string]string{"TOX_ENV": "py311"},
		WorkDir:    "/development/pex",
		Args:       []string{"tox", "-e", "py311", "--", "-k", "test_pex"},
	}
}

func TestRunOptions_Assembly(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, Config{
		HostEnv: map[string]string{"PEX_VERBOSE": "9", "HOME": "/home/me"},
		User:    "1000:100",
	})

	opts, err := d.RunOptions(testJob(), Options{})
	require.NoError(t, err)

	assert.Equal(t, "ghcr.io/pantsbuild/pex/dev:abc", opts.Image)
	assert.True(t, opts.Remove)
	assert.True(t, strings.HasPrefix(opts.Name, "dtox-py311-"), opts.Name)
	assert.Equal(t, "1000:100", opts.User)
	assert.Equal(t, []string{
		"/home/me/pex:/development/pex",
		"pex-cache:/development/pex_dev",
		"/development/pex/.tox",
	}, opts.Volumes)
	assert.Equal(t, map[string]string{"PEX_VERBOSE": "9", "TOX_ENV": "py311"}, opts.Env)
	assert.Equal(t, testJob().Args, opts.Command)
	assert.False(t, opts.Interactive)
	assert.False(t, opts.TTY)
	assert.Nil(t, opts.Stdin)
	assert.Empty(t, opts.Entrypoint)
}

func TestRunOptions_SSHAgentForwarding(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, Config{HostEnv: map[string]string{SSHAgentEnv: "/tmp/ssh-XYZ/agent.123"}})

	opts, err := d.RunOptions(testJob(), Options{})
	require.NoError(t, err)

	assert.Contains(t, opts.Volumes, "/tmp/ssh-XYZ/agent.123:"+SSHAgentMountPath)
	assert.Equal(t, SSHAgentMountPath, opts.Env[SSHAgentEnv])
}

func TestRunOptions_InteractiveInspect(t *testing.T) {
	t.Parallel()

	stdin := strings.NewReader("")
	d := NewDispatcher(nil, Config{Stdin: stdin, InspectShell: "/bin/sh"})

	opts, err := d.RunOptions(testJob(), Options{Interactive: true, Inspect: true})
	require.NoError(t, err)

	assert.True(t, opts.Interactive)
	assert.True(t, opts.TTY)
	assert.Same(t, stdin, opts.Stdin)
	assert.Equal(t, "/bin/sh", opts.Entrypoint)
	assert.Nil(t, opts.Command)
}

func TestRunOptions_DefaultInspectShell(t *testing.T) {
	t.Parallel()

	opts, err := NewDispatcher(nil, Config{}).RunOptions(testJob(), Options{Inspect: true})
	require.NoError(t, err)
	assert.Equal(t, DefaultInspectShell, opts.Entrypoint)
}

func TestRunOptions_InvalidBinding(t *testing.T) {
	t.Parallel()

	job := testJob()
	job.Volumes = append(job.Volumes, Named("bad/name", "/x"))

	_, err := NewDispatcher(nil, Config{}).RunOptions(job, Options{})
	assert.ErrorIs(t, err, ErrInvalidBinding)
}

func TestRun_ExitCodeVerbatim(t *testing.T) {
	t.Parallel()

	for _, code := range []types.ExitCode{0, 1, 7, 130} {
		t.Run(code.String(), func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			engine := mocks.NewMockEngine(ctrl)
			engine.EXPECT().Run(gomock.Any(), gomock.Any()).Return(&container.RunResult{ExitCode: code}, nil)

			got, err := NewDispatcher(engine, Config{}).Run(context.Background(), testJob(), Options{})
			require.NoError(t, err)
			assert.Equal(t, code, got)
		})
	}
}

func TestRun_InfrastructureFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	cause := errors.New("exec: docker: not found")
	engine.EXPECT().Run(gomock.Any(), gomock.Any()).Return(&container.RunResult{ExitCode: 1, Error: cause}, nil)

	_, err := NewDispatcher(engine, Config{}).Run(context.Background(), testJob(), Options{})

	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, "py311", dispatchErr.Job)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrDispatch)
}

func TestRun_CancellationRemovesContainer(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	ctx, cancel := context.WithCancel(context.Background())

	var name string
	engine.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, opts container.RunOptions) (*container.RunResult, error) {
			name = opts.Name
			cancel()
			return &container.RunResult{ExitCode: 130}, nil
		})
	engine.EXPECT().Remove(gomock.Any(), gomock.Any(), true).DoAndReturn(
		func(rmCtx context.Context, got string, _ bool) error {
			assert.NoError(t, rmCtx.Err(), "removal must not inherit the cancellation")
			assert.Equal(t, name, got)
			return nil
		})

	_, err := NewDispatcher(engine, Config{}).Run(ctx, testJob(), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVolumeBinding_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		b     VolumeBinding
		valid bool
	}{
		{"named", Named("pex-tmp", "/tmp"), true},
		{"bind", Bind("/src", "/development/pex"), true},
		{"anonymous", Anonymous("/development/pex/.tox"), true},
		{"relative target", Named("v", "tmp"), false},
		{"relative bind", Bind("src", "/x"), false},
		{"empty name", Named("", "/x"), false},
		{"unknown kind", VolumeBinding{Source: "x", Target: "/x", Kind: "tmpfs"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.b.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidBinding)
			}
		})
	}
}

func TestVolumeBinding_SpecReadOnly(t *testing.T) {
	t.Parallel()

	b := Bind("/etc/ssl", "/etc/ssl")
	b.ReadOnly = true
	assert.Equal(t, "/etc/ssl:/etc/ssl:ro", b.Spec())
}

func TestQuoteArgs(t *testing.T) {
	t.Parallel()

	got := quoteArgs([]string{"tox", "-e", "py311", "--", "-k", "name with space"})
	assert.Equal(t, `tox -e py311 -- -k 'name with space'`, got)
}

func TestContainerName(t *testing.T) {
	t.Parallel()

	a, b := containerName("py311/pip 23"), containerName("py311/pip 23")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "dtox-py311-pip-23-"), a)
	assert.True(t, strings.HasPrefix(containerName("///"), "dtox-job-"))
}
