// SPDX-License-Identifier: MPL-2.0

package container

import (
	"errors"
	"slices"
	"testing"
)

func TestEngineNotAvailableError(t *testing.T) {
	t.Parallel()

	err := &EngineNotAvailableError{Engine: "podman", Reason: "not installed"}

	expected := "container engine 'podman' is not available: not installed"
	if err.Error() != expected {
		t.Errorf("EngineNotAvailableError.Error() = %s, want %s", err.Error(), expected)
	}
	if !errors.Is(err, ErrNoEngineAvailable) {
		t.Error("EngineNotAvailableError should unwrap to ErrNoEngineAvailable")
	}
}

func TestEngineType_Validate(t *testing.T) {
	t.Parallel()

	for _, valid := range []EngineType{EngineTypeDocker, EngineTypePodman, EngineTypeAuto} {
		if err := valid.Validate(); err != nil {
			t.Errorf("%q.Validate() = %v", valid, err)
		}
	}
	if err := EngineType("containerd").Validate(); !errors.Is(err, ErrInvalidEngineType) {
		t.Errorf("Validate() = %v, want ErrInvalidEngineType", err)
	}
}

func TestNewEngine_UnknownType(t *testing.T) {
	t.Parallel()

	if _, err := NewEngine("unknown"); !errors.Is(err, ErrInvalidEngineType) {
		t.Errorf("NewEngine(unknown) error = %v, want ErrInvalidEngineType", err)
	}
}

func TestNewEngine_Fallback(t *testing.T) {
	t.Parallel()

	// This test verifies the selection logic, not actual availability.
	for _, typ := range []EngineType{EngineTypeDocker, EngineTypePodman, EngineTypeAuto} {
		engine, err := NewEngine(typ)
		if err != nil {
			var notAvailable *EngineNotAvailableError
			if !errors.As(err, &notAvailable) {
				t.Errorf("NewEngine(%s) error = %T, want *EngineNotAvailableError", typ, err)
			}
			continue
		}
		if engine.Name() != "podman" && engine.Name() != "docker" {
			t.Errorf("NewEngine(%s) returned %s", typ, engine.Name())
		}
	}
}

func TestEngines_AvailableWithNoPath(t *testing.T) {
	t.Parallel()

	if (&DockerEngine{BaseCLIEngine: NewBaseCLIEngine("")}).Available() {
		t.Error("DockerEngine with empty path should not be available")
	}
	if (&PodmanEngine{BaseCLIEngine: NewBaseCLIEngine("")}).Available() {
		t.Error("PodmanEngine with empty path should not be available")
	}
}

func TestMakeUsernsKeepIDAdder(t *testing.T) {
	t.Parallel()
	transformer := makeUsernsKeepIDAdder()

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "simple run command",
			args: []string{"run", "debian:stable-slim"},
			want: []string{"run", "--userns=keep-id", "debian:stable-slim"},
		},
		{
			name: "run with valued flags",
			args: []string{"run", "--rm", "--name", "job", "--user", "root", "-e", "A=b", "-v", "vol:/x", "img", "chown", "-R", "1:1", "/x"},
			want: []string{"run", "--rm", "--name", "job", "--user", "root", "-e", "A=b", "-v", "vol:/x", "--userns=keep-id", "img", "chown", "-R", "1:1", "/x"},
		},
		{
			name: "inspect entrypoint",
			args: []string{"run", "--entrypoint", "/bin/bash", "-i", "-t", "img"},
			want: []string{"run", "--entrypoint", "/bin/bash", "-i", "-t", "--userns=keep-id", "img"},
		},
		{
			name: "non-run command unchanged",
			args: []string{"build", "-t", "myimage", "."},
			want: []string{"build", "-t", "myimage", "."},
		},
		{
			name: "empty args unchanged",
			args: []string{},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := transformer(tt.args); !slices.Equal(got, tt.want) {
				t.Errorf("makeUsernsKeepIDAdder() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddSELinuxLabel(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"/src:/development/pex":    "/src:/development/pex:z",
		"/src:/development/pex:ro": "/src:/development/pex:ro,z",
		"/src:/x:Z":                "/src:/x:Z",
		"pex-cache:/x":             "pex-cache:/x",
		"/development/pex/.tox":    "/development/pex/.tox",
	}
	for in, want := range tests {
		if got := addSELinuxLabel(in); got != want {
			t.Errorf("addSELinuxLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewPodmanEngine_WiresTransformers(t *testing.T) {
	t.Parallel()

	engine := newPodmanEngine(func() bool { return true })
	args := engine.RunArgs(RunOptions{Image: "debian:stable-slim", Volumes: []string{"/a:/b"}})
	if !slices.Contains(args, "--userns=keep-id") {
		t.Errorf("expected --userns=keep-id in args, got %v", args)
	}
	if !slices.Contains(args, "/a:/b:z") {
		t.Errorf("expected SELinux label on bind mount, got %v", args)
	}
}
