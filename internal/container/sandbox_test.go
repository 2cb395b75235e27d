// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"os"
	"slices"
	"testing"
)

func TestDetectSandboxFrom(t *testing.T) {
	t.Parallel()

	present := func(string) error { return nil }
	absent := func(string) error { return os.ErrNotExist }

	if got := detectSandboxFrom(present); got != SandboxFlatpak {
		t.Errorf("with %s present = %q, want flatpak", flatpakInfoPath, got)
	}
	if got := detectSandboxFrom(absent); got != SandboxNone {
		t.Errorf("without %s = %q, want none", flatpakInfoPath, got)
	}
}

func TestSandbox_HostCommand(t *testing.T) {
	t.Parallel()

	name, args := SandboxNone.hostCommand("/usr/bin/docker", []string{"pull", "x"}, map[string]string{"A": "1"})
	if name != "/usr/bin/docker" || !slices.Equal(args, []string{"pull", "x"}) {
		t.Errorf("no sandbox: %s %v", name, args)
	}

	name, args = SandboxFlatpak.hostCommand("podman", []string{"pull", "x"}, map[string]string{"B": "2", "A": "1"})
	want := []string{"--host", "--watch-bus", "--env=A=1", "--env=B=2", "podman", "pull", "x"}
	if name != flatpakSpawn || !slices.Equal(args, want) {
		t.Errorf("flatpak: %s %v, want %s %v", name, args, flatpakSpawn, want)
	}
}

func TestBaseCLIEngine_SandboxedCommands(t *testing.T) {
	t.Parallel()

	recorder := NewMockCommandRecorder()
	engine := &DockerEngine{BaseCLIEngine: NewBaseCLIEngine("",
		WithName("docker"),
		WithSandbox(SandboxFlatpak),
		WithCmdEnvOverride("DOCKER_HOST", "unix:///run/user/1000/docker.sock"),
		WithExecCommand(recorder.CommandFunc(t)))}

	if engine.BinaryPath() != "docker" {
		t.Errorf("BinaryPath() = %q, want the bare engine name", engine.BinaryPath())
	}

	if err := engine.Pull(context.Background(), "ghcr.io/pantsbuild/pex/cache:latest", nil); err != nil {
		t.Fatalf("Pull() error = %v", err)
	}

	recorder.mu.Lock()
	last := recorder.Invocations[len(recorder.Invocations)-1]
	recorder.mu.Unlock()
	if last.Name != flatpakSpawn {
		t.Errorf("command = %q, want %q", last.Name, flatpakSpawn)
	}
	want := []string{"--host", "--watch-bus", "--env=DOCKER_HOST=unix:///run/user/1000/docker.sock", "docker", "pull", "ghcr.io/pantsbuild/pex/cache:latest"}
	if !slices.Equal(last.Args, want) {
		t.Errorf("args = %v, want %v", last.Args, want)
	}

	recorder.ExitCode = 1
	recorder.Stderr = "denied"
	if err := engine.Pull(context.Background(), "x:1", nil); err == nil || errors.Is(err, ErrNoEngineAvailable) {
		t.Errorf("Pull() error = %v, want engine failure", err)
	}
}
