// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
)

// podmanImageAbsentCode is the exit status of `podman image exists` for a missing image.
const podmanImageAbsentCode = 1

// PodmanEngine implements the Engine interface using Podman CLI.
// It embeds BaseCLIEngine for common CLI operations.
type PodmanEngine struct {
	*BaseCLIEngine
}

// NewPodmanEngine creates a new Podman engine.
// Run commands get --userns=keep-id so files written to bind mounts keep the
// host user's ownership, and bind mounts get a :z label when SELinux is present.
func NewPodmanEngine(opts ...BaseCLIEngineOption) *PodmanEngine {
	return newPodmanEngine(isSELinuxPresent, opts...)
}

func newPodmanEngine(selinux func() bool, opts ...BaseCLIEngineOption) *PodmanEngine {
	path, _ := exec.LookPath("podman")

	allOpts := []BaseCLIEngineOption{
		WithName(string(EngineTypePodman)),
		WithRunArgsTransformer(makeUsernsKeepIDAdder()),
	}
	if selinux() {
		allOpts = append(allOpts, WithVolumeFormatter(addSELinuxLabel))
	}
	allOpts = append(allOpts, opts...)

	return &PodmanEngine{
		BaseCLIEngine: NewBaseCLIEngine(path, allOpts...),
	}
}

// Name returns the engine name.
func (e *PodmanEngine) Name() string {
	return string(EngineTypePodman)
}

// Available checks if Podman is available.
func (e *PodmanEngine) Available() bool {
	if e.BinaryPath() == "" {
		return false
	}
	_, err := e.Version(context.Background())
	return err == nil
}

// Version returns the Podman version.
func (e *PodmanEngine) Version(ctx context.Context) (string, error) {
	out, err := e.RunCommandWithOutput(ctx, "version", "--format", "{{.Version}}")
	if err != nil {
		return "", fmt.Errorf("failed to get podman version: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ImageExists checks if an image exists in the local store.
// `podman image exists` exits 1 for an absent image and 125 on engine errors.
func (e *PodmanEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	err := e.RunCommandStatus(ctx, "image", "exists", image)
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == podmanImageAbsentCode {
		return false, nil
	}
	return false, err
}

// makeUsernsKeepIDAdder returns a transformer inserting --userns=keep-id
// right before the image argument of a run command.
func makeUsernsKeepIDAdder() RunArgsTransformer {
	return func(args []string) []string {
		if len(args) == 0 || args[0] != "run" {
			return args
		}
		imageIdx := runImageIndex(args)
		if imageIdx < 0 {
			return args
		}
		return slices.Insert(slices.Clone(args), imageIdx, "--userns=keep-id")
	}
}

// runImageIndex finds the image argument of a run command built by RunArgs:
// the first argument that is neither a flag nor the value of a flag.
func runImageIndex(args []string) int {
	valued := map[string]bool{
		"--name": true, "--entrypoint": true, "--user": true,
		"-w": true, "-e": true, "-v": true,
	}
	for i := 1; i < len(args); i++ {
		switch {
		case valued[args[i]]:
			i++
		case strings.HasPrefix(args[i], "-"):
		default:
			return i
		}
	}
	return -1
}

// isSELinuxPresent reports whether the host has SELinux mounted. Labels are
// needed even when it is permissive.
func isSELinuxPresent() bool {
	_, err := os.Stat("/sys/fs/selinux")
	return err == nil
}

// addSELinuxLabel adds the :z label to a bind mount that has no SELinux
// option yet. Named volumes and anonymous mounts are left alone.
func addSELinuxLabel(volume string) string {
	parts := strings.Split(volume, ":")
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "/") {
		return volume
	}

	if len(parts) >= 3 {
		options := parts[len(parts)-1]
		for opt := range strings.SplitSeq(options, ",") {
			if opt == "z" || opt == "Z" {
				return volume
			}
		}
		return volume + ",z"
	}

	return volume + ":z"
}
