// SPDX-License-Identifier: MPL-2.0

package container

import (
	"maps"
	"os"
	"slices"
	"sync"
)

const (
	// SandboxNone means dtox runs directly on the host.
	SandboxNone Sandbox = ""
	// SandboxFlatpak means dtox runs inside a Flatpak application, typically
	// an IDE terminal, and reaches the host engine through flatpak-spawn.
	SandboxFlatpak Sandbox = "flatpak"

	flatpakInfoPath = "/.flatpak-info"
	flatpakSpawn    = "flatpak-spawn"
)

// Sandbox identifies an application sandbox the engine client must escape.
type Sandbox string

// detectedSandbox is computed once; a process cannot change sandboxes.
var detectedSandbox = sync.OnceValue(func() Sandbox {
	return detectSandboxFrom(func(path string) error {
		_, err := os.Stat(path)
		return err
	})
})

// DetectSandbox reports the sandbox the current process runs in.
func DetectSandbox() Sandbox {
	return detectedSandbox()
}

func detectSandboxFrom(statFile func(string) error) Sandbox {
	if statFile(flatpakInfoPath) == nil {
		return SandboxFlatpak
	}
	return SandboxNone
}

// WithSandbox runs every engine command on the host through the sandbox's
// spawn helper. Environment overrides are passed to the helper, which does
// not forward the sandbox environment.
func WithSandbox(s Sandbox) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.sandbox = s
	}
}

// hostCommand rewrites an engine invocation for the sandbox. The binary is
// resolved on the host, so a bare name is fine.
func (s Sandbox) hostCommand(binary string, args []string, env map[string]string) (string, []string) {
	if s != SandboxFlatpak {
		return binary, args
	}
	spawnArgs := []string{"--host", "--watch-bus"}
	for _, k := range slices.Sorted(maps.Keys(env)) {
		spawnArgs = append(spawnArgs, "--env="+k+"="+env[k])
	}
	spawnArgs = append(spawnArgs, binary)
	return flatpakSpawn, append(spawnArgs, args...)
}
