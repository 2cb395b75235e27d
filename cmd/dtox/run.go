// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sthagen/pantsbuild-pex/internal/orchestrator"
)

func newRunCommand(app *App, flags *globalFlags) *cobra.Command {
	var (
		inspect     bool
		noCachePull bool
		noCache     bool
	)

	cmd := &cobra.Command{
		Use:   "run [flags] <target> [-- tox args...]",
		Short: "Run a tox environment in the development image",
		Long: `Run a tox environment in the development image.

The base and derived images are provisioned first, the cache volume is
seeded from the cache image unless --no-cache-pull is given, and then
"tox -e <target>" runs with the project mounted. Arguments after "--" are
passed to tox. The job's exit code becomes dtox's exit code.`,
		Example: `  dtox run py311
  dtox run py311-pip25_0-integration -- -k test_pex_root
  dtox run --inspect`,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, posargs := splitRunArgs(args, cmd.ArgsLenAtDash())
			if target == "" && !inspect {
				return cmd.Help()
			}

			o, err := app.orchestrator(cmd.Context(), flags, orchestrator.WithNoCache(noCache))
			if err != nil {
				return fail(cmd, app.stderr, err, flags.verbose)
			}
			code, err := o.Run(cmd.Context(), orchestrator.RunRequest{
				Target:      target,
				Args:        posargs,
				Inspect:     inspect,
				NoCachePull: noCachePull,
				Interactive: isTerminal(app.stdin, app.stdout),
			})
			if err != nil {
				return fail(cmd, app.stderr, err, flags.verbose)
			}
			return exitWith(cmd, code)
		},
	}

	cmd.Flags().BoolVar(&inspect, "inspect", false, "open the inspect shell instead of running tox")
	cmd.Flags().BoolVar(&noCachePull, "no-cache-pull", false, "skip seeding the cache volume from the cache image")
	cmd.Flags().BoolVar(&noCache, "no-build-cache", false, "build images without the engine build cache")
	return cmd
}

// splitRunArgs separates the target from the tox arguments. Everything after
// "--" goes to tox; without "--" the words after the target do.
func splitRunArgs(args []string, dash int) (target string, posargs []string) {
	if len(args) == 0 || dash == 0 {
		return "", args
	}
	return args[0], args[1:]
}
