// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the dtox command tree on app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "dtox",
		Short: "Run tox environments in content-addressed containers",
		Long: TitleStyle.Render("dtox") + SubtitleStyle.Render(" - Run tox environments in content-addressed containers") + `

dtox builds a base and a derived development image tagged by the hash of
their build inputs, seeds a persistent cache volume from a published cache
image, and runs tox inside the derived image with the project mounted.

` + SubtitleStyle.Render("Examples:") + `
  dtox run py311 -- -k test_pex_root   Run one tox environment
  dtox run --inspect                   Open a shell in the job container
  dtox cache --mode build              Build every cache shard in parallel
  dtox cache --mode merge --post-action push
  dtox matrix --check                  Validate cache shards against CI`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is dtox.cue in the project root)")
	rootCmd.PersistentFlags().StringVarP(&flags.projectDir, "project-dir", "C", "", "project root (default is the config file directory, then the working directory)")
	rootCmd.PersistentFlags().StringVar(&flags.engine, "engine", "", "container engine: docker, podman or auto (overrides DTOX_ENGINE)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging and help cards on errors")

	rootCmd.AddCommand(
		newRunCommand(app, flags),
		newCacheCommand(app, flags),
		newEnsureCommand(app, flags),
		newIdentityCommand(app, flags),
		newPopulateCommand(app, flags),
		newMatrixCommand(app, flags),
		newConfigCommand(app, flags),
		newVersionCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version != "dev" {
		return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev (built from source)"
}

// Execute runs the root command and exits with the status it reports.
// This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(handleError),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// handleError prints errors cobra produced itself, such as unknown flags.
// Command failures were rendered by their handler and arrive as ExitError.
func handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the dtox version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(app.stdout, getVersionString())
		},
	}
}
