// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sthagen/pantsbuild-pex/internal/config"
)

// newConfigCommand creates the `dtox config` command tree.
func newConfigCommand(app *App, flags *globalFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect dtox configuration",
		Long: `Inspect dtox configuration.

Configuration is read from ` + config.ConfigFileName + ` in the project root, or the file
given with --config, on top of built-in defaults. Environment variables such
as BASE_MODE, CACHE_MODE and CACHE_TAG override both.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return fail(cmd, app.stderr, err, flags.verbose)
			}
			out, err := config.Render(cfg, config.Format(format))
			if err != nil {
				return fail(cmd, app.stderr, err, flags.verbose)
			}
			fmt.Fprint(app.stdout, out)
			return nil
		},
	}
	showCmd.Flags().StringVar(&format, "format", string(config.FormatCUE), "output format: cue or toml")
	cfgCmd.AddCommand(showCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := app.Config.Path(flags.loadOptions())
			if err != nil {
				return fail(cmd, app.stderr, err, flags.verbose)
			}
			if path == "" {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("(using defaults)"))
				return nil
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	return cfgCmd
}
