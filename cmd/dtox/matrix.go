// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMatrixCommand(app *App, flags *globalFlags) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Show the cache shards derived from the CI test matrix",
		Long: `Show the cache shards derived from the CI test matrix.

Shards are read from the configured workflow job's matrix. When the config
declares matrix.shards they must name every matrix entry exactly once;
--check only reports whether they do.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := app.planner(cmd.Context(), flags)
			if err != nil {
				return fail(cmd, app.stderr, err, flags.verbose)
			}
			shards, err := o.Matrix()
			if err != nil {
				return fail(cmd, app.stderr, err, flags.verbose)
			}

			if check {
				fmt.Fprintf(app.stdout, "%s %d cache shards match the test matrix\n", SuccessStyle.Render(successIcon), len(shards))
				return nil
			}
			for _, s := range shards {
				pip := s.Pip
				if pip == "" {
					pip = "-"
				}
				fmt.Fprintf(app.stdout, "%s%s %s %s\n",
					labelStyle.Width(32).Render(s.Name), s.Interpreter, SubtitleStyle.Render("pip "+pip), SubtitleStyle.Render(string(s.Kind)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "only validate the declared shards against the matrix")
	return cmd
}
