// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sthagen/pantsbuild-pex/internal/identity"
	"github.com/sthagen/pantsbuild-pex/internal/orchestrator"
)

// Image layers selectable with identity --layer.
const (
	layerBase    = "base"
	layerDerived = "derived"
)

func newEnsureCommand(app *App, flags *globalFlags) *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Provision the base and derived images",
		Long: `Provision the base and derived images.

The base image is pulled, built or required according to BASE_MODE; the
derived image is built on top of it when absent. Both references are printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := app.orchestrator(cmd.Context(), flags, orchestrator.WithNoCache(noCache))
			if err != nil {
				return fail(cmd, app.stderr, err, flags.verbose)
			}
			refs, err := o.Prepare(cmd.Context())
			if err != nil {
				return fail(cmd, app.stderr, err, flags.verbose)
			}
			printRefs(app.stdout, refs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noCache, "no-build-cache", false, "build images without the engine build cache")
	return cmd
}

func newIdentityCommand(app *App, flags *globalFlags) *cobra.Command {
	var layer string

	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Print the content-addressed image references",
		Long: `Print the content-addressed image references.

The tags are digests of the configured build inputs, so this never talks to
the container engine. With --layer only that reference is printed, bare,
for use in scripts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := app.planner(cmd.Context(), flags)
			if err != nil {
				return fail(cmd, app.stderr, err, flags.verbose)
			}
			refs, err := o.Refs()
			if err != nil {
				return fail(cmd, app.stderr, err, flags.verbose)
			}

			switch layer {
			case "":
				printRefs(app.stdout, refs)
			case layerBase:
				fmt.Fprintln(app.stdout, refs.Base)
			case layerDerived:
				fmt.Fprintln(app.stdout, refs.Derived)
			default:
				err := fmt.Errorf("invalid layer %q (valid: %s, %s)", layer, layerBase, layerDerived)
				return fail(cmd, app.stderr, err, flags.verbose)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "print only this layer: base or derived")
	return cmd
}

func newPopulateCommand(app *App, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "populate",
		Short: "Seed the cache volume from the cache image",
		Long: `Seed the cache volume from the cache image.

The volume is rebuilt only when the cache image changed since it was last
seeded. An unavailable cache image leaves a cold, empty cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := app.orchestrator(cmd.Context(), flags)
			if err != nil {
				return fail(cmd, app.stderr, err, flags.verbose)
			}
			refs, err := o.Prepare(cmd.Context())
			if err != nil {
				return fail(cmd, app.stderr, err, flags.verbose)
			}
			result, err := o.Populate(cmd.Context(), refs)
			if err != nil {
				return fail(cmd, app.stderr, err, flags.verbose)
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render(successIcon), result)
			return nil
		},
	}
}

func printRefs(w io.Writer, refs identity.Refs) {
	fmt.Fprintf(w, "%s%s\n", labelStyle.Render(layerBase), CmdStyle.Render(refs.Base.String()))
	fmt.Fprintf(w, "%s%s\n", labelStyle.Render(layerDerived), CmdStyle.Render(refs.Derived.String()))
}
