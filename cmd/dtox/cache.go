// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sthagen/pantsbuild-pex/internal/orchestrator"
	"github.com/sthagen/pantsbuild-pex/internal/shard"
)

// Cache build modes.
const (
	cacheModeBuild = "build"
	cacheModeMerge = "merge"
	cacheModeImage = "image"
)

func newCacheCommand(app *App, flags *globalFlags) *cobra.Command {
	var (
		mode       string
		envs       []string
		postAction string
		tag        string
	)

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Build, merge and publish the cache image",
		Long: `Build, merge and publish the cache image.

Modes:
  build  run one shard job per tox environment in parallel; each writes a
         tar of the populated cache to the shard work directory
  merge  combine the shard tars, one layer each, into the cache image and
         export it to a tarball or push it to the registry
  image  build the cache image with a single engine build of the cache
         Dockerfile

With --post-action, build mode merges once every shard succeeded. Merges
always cover the whole test matrix: --env only narrows which shards are
rebuilt, and the others must already be in the shard work directory.`,
		Example: `  dtox cache --mode build
  dtox cache --mode build --env py311 --env pypy310
  dtox cache --mode merge --post-action push --tag 2.40.0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			action := shard.PostAction(postAction)
			if action != "" {
				if err := action.Validate(); err != nil {
					return fail(cmd, app.stderr, err, flags.verbose)
				}
			}

			o, err := app.orchestrator(cmd.Context(), flags)
			if err != nil {
				return fail(cmd, app.stderr, err, flags.verbose)
			}
			req := orchestrator.CacheRequest{Envs: envs, PostAction: action, Tag: tag}

			switch mode {
			case cacheModeBuild:
				shards, err := o.BuildCache(cmd.Context(), req)
				for _, s := range shards {
					fmt.Fprintf(app.stdout, "%s %s %s\n", SuccessStyle.Render(successIcon), s.Env.Name, SubtitleStyle.Render(s.Path))
				}
				if err != nil {
					return fail(cmd, app.stderr, err, flags.verbose)
				}
			case cacheModeMerge:
				digest, err := o.MergeCache(cmd.Context(), req)
				if err != nil {
					return fail(cmd, app.stderr, err, flags.verbose)
				}
				fmt.Fprintf(app.stdout, "%s cache image %s\n", SuccessStyle.Render(successIcon), CmdStyle.Render(digest.String()))
			case cacheModeImage:
				if err := o.BuildCacheImage(cmd.Context(), req); err != nil {
					return fail(cmd, app.stderr, err, flags.verbose)
				}
				fmt.Fprintf(app.stdout, "%s cache image built\n", SuccessStyle.Render(successIcon))
			default:
				err := fmt.Errorf("invalid cache mode %q (valid: %s, %s, %s)", mode, cacheModeBuild, cacheModeMerge, cacheModeImage)
				return fail(cmd, app.stderr, err, flags.verbose)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", cacheModeBuild, "build, merge or image")
	cmd.Flags().StringArrayVar(&envs, "env", nil, "only build this tox environment (repeatable)")
	cmd.Flags().StringVar(&postAction, "post-action", "", "publish the merged image: export or push")
	cmd.Flags().StringVar(&tag, "tag", "", "cache image tag (overrides CACHE_TAG)")
	return cmd
}
