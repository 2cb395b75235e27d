// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/spf13/cobra"

	"github.com/sthagen/pantsbuild-pex/internal/config"
	"github.com/sthagen/pantsbuild-pex/internal/container"
	"github.com/sthagen/pantsbuild-pex/internal/identity"
	"github.com/sthagen/pantsbuild-pex/internal/issue"
	"github.com/sthagen/pantsbuild-pex/internal/provision"
	"github.com/sthagen/pantsbuild-pex/internal/shard"
	"github.com/sthagen/pantsbuild-pex/pkg/cueutil"
	"github.com/sthagen/pantsbuild-pex/pkg/types"
)

// classifyError maps a failure to the issue catalogue entry explaining it,
// or 0 when no entry applies.
func classifyError(err error) issue.Id {
	var regErr *transport.Error
	switch {
	case errors.Is(err, container.ErrNoEngineAvailable):
		return issue.ContainerEngineNotFoundId
	case errors.Is(err, identity.ErrInputRead):
		return issue.InputMissingId
	case errors.Is(err, provision.ErrImageMissing):
		return issue.ImageMissingId
	case errors.Is(err, provision.ErrBuild):
		return issue.BuildFailedId
	case errors.Is(err, provision.ErrPull):
		return issue.PullFailedId
	case errors.Is(err, shard.ErrMerge):
		return issue.MergeIncompleteId
	case errors.Is(err, shard.ErrShardMatrixMismatch):
		return issue.MatrixMismatchId
	case errors.As(err, &regErr) &&
		(regErr.StatusCode == http.StatusUnauthorized || regErr.StatusCode == http.StatusForbidden):
		return issue.RegistryAuthFailedId
	case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, cueutil.ErrValidation):
		return issue.ConfigLoadFailedId
	default:
		return 0
	}
}

// formatErrorForDisplay formats an error for user display. An ActionableError
// uses its Format method, which shows the cause chain in verbose mode.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// renderError writes err to stderr. In verbose mode a known failure class is
// followed by its help card.
func renderError(stderr io.Writer, err error, verbose bool) {
	fmt.Fprintf(stderr, "%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
	if !verbose {
		return
	}
	id := classifyError(err)
	if id == 0 {
		return
	}
	if entry := issue.Get(id); entry != nil {
		if rendered, renderErr := entry.Render("dark"); renderErr == nil {
			fmt.Fprint(stderr, rendered)
		}
	}
}

// fail renders err and converts it into an ExitError, silencing cobra's own
// error and usage output.
func fail(cmd *cobra.Command, stderr io.Writer, err error, verbose bool) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	renderError(stderr, err, verbose)
	return &ExitError{Code: 1, Err: err}
}

// exitWith propagates a job's exit code verbatim.
func exitWith(cmd *cobra.Command, code types.ExitCode) error {
	if code.IsSuccess() {
		return nil
	}
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return &ExitError{Code: code}
}
