// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-containerregistry/pkg/v1/remote/transport"

	"github.com/sthagen/pantsbuild-pex/internal/container"
	"github.com/sthagen/pantsbuild-pex/internal/identity"
	"github.com/sthagen/pantsbuild-pex/internal/issue"
	"github.com/sthagen/pantsbuild-pex/internal/provision"
	"github.com/sthagen/pantsbuild-pex/internal/shard"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	ref, err := identity.ParseImageRef("ghcr.io/pantsbuild/pex/base:0123456789ab")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{
			name: "engine not available",
			err:  &container.EngineNotAvailableError{Engine: "podman", Reason: "not installed"},
			want: issue.ContainerEngineNotFoundId,
		},
		{
			name: "missing input behind actionable error",
			err: issue.NewErrorContext().WithOperation("resolve image identity").
				Wrap(&identity.InputReadError{Path: "docker/base/Dockerfile", Err: errors.New("no such file")}).BuildError(),
			want: issue.InputMissingId,
		},
		{name: "image missing", err: fmt.Errorf("%s: %w", ref, provision.ErrImageMissing), want: issue.ImageMissingId},
		{name: "build", err: &provision.BuildError{Ref: ref, Err: errors.New("failed to solve")}, want: issue.BuildFailedId},
		{name: "pull", err: &provision.PullError{Ref: ref, Err: errors.New("manifest unknown")}, want: issue.PullFailedId},
		{name: "merge", err: &shard.MergeError{Missing: []string{"py27"}}, want: issue.MergeIncompleteId},
		{name: "matrix", err: &shard.MatrixMismatchError{Unsharded: []string{"py27"}}, want: issue.MatrixMismatchId},
		{name: "registry auth", err: &transport.Error{StatusCode: http.StatusUnauthorized}, want: issue.RegistryAuthFailedId},
		{name: "registry not found", err: &transport.Error{StatusCode: http.StatusNotFound}, want: 0},
		{name: "unknown", err: errors.New("boom"), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := classifyError(tt.err); got != tt.want {
				t.Errorf("classifyError() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRenderError(t *testing.T) {
	t.Parallel()

	err := issue.NewErrorContext().
		WithOperation("merge cache shards").
		WithResource("ghcr.io/pantsbuild/pex/cache:latest").
		WithSuggestion("Rebuild the missing shards").
		Wrap(&shard.MergeError{Missing: []string{"py311"}}).
		BuildError()

	var quiet bytes.Buffer
	renderError(&quiet, err, false)
	out := quiet.String()
	if !strings.Contains(out, "missing shards: py311") || !strings.Contains(out, "Rebuild the missing shards") {
		t.Errorf("renderError() = %q", out)
	}
	if strings.Contains(out, "Error chain") {
		t.Error("the error chain is verbose-only")
	}

	var verbose bytes.Buffer
	renderError(&verbose, err, true)
	if !strings.Contains(verbose.String(), "Error chain") {
		t.Error("verbose output should include the error chain")
	}
	if verbose.Len() <= quiet.Len()+len("\n\nError chain:") {
		t.Error("verbose output should include the help card")
	}
}
