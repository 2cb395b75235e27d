// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "merge cache shards"},
			expected: "failed to merge cache shards",
		},
		{
			name: "operation with resource",
			err: &ActionableError{
				Operation: "build image",
				Resource:  "ghcr.io/pantsbuild/pex/base:abc",
			},
			expected: "failed to build image: ghcr.io/pantsbuild/pex/base:abc",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "read image input",
				Resource:  "docker/base/Dockerfile",
				Cause:     errors.New("file not found"),
			},
			expected: "failed to read image input: docker/base/Dockerfile: file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_ErrorsIs(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("image missing")
	err := NewErrorContext().WithOperation("ensure image").Wrap(sentinel).BuildError()

	if !errors.Is(err, sentinel) {
		t.Errorf("errors.Is(%v, sentinel) = false, want true", err)
	}
	var ae *ActionableError
	if !errors.As(err, &ae) {
		t.Fatal("errors.As did not find *ActionableError")
	}
	if ae.Operation != "ensure image" {
		t.Errorf("Operation = %q, want %q", ae.Operation, "ensure image")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	inner := errors.New("connection refused")
	built := NewErrorContext().
		WithOperation("push cache image").
		WithResource("ghcr.io/pantsbuild/pex/cache:latest").
		WithSuggestion("Check registry credentials").
		WithSuggestion("Retry later").
		Wrap(errors.Join(inner)).
		BuildError()

	var err *ActionableError
	if !errors.As(built, &err) {
		t.Fatalf("BuildError() = %T, want *ActionableError", built)
	}

	short := err.Format(false)
	if !strings.Contains(short, "  • Check registry credentials") || !strings.Contains(short, "  • Retry later") {
		t.Errorf("Format(false) is missing suggestions:\n%s", short)
	}
	if strings.Contains(short, "Error chain:") {
		t.Errorf("Format(false) should not include the error chain:\n%s", short)
	}

	verbose := err.Format(true)
	if !strings.Contains(verbose, "Error chain:") || !strings.Contains(verbose, "connection refused") {
		t.Errorf("Format(true) is missing the error chain:\n%s", verbose)
	}
	if !err.HasSuggestions() {
		t.Error("HasSuggestions() = false, want true")
	}
}

// buildFailure mimics the two-cause errors of the provisioner.
type buildFailure struct{ sentinel, cause error }

func (e *buildFailure) Error() string   { return "build ghcr.io/pantsbuild/pex/base:abc: " + e.cause.Error() }
func (e *buildFailure) Unwrap() []error { return []error{e.sentinel, e.cause} }

func TestActionableError_FormatWalksMultiCauseErrors(t *testing.T) {
	t.Parallel()

	err := &ActionableError{
		Operation: "ensure image",
		Cause: &buildFailure{
			sentinel: errors.New("image build failed"),
			cause:    errors.New("failed to solve: step 3/7"),
		},
	}

	verbose := err.Format(true)
	for _, want := range []string{
		"1. build ghcr.io/pantsbuild/pex/base:abc",
		"2. image build failed",
		"3. failed to solve: step 3/7",
	} {
		if !strings.Contains(verbose, want) {
			t.Errorf("Format(true) is missing %q:\n%s", want, verbose)
		}
	}
}

func TestErrorContext_BuildRequiresOperation(t *testing.T) {
	t.Parallel()

	if got := NewErrorContext().WithResource("x").BuildError(); got != nil {
		t.Errorf("BuildError() without operation = %v, want nil", got)
	}
	if got := NewErrorContext().BuildError(); got != nil {
		t.Errorf("BuildError() without operation = %v, want nil", got)
	}
}
