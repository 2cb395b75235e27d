// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"fmt"
	"strings"
)

type (
	// ActionableError is a user-facing failure: the dtox step that failed,
	// the image, volume, or file it was working on, and what the user can
	// do about it. The cause stays reachable through errors.Is and errors.As,
	// so the CLI can still pick a help card from the sentinel underneath.
	//
	//	return issue.NewErrorContext().
	//		WithOperation("merge cache shards").
	//		WithResource(target.String()).
	//		WithSuggestion("Rebuild the missing shards").
	//		Wrap(err).
	//		BuildError()
	ActionableError struct {
		// Operation is a verb phrase such as "build image" or "seed cache volume".
		Operation string
		// Resource names the image ref, volume, or path involved. Optional.
		Resource string
		// Suggestions are printed as bullets under the message. Optional.
		Suggestions []string
		// Cause is the wrapped error. Optional.
		Cause error
	}

	// ErrorContext accumulates the fields of an ActionableError.
	ErrorContext struct {
		operation   string
		resource    string
		suggestions []string
		cause       error
	}
)

// NewErrorContext starts an empty ErrorContext.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// Error renders "failed to <operation>[: <resource>][: <cause>]".
func (e *ActionableError) Error() string {
	parts := make([]string, 0, 3)
	parts = append(parts, "failed to "+e.Operation)
	if e.Resource != "" {
		parts = append(parts, e.Resource)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the cause.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format renders the message followed by the suggestions. With verbose set it
// also lists every error beneath the cause, descending into joined and
// multi-cause errors such as provision.BuildError.
func (e *ActionableError) Format(verbose bool) string {
	var b strings.Builder
	b.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		b.WriteByte('\n')
		for _, s := range e.Suggestions {
			b.WriteString("\n  • ")
			b.WriteString(s)
		}
	}

	if verbose && e.Cause != nil {
		b.WriteString("\n\nError chain:")
		n := 0
		walkChain(e.Cause, 1, func(depth int, err error) {
			n++
			fmt.Fprintf(&b, "\n%s%d. %s", strings.Repeat("  ", depth), n, err.Error())
		})
	}
	return b.String()
}

// HasSuggestions reports whether any suggestion is attached.
func (e *ActionableError) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// walkChain visits err and everything it wraps, depth first.
func walkChain(err error, depth int, visit func(int, error)) {
	if err == nil {
		return
	}
	visit(depth, err)
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			walkChain(inner, depth+1, visit)
		}
	case interface{ Unwrap() error }:
		walkChain(u.Unwrap(), depth+1, visit)
	}
}

// WithOperation sets the failed step, e.g. "pull cache image".
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.operation = op
	return c
}

// WithResource sets the image ref, volume, or path involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.resource = res
	return c
}

// WithSuggestion appends one suggestion.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.suggestions = append(c.suggestions, sug)
	return c
}

// Wrap sets the cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.cause = err
	return c
}

// BuildError returns the accumulated *ActionableError, or nil when no
// operation was set.
func (c *ErrorContext) BuildError() error {
	if c.operation == "" {
		return nil
	}
	return &ActionableError{
		Operation:   c.operation,
		Resource:    c.resource,
		Suggestions: c.suggestions,
		Cause:       c.cause,
	}
}
