// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// ErrValidation is the sentinel error wrapped by ValidationError.
var ErrValidation = errors.New("invalid CUE document")

type (
	// Issue is one problem found in a document.
	Issue struct {
		// Path locates the field, e.g. "matrix.shards[2]". Empty for
		// document level problems such as syntax errors.
		Path    string
		Message string
	}

	// ValidationError reports every issue found in one file.
	ValidationError struct {
		File   string
		Issues []Issue
	}
)

// Error implements the error interface.
func (e *ValidationError) Error() string {
	lines := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		if is.Path != "" {
			lines[i] = is.Path + ": " + is.Message
		} else {
			lines[i] = is.Message
		}
	}
	if len(lines) == 1 {
		return e.File + ": " + lines[0]
	}
	return fmt.Sprintf("%s: validation failed:\n  %s", e.File, strings.Join(lines, "\n  "))
}

// Unwrap returns ErrValidation for errors.Is() compatibility.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// FormatError converts a CUE error into a *ValidationError naming file.
// Errors that do not come from CUE are wrapped with the file name.
func FormatError(err error, file string) error {
	if err == nil {
		return nil
	}

	// cueerrors.Errors promotes any error to a CUE error list, so check
	// the origin first.
	var cueErr cueerrors.Error
	if !errors.As(err, &cueErr) {
		return fmt.Errorf("%s: %w", file, err)
	}
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", file, err)
	}

	ve := &ValidationError{File: file, Issues: make([]Issue, 0, len(list))}
	for _, e := range list {
		format, args := e.Msg()
		ve.Issues = append(ve.Issues, Issue{
			Path:    formatPath(cueerrors.Path(e)),
			Message: fmt.Sprintf(format, args...),
		})
	}
	return ve
}

// formatPath renders a CUE path (["#Config", "matrix", "shards", "2"]) in
// JSON-path notation ("matrix.shards[2]"). A leading definition is the
// schema's root and is dropped.
func formatPath(path []string) string {
	if len(path) > 0 && strings.HasPrefix(path[0], "#") {
		path = path[1:]
	}
	var b strings.Builder
	for i, part := range path {
		if i > 0 && isIndex(part) {
			b.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CheckFileSize returns an error when data is larger than maxSize.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", filename, len(data), maxSize)
	}
	return nil
}
