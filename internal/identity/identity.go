// SPDX-License-Identifier: MPL-2.0

package identity

import (
	_ "crypto/sha256" // registers SHA-256 for go-digest
	"errors"
	"fmt"
	"io"
	"io/fs"
	"regexp"

	"github.com/opencontainers/go-digest"
)

var (
	// ErrInputRead is the sentinel error wrapped by InputReadError.
	ErrInputRead = errors.New("cannot read build input")

	// ErrEmptyInputSet is returned when an identity is requested for no inputs.
	ErrEmptyInputSet = errors.New("build input set is empty")

	// ErrInvalidIdentity is the sentinel error wrapped by InvalidIdentityError.
	ErrInvalidIdentity = errors.New("invalid identity")

	identityPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)
)

type (
	// Identity is the lowercase hex SHA-256 digest of a BuildInputSet.
	// It is always a legal image tag.
	Identity string

	// BuildInputSet is an ordered list of slash-separated file paths relative
	// to the project root. Order is significant.
	BuildInputSet []string

	// InputReadError reports an input file that is missing or unreadable.
	InputReadError struct {
		Path string
		Err  error
	}

	// InvalidIdentityError is returned when a string is not a well formed Identity.
	InvalidIdentityError struct {
		Value Identity
	}
)

// Error implements the error interface.
func (e *InputReadError) Error() string {
	return fmt.Sprintf("cannot read build input %q: %v", e.Path, e.Err)
}

// Unwrap exposes both ErrInputRead and the underlying filesystem error.
func (e *InputReadError) Unwrap() []error { return []error{ErrInputRead, e.Err} }

// Error implements the error interface.
func (e *InvalidIdentityError) Error() string {
	return fmt.Sprintf("invalid identity %q (want 64 lowercase hex characters)", e.Value)
}

// Unwrap returns ErrInvalidIdentity for errors.Is() compatibility.
func (e *InvalidIdentityError) Unwrap() error { return ErrInvalidIdentity }

// String returns the identity as a tag string.
func (i Identity) String() string { return string(i) }

// Short returns the first 12 characters, for log output.
func (i Identity) Short() string {
	if len(i) <= 12 {
		return string(i)
	}
	return string(i[:12])
}

// Validate returns an error if the Identity is not a 64 character hex digest.
func (i Identity) Validate() error {
	if !identityPattern.MatchString(string(i)) {
		return &InvalidIdentityError{Value: i}
	}
	return nil
}

// Concat returns a new set holding the receiver's paths followed by more.
func (s BuildInputSet) Concat(more BuildInputSet) BuildInputSet {
	out := make(BuildInputSet, 0, len(s)+len(more))
	out = append(out, s...)
	return append(out, more...)
}

// Resolve computes the Identity of inputs read from fsys.
//
// File contents are streamed into the digest in order with no separators and
// no normalization, so the result depends only on the concatenated bytes.
// The first missing or unreadable file aborts resolution with an
// *InputReadError.
func Resolve(fsys fs.FS, inputs BuildInputSet) (Identity, error) {
	if len(inputs) == 0 {
		return "", ErrEmptyInputSet
	}

	digester := digest.SHA256.Digester()
	for _, path := range inputs {
		if err := copyInput(fsys, path, digester.Hash()); err != nil {
			return "", err
		}
	}

	return Identity(digester.Digest().Encoded()), nil
}

func copyInput(fsys fs.FS, path string, w io.Writer) error {
	f, err := fsys.Open(path)
	if err != nil {
		return &InputReadError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return &InputReadError{Path: path, Err: err}
	}
	if info.IsDir() {
		return &InputReadError{Path: path, Err: errors.New("is a directory")}
	}

	if _, err := io.Copy(w, f); err != nil {
		return &InputReadError{Path: path, Err: err}
	}
	return nil
}
