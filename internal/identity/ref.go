// SPDX-License-Identifier: MPL-2.0

package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
)

// LatestTag is the floating alias applied next to every locally built identity.
const LatestTag = "latest"

// ErrInvalidImageRef is the sentinel error wrapped by InvalidImageRefError.
var ErrInvalidImageRef = errors.New("invalid image reference")

type (
	// ImageRef names one image as repository plus tag. It is an immutable value.
	ImageRef struct {
		Repository string
		Tag        string
	}

	// InvalidImageRefError is returned when an ImageRef is not a legal reference.
	InvalidImageRefError struct {
		Value ImageRef
		Err   error
	}

	// Layer describes one image layer of the project: the repository its
	// images are published under and the files whose bytes identify it.
	Layer struct {
		Repository string
		Inputs     BuildInputSet
	}

	// Refs is the resolved pair of base and derived image references.
	Refs struct {
		Base    ImageRef
		Derived ImageRef
	}
)

// Error implements the error interface.
func (e *InvalidImageRefError) Error() string {
	return fmt.Sprintf("invalid image reference %q: %v", e.Value.String(), e.Err)
}

// Unwrap returns ErrInvalidImageRef for errors.Is() compatibility.
func (e *InvalidImageRefError) Unwrap() error { return ErrInvalidImageRef }

// NewImageRef builds a validated reference.
func NewImageRef(repository, tag string) (ImageRef, error) {
	ref := ImageRef{Repository: repository, Tag: tag}
	if err := ref.Validate(); err != nil {
		return ImageRef{}, err
	}
	return ref, nil
}

// ParseImageRef parses "registry/repository[:tag]"; the tag defaults to
// latest. The registry must be explicit.
func ParseImageRef(s string) (ImageRef, error) {
	tag, err := name.NewTag(s, name.StrictValidation)
	if err != nil {
		return ImageRef{}, &InvalidImageRefError{Value: ImageRef{Repository: s}, Err: err}
	}
	repo := s
	if i := strings.LastIndex(s, ":"); i > strings.LastIndex(s, "/") {
		repo = s[:i]
	}
	return ImageRef{Repository: repo, Tag: tag.TagStr()}, nil
}

// String returns "repository:tag".
func (r ImageRef) String() string {
	return r.Repository + ":" + r.Tag
}

// WithTag returns a copy of r carrying a different tag.
func (r ImageRef) WithTag(tag string) ImageRef {
	return ImageRef{Repository: r.Repository, Tag: tag}
}

// Latest returns the floating alias of r.
func (r ImageRef) Latest() ImageRef {
	return r.WithTag(LatestTag)
}

// Validate checks that r is a legal, fully tagged image reference.
func (r ImageRef) Validate() error {
	if r.Repository == "" || r.Tag == "" {
		return &InvalidImageRefError{Value: r, Err: errors.New("repository and tag are required")}
	}
	if _, err := name.NewTag(r.String(), name.StrictValidation); err != nil {
		return &InvalidImageRefError{Value: r, Err: err}
	}
	return nil
}

// NameTag converts r into a go-containerregistry tag.
func (r ImageRef) NameTag() (name.Tag, error) {
	tag, err := name.NewTag(r.String(), name.StrictValidation)
	if err != nil {
		return name.Tag{}, &InvalidImageRefError{Value: r, Err: err}
	}
	return tag, nil
}

// ResolveRefs computes the base and derived references for a project.
// The base tag is the identity of the base inputs; the derived tag is the
// identity of the base inputs followed by the derived inputs.
func ResolveRefs(fsys fs.FS, base, derived Layer) (Refs, error) {
	baseID, err := Resolve(fsys, base.Inputs)
	if err != nil {
		return Refs{}, err
	}
	derivedID, err := Resolve(fsys, base.Inputs.Concat(derived.Inputs))
	if err != nil {
		return Refs{}, err
	}

	baseRef, err := NewImageRef(base.Repository, baseID.String())
	if err != nil {
		return Refs{}, err
	}
	derivedRef, err := NewImageRef(derived.Repository, derivedID.String())
	if err != nil {
		return Refs{}, err
	}
	return Refs{Base: baseRef, Derived: derivedRef}, nil
}
