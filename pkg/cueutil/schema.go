// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Schema is a compiled CUE definition that documents are unified with.
type Schema struct {
	ctx  *cue.Context
	root cue.Value
	def  string
}

// CompileSchema compiles src and looks up the definition at def (e.g. "#Config").
// Errors here are programming errors in the embedded schema.
func CompileSchema(src []byte, def string) (*Schema, error) {
	ctx := cuecontext.New()

	value := ctx.CompileBytes(src)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("internal error: compile schema: %w", err)
	}
	root := value.LookupPath(cue.ParsePath(def))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("internal error: schema definition %s not found: %w", def, err)
	}
	return &Schema{ctx: ctx, root: root, def: def}, nil
}

// Unify compiles data, unifies it with the schema definition, and validates
// the result.
func (s *Schema) Unify(data []byte, opts ...Option) (cue.Value, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := CheckFileSize(data, o.maxFileSize, o.filename); err != nil {
		return cue.Value{}, err
	}

	user := s.ctx.CompileBytes(data, cue.Filename(o.filename))
	if err := user.Err(); err != nil {
		return cue.Value{}, FormatError(err, o.filename)
	}

	unified := s.root.Unify(user)
	if err := unified.Validate(cue.Concrete(o.concrete)); err != nil {
		return cue.Value{}, FormatError(err, o.filename)
	}
	return unified, nil
}

// Decode unifies data with the schema and decodes the result into out, which
// may be a struct pointer or a *map[string]any.
func (s *Schema) Decode(data []byte, out any, opts ...Option) error {
	unified, err := s.Unify(data, opts...)
	if err != nil {
		return err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := unified.Decode(out); err != nil {
		return FormatError(err, o.filename)
	}
	return nil
}
