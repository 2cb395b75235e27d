// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE documents against an embedded schema.
//
// Parsing is a three step flow: compile the schema, compile the user document
// and unify it with a schema definition, then validate and decode. Failures
// are reported as *ValidationError values whose issues carry JSON-path style
// field locations (e.g. "cache.parallelism"), so users can find the offending
// line without knowing CUE's internal path syntax.
//
//	//go:embed config_schema.cue
//	var schemaSrc []byte
//
//	schema, err := cueutil.CompileSchema(schemaSrc, "#Config")
//	...
//	var settings map[string]any
//	err = schema.Decode(data, &settings, cueutil.WithFilename("dtox.cue"), cueutil.WithConcrete(false))
package cueutil
