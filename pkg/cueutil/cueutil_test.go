// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
#Settings: close({
	name:         string & =~"^[a-z]+$"
	count?:       int & >=1
	tags?:        [...string]
	description?: string
})
`

type testSettings struct {
	Name        string   `json:"name"`
	Count       int      `json:"count"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

func mustSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := CompileSchema([]byte(testSchema), "#Settings")
	require.NoError(t, err)
	return s
}

func TestSchema_Decode(t *testing.T) {
	t.Parallel()

	var got testSettings
	err := mustSchema(t).Decode([]byte(`
name: "pex"
count: 3
tags: ["a", "b"]
`), &got)
	require.NoError(t, err)
	assert.Equal(t, testSettings{Name: "pex", Count: 3, Tags: []string{"a", "b"}}, got)
}

func TestSchema_DecodeMap(t *testing.T) {
	t.Parallel()

	var got map[string]any
	err := mustSchema(t).Decode([]byte(`name: "pex"`), &got, WithConcrete(false))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "pex"}, got)
}

func TestSchema_ValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     string
		wantPath string
	}{
		{"constraint violation", `name: "pex"
count: 0`, "count"},
		{"wrong type", `name: "pex"
tags: ["a", 2]`, "tags[1]"},
		{"closed struct", `name: "pex"
colour: "red"`, "colour"},
		{"pattern", `name: "Pex"`, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got testSettings
			err := mustSchema(t).Decode([]byte(tt.data), &got, WithFilename("dtox.cue"))
			require.ErrorIs(t, err, ErrValidation)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, "dtox.cue", ve.File)
			paths := make([]string, len(ve.Issues))
			for i, is := range ve.Issues {
				paths[i] = is.Path
			}
			assert.Contains(t, paths, tt.wantPath)
			assert.True(t, strings.HasPrefix(err.Error(), "dtox.cue: "), err.Error())
		})
	}
}

func TestSchema_SyntaxError(t *testing.T) {
	t.Parallel()

	var got testSettings
	err := mustSchema(t).Decode([]byte(`name: "pex`), &got, WithFilename("dtox.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dtox.cue")
}

func TestSchema_FileTooLarge(t *testing.T) {
	t.Parallel()

	var got testSettings
	err := mustSchema(t).Decode([]byte(`name: "pex"`), &got, WithMaxFileSize(4))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum 4 bytes")
}

func TestCompileSchema_MissingDefinition(t *testing.T) {
	t.Parallel()

	_, err := CompileSchema([]byte(testSchema), "#Missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "#Missing")
}

func TestFormatError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, FormatError(nil, "x.cue"))

	err := FormatError(errors.New("boom"), "x.cue")
	assert.EqualError(t, err, "x.cue: boom")
	assert.NotErrorIs(t, err, ErrValidation)

	wrapped := FormatError(fmt.Errorf("read dtox.cue: %w", os.ErrPermission), "x.cue")
	assert.ErrorIs(t, wrapped, os.ErrPermission)
	assert.NotErrorIs(t, wrapped, ErrValidation)
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"cache"}, "cache"},
		{[]string{"cache", "parallelism"}, "cache.parallelism"},
		{[]string{"matrix", "shards", "2"}, "matrix.shards[2]"},
		{[]string{"0"}, "0"},
		{[]string{"job", "forward_env", "1", "name"}, "job.forward_env[1].name"},
		{[]string{"#Config", "cache", "tag"}, "cache.tag"},
		{[]string{"#Settings", "tags", "1"}, "tags[1]"},
		{[]string{"#Config"}, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatPath(tt.path), tt.path)
	}
}

func TestValidationError_MultipleIssues(t *testing.T) {
	t.Parallel()

	ve := &ValidationError{File: "dtox.cue", Issues: []Issue{
		{Path: "engine", Message: "conflicting values"},
		{Message: "syntax error"},
	}}
	assert.Equal(t, "dtox.cue: validation failed:\n  engine: conflicting values\n  syntax error", ve.Error())
}
