// SPDX-License-Identifier: MPL-2.0

package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"
)

func sum(s string) Identity {
	h := sha256.Sum256([]byte(s))
	return Identity(hex.EncodeToString(h[:]))
}

func TestResolve(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"a":        {Data: []byte("alpha\n")},
		"b":        {Data: []byte("beta\n")},
		"ab":       {Data: []byte("alpha\nbeta\n")},
		"empty":    {Data: nil},
		"dir/file": {Data: []byte("x")},
	}

	tests := []struct {
		name   string
		inputs BuildInputSet
		want   Identity
	}{
		{name: "single file", inputs: BuildInputSet{"a"}, want: sum("alpha\n")},
		{name: "ordered concatenation", inputs: BuildInputSet{"a", "b"}, want: sum("alpha\nbeta\n")},
		{name: "reversed order differs", inputs: BuildInputSet{"b", "a"}, want: sum("beta\nalpha\n")},
		{name: "raw concatenation collides by design", inputs: BuildInputSet{"ab"}, want: sum("alpha\nbeta\n")},
		{name: "empty file", inputs: BuildInputSet{"empty"}, want: sum("")},
		{name: "nested path", inputs: BuildInputSet{"dir/file"}, want: sum("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Resolve(fsys, tt.inputs)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %s, want %s", got, tt.want)
			}
			if err := got.Validate(); err != nil {
				t.Errorf("resolved identity is not a valid tag: %v", err)
			}
		})
	}
}

func TestResolve_Deterministic(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{"Dockerfile": {Data: []byte("FROM debian:stable-slim\n")}}
	first, err := Resolve(fsys, BuildInputSet{"Dockerfile"})
	if err != nil {
		t.Fatal(err)
	}
	for range 5 {
		again, err := Resolve(fsys, BuildInputSet{"Dockerfile"})
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Fatalf("Resolve() is not stable: %s != %s", again, first)
		}
	}
}

func TestResolve_Errors(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"present":  {Data: []byte("x")},
		"dir/file": {Data: []byte("y")},
	}

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := Resolve(fsys, BuildInputSet{"present", "missing"})
		var readErr *InputReadError
		if !errors.As(err, &readErr) {
			t.Fatalf("Resolve() error = %v, want *InputReadError", err)
		}
		if readErr.Path != "missing" {
			t.Errorf("InputReadError.Path = %q, want %q", readErr.Path, "missing")
		}
		if !errors.Is(err, ErrInputRead) {
			t.Error("error does not wrap ErrInputRead")
		}
		if !errors.Is(err, fs.ErrNotExist) {
			t.Error("error does not wrap fs.ErrNotExist")
		}
	})

	t.Run("directory", func(t *testing.T) {
		t.Parallel()

		_, err := Resolve(fsys, BuildInputSet{"dir"})
		if !errors.Is(err, ErrInputRead) {
			t.Fatalf("Resolve(dir) error = %v, want ErrInputRead", err)
		}
	})

	t.Run("empty set", func(t *testing.T) {
		t.Parallel()

		if _, err := Resolve(fsys, nil); !errors.Is(err, ErrEmptyInputSet) {
			t.Fatalf("Resolve(nil) error = %v, want ErrEmptyInputSet", err)
		}
	})
}

func TestIdentity_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value Identity
		valid bool
	}{
		{sum("x"), true},
		{"", false},
		{"ABCDEF", false},
		{Identity(string(sum("x")) + "0"), false},
		{"g" + sum("x")[1:], false},
	}
	for _, tt := range tests {
		err := tt.value.Validate()
		if (err == nil) != tt.valid {
			t.Errorf("Identity(%q).Validate() = %v, want valid=%v", tt.value, err, tt.valid)
		}
		if err != nil && !errors.Is(err, ErrInvalidIdentity) {
			t.Errorf("error does not wrap ErrInvalidIdentity: %v", err)
		}
	}
}

func TestIdentity_Short(t *testing.T) {
	t.Parallel()

	id := sum("x")
	if got := id.Short(); got != string(id[:12]) {
		t.Errorf("Short() = %q", got)
	}
	if got := Identity("abc").Short(); got != "abc" {
		t.Errorf("Short() on short value = %q", got)
	}
}
