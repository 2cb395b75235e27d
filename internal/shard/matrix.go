// SPDX-License-Identifier: MPL-2.0

package shard

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	KindUnit        Kind = "unit"
	KindIntegration Kind = "integration"
)

var (
	// ErrInvalidEnv is the sentinel error wrapped by InvalidEnvError.
	ErrInvalidEnv = errors.New("invalid test environment name")

	// ErrMatrixNotFound is returned when the workflow lacks the matrix entry.
	ErrMatrixNotFound = errors.New("test matrix not found")

	// ErrShardMatrixMismatch is the sentinel error wrapped by MatrixMismatchError.
	ErrShardMatrixMismatch = errors.New("cache shards do not match the test matrix")

	envNamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)
)

type (
	// Kind distinguishes unit and integration test environments.
	Kind string

	// EnvSpec is one test matrix environment, e.g. "py311-pip23_1_2-integration".
	EnvSpec struct {
		Name        string
		Interpreter string
		Pip         string
		Kind        Kind
	}

	// MatrixRef locates the test matrix inside a CI workflow file.
	MatrixRef struct {
		File string
		Job  string
		Key  string
	}

	// InvalidEnvError is returned for an environment name that cannot name a shard.
	InvalidEnvError struct {
		Value string
	}

	// MatrixMismatchError lists the differences between the declared shards
	// and the test matrix.
	MatrixMismatchError struct {
		// Unsharded are matrix environments without a shard.
		Unsharded []string
		// Unknown are shards naming no matrix environment.
		Unknown []string
		// Duplicated are shards declared more than once.
		Duplicated []string
	}
)

// Error implements the error interface.
func (e *InvalidEnvError) Error() string {
	return fmt.Sprintf("invalid test environment name %q", e.Value)
}

// Unwrap returns ErrInvalidEnv for errors.Is() compatibility.
func (e *InvalidEnvError) Unwrap() error { return ErrInvalidEnv }

// Error implements the error interface.
func (e *MatrixMismatchError) Error() string {
	var parts []string
	if len(e.Unsharded) > 0 {
		parts = append(parts, "no shard for "+strings.Join(e.Unsharded, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "not in matrix: "+strings.Join(e.Unknown, ", "))
	}
	if len(e.Duplicated) > 0 {
		parts = append(parts, "declared twice: "+strings.Join(e.Duplicated, ", "))
	}
	return "cache shards do not match the test matrix: " + strings.Join(parts, "; ")
}

// Unwrap returns ErrShardMatrixMismatch for errors.Is() compatibility.
func (e *MatrixMismatchError) Unwrap() error { return ErrShardMatrixMismatch }

// ParseEnvSpec splits a tox environment name into its parts. The first
// dash-separated segment is the interpreter, a "pipX_Y" segment is the pip
// version, and a trailing "integration" segment marks integration tests.
func ParseEnvSpec(name string) (EnvSpec, error) {
	if !envNamePattern.MatchString(name) {
		return EnvSpec{}, &InvalidEnvError{Value: name}
	}

	segments := strings.Split(name, "-")
	spec := EnvSpec{Name: name, Interpreter: segments[0], Kind: KindUnit}
	for _, seg := range segments[1:] {
		switch {
		case seg == "integration":
			spec.Kind = KindIntegration
		case strings.HasPrefix(seg, "pip") && len(seg) > len("pip"):
			spec.Pip = strings.ReplaceAll(seg[len("pip"):], "_", ".")
		}
	}
	return spec, nil
}

// String returns the environment name.
func (s EnvSpec) String() string { return s.Name }

// LoadMatrix reads the test matrix from a CI workflow file.
func LoadMatrix(ref MatrixRef) ([]EnvSpec, error) {
	data, err := os.ReadFile(ref.File)
	if err != nil {
		return nil, fmt.Errorf("read workflow %s: %w", ref.File, err)
	}
	return ParseMatrix(data, ref)
}

// ParseMatrix extracts jobs.<job>.strategy.matrix.<key> from workflow YAML.
func ParseMatrix(data []byte, ref MatrixRef) ([]EnvSpec, error) {
	var workflow struct {
		Jobs map[string]struct {
			Strategy struct {
				Matrix map[string]yaml.Node `yaml:"matrix"`
			} `yaml:"strategy"`
		} `yaml:"jobs"`
	}
	if err := yaml.Unmarshal(data, &workflow); err != nil {
		return nil, fmt.Errorf("parse workflow %s: %w", ref.File, err)
	}

	job, ok := workflow.Jobs[ref.Job]
	if !ok {
		return nil, fmt.Errorf("job %q in %s: %w", ref.Job, ref.File, ErrMatrixNotFound)
	}
	node, ok := job.Strategy.Matrix[ref.Key]
	if !ok {
		return nil, fmt.Errorf("jobs.%s.strategy.matrix.%s in %s: %w", ref.Job, ref.Key, ref.File, ErrMatrixNotFound)
	}

	var names []string
	if err := node.Decode(&names); err != nil {
		return nil, fmt.Errorf("jobs.%s.strategy.matrix.%s must be a list of names: %w", ref.Job, ref.Key, err)
	}

	specs := make([]EnvSpec, 0, len(names))
	for _, n := range names {
		spec, err := ParseEnvSpec(n)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// ReconcileShards returns the shard list for a matrix. With no declared
// shards the matrix itself is the shard list; otherwise every matrix
// environment must map to exactly one declared shard and vice versa.
func ReconcileShards(matrix []EnvSpec, declared []string) ([]EnvSpec, error) {
	if len(declared) == 0 {
		return slices.Clone(matrix), nil
	}

	inMatrix := make(map[string]EnvSpec, len(matrix))
	for _, s := range matrix {
		inMatrix[s.Name] = s
	}

	var mismatch MatrixMismatchError
	seen := make(map[string]bool, len(declared))
	shards := make([]EnvSpec, 0, len(declared))
	for _, name := range declared {
		switch spec, ok := inMatrix[name]; {
		case seen[name]:
			mismatch.Duplicated = append(mismatch.Duplicated, name)
		case !ok:
			mismatch.Unknown = append(mismatch.Unknown, name)
		default:
			shards = append(shards, spec)
		}
		seen[name] = true
	}
	for _, s := range matrix {
		if !seen[s.Name] {
			mismatch.Unsharded = append(mismatch.Unsharded, s.Name)
		}
	}

	if len(mismatch.Unsharded)+len(mismatch.Unknown)+len(mismatch.Duplicated) > 0 {
		return nil, &mismatch
	}
	return shards, nil
}

// Select narrows shards to the named environments, preserving shard order.
// Every name must be a known shard.
func Select(shards []EnvSpec, names []string) ([]EnvSpec, error) {
	if len(names) == 0 {
		return shards, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []EnvSpec
	for _, s := range shards {
		if want[s.Name] {
			out = append(out, s)
			delete(want, s.Name)
		}
	}
	if len(want) > 0 {
		unknown := slices.Sorted(func(yield func(string) bool) {
			for n := range want {
				if !yield(n) {
					return
				}
			}
		})
		return nil, &MatrixMismatchError{Unknown: unknown}
	}
	return out, nil
}
