// SPDX-License-Identifier: MPL-2.0

package shard

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"

	"github.com/sthagen/pantsbuild-pex/internal/identity"
)

const (
	// PostActionExport writes the merged image to a docker-loadable tarball.
	PostActionExport PostAction = "export"
	// PostActionPush pushes the merged image to its registry.
	PostActionPush PostAction = "push"

	// LabelShards records the comma-separated environments merged into an image.
	LabelShards = "dtox.shards"
)

var (
	// ErrMerge is the sentinel error wrapped by MergeError.
	ErrMerge = errors.New("cache merge failed")

	// ErrInvalidPostAction is the sentinel error wrapped by InvalidPostActionError.
	ErrInvalidPostAction = errors.New("invalid post action")

	errEmptyShard = errors.New("archive contains no entries")

	errNoShards = errors.New("no cache shards to merge")
)

type (
	// PostAction selects what happens to the merged image.
	PostAction string

	// Credentials are registry basic-auth credentials. The zero value means
	// the docker credential keychain is used instead.
	Credentials struct {
		Username string
		Password string
	}

	// MergerConfig configures the merge and publish step.
	MergerConfig struct {
		// BaseImage is the image the shard layers are stacked on. Empty means
		// an empty image with no base layers.
		BaseImage string
		// Platform selects the base image variant; defaults to linux/GOARCH.
		Platform *v1.Platform
		// ExportPath is the tarball written by PostActionExport.
		ExportPath  string
		Credentials Credentials
		// Insecure allows plain HTTP registries.
		Insecure bool
		Logger   *log.Logger
	}

	// Merger combines shard artifacts into one image.
	Merger struct {
		config MergerConfig
	}

	// MergeError reports why a merge was refused or failed.
	MergeError struct {
		// Missing lists environments whose artifact does not exist.
		Missing []string
		// Malformed names the first environment whose artifact is unreadable.
		Malformed string
		Err       error
	}

	// InvalidPostActionError is returned when a PostAction is not recognized.
	InvalidPostActionError struct {
		Value PostAction
	}
)

// Error implements the error interface.
func (e *MergeError) Error() string {
	switch {
	case len(e.Missing) > 0:
		return "cache merge incomplete, missing shards: " + strings.Join(e.Missing, ", ")
	case e.Malformed != "":
		return fmt.Sprintf("cache shard %s is malformed: %v", e.Malformed, e.Err)
	default:
		return fmt.Sprintf("cache merge failed: %v", e.Err)
	}
}

// Unwrap exposes ErrMerge and the cause, if any.
func (e *MergeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMerge}
	}
	return []error{ErrMerge, e.Err}
}

// Error implements the error interface.
func (e *InvalidPostActionError) Error() string {
	return fmt.Sprintf("invalid post action %q (expected export or push)", e.Value)
}

// Unwrap returns ErrInvalidPostAction for errors.Is() compatibility.
func (e *InvalidPostActionError) Unwrap() error { return ErrInvalidPostAction }

// Validate returns an error if the PostAction is not recognized.
func (a PostAction) Validate() error {
	switch a {
	case PostActionExport, PostActionPush:
		return nil
	default:
		return &InvalidPostActionError{Value: a}
	}
}

// String returns the string representation of the PostAction.
func (a PostAction) String() string { return string(a) }

// NewMerger creates a Merger.
func NewMerger(cfg MergerConfig) *Merger {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.Platform == nil {
		cfg.Platform = &v1.Platform{OS: "linux", Architecture: runtime.GOARCH}
	}
	return &Merger{config: cfg}
}

// MergeAndPublish stacks one layer per shard, ordered by environment name,
// labels the result with the shard list, and exports or pushes it as target.
// Nothing is published unless every shard is present and readable.
func (m *Merger) MergeAndPublish(ctx context.Context, shards []CacheShard, target identity.ImageRef, action PostAction) (v1.Hash, error) {
	if err := action.Validate(); err != nil {
		return v1.Hash{}, err
	}
	tag, err := m.tag(target)
	if err != nil {
		return v1.Hash{}, err
	}

	if len(shards) == 0 {
		return v1.Hash{}, &MergeError{Err: errNoShards}
	}

	ordered := slices.Clone(shards)
	slices.SortFunc(ordered, func(a, b CacheShard) int { return strings.Compare(a.Env.Name, b.Env.Name) })

	if missing := missingShards(ordered); len(missing) > 0 {
		return v1.Hash{}, &MergeError{Missing: missing}
	}

	layers := make([]v1.Layer, 0, len(ordered))
	envs := make([]string, 0, len(ordered))
	for _, s := range ordered {
		layer, err := readLayer(s.Path)
		if err != nil {
			return v1.Hash{}, &MergeError{Malformed: s.Env.Name, Err: err}
		}
		layers = append(layers, layer)
		envs = append(envs, s.Env.Name)
	}

	img, err := m.merge(ctx, layers, envs)
	if err != nil {
		return v1.Hash{}, &MergeError{Err: err}
	}
	digest, err := img.Digest()
	if err != nil {
		return v1.Hash{}, &MergeError{Err: err}
	}

	logger := m.config.Logger.With("image", tag.String(), "digest", digest.String())
	switch action {
	case PostActionExport:
		if err := m.export(tag, img); err != nil {
			return v1.Hash{}, err
		}
		logger.Info("exported cache image", "path", m.config.ExportPath, "shards", len(envs))
	case PostActionPush:
		if err := remote.Write(tag, img, remote.WithContext(ctx), m.auth()); err != nil {
			return v1.Hash{}, fmt.Errorf("push %s: %w", tag, err)
		}
		logger.Info("pushed cache image", "shards", len(envs))
	}
	return digest, nil
}

func (m *Merger) tag(target identity.ImageRef) (name.Tag, error) {
	if err := target.Validate(); err != nil {
		return name.Tag{}, err
	}
	opts := []name.Option{name.StrictValidation}
	if m.config.Insecure {
		opts = append(opts, name.Insecure)
	}
	return name.NewTag(target.String(), opts...)
}

func (m *Merger) merge(ctx context.Context, layers []v1.Layer, envs []string) (v1.Image, error) {
	base, err := m.base(ctx)
	if err != nil {
		return nil, err
	}

	img, err := mutate.AppendLayers(base, layers...)
	if err != nil {
		return nil, fmt.Errorf("append shard layers: %w", err)
	}

	cf, err := img.ConfigFile()
	if err != nil {
		return nil, fmt.Errorf("read image config: %w", err)
	}
	cf = cf.DeepCopy()
	if cf.Config.Labels == nil {
		cf.Config.Labels = make(map[string]string, 1)
	}
	cf.Config.Labels[LabelShards] = strings.Join(envs, ",")
	if cf.OS == "" {
		cf.OS = m.config.Platform.OS
		cf.Architecture = m.config.Platform.Architecture
	}
	return mutate.ConfigFile(img, cf)
}

func (m *Merger) base(ctx context.Context) (v1.Image, error) {
	if m.config.BaseImage == "" {
		return empty.Image, nil
	}

	var opts []name.Option
	if m.config.Insecure {
		opts = append(opts, name.Insecure)
	}
	ref, err := name.ParseReference(m.config.BaseImage, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse base image %q: %w", m.config.BaseImage, err)
	}
	img, err := remote.Image(ref, remote.WithContext(ctx), remote.WithPlatform(*m.config.Platform), m.auth())
	if err != nil {
		return nil, fmt.Errorf("fetch base image %s: %w", ref, err)
	}
	return img, nil
}

func (m *Merger) auth() remote.Option {
	if m.config.Credentials.Username != "" {
		return remote.WithAuth(authn.FromConfig(authn.AuthConfig{
			Username: m.config.Credentials.Username,
			Password: m.config.Credentials.Password,
		}))
	}
	return remote.WithAuthFromKeychain(authn.DefaultKeychain)
}

func (m *Merger) export(tag name.Tag, img v1.Image) error {
	if m.config.ExportPath == "" {
		return &MergeError{Err: errors.New("no export path configured")}
	}
	if err := os.MkdirAll(filepath.Dir(m.config.ExportPath), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	if err := tarball.WriteToFile(m.config.ExportPath, tag, img); err != nil {
		return fmt.Errorf("export %s: %w", tag, err)
	}
	return nil
}

func missingShards(shards []CacheShard) []string {
	var missing []string
	for _, s := range shards {
		info, err := os.Stat(s.Path)
		if err != nil || info.IsDir() {
			missing = append(missing, s.Env.Name)
		}
	}
	return missing
}

// readLayer opens a shard artifact as a layer after reading it through
// once, so a truncated or non-tar file is rejected before anything is built.
func readLayer(path string) (v1.Layer, error) {
	layer, err := tarball.LayerFromFile(path)
	if err != nil {
		return nil, err
	}
	rc, err := layer.Uncompressed()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	tr := tar.NewReader(rc)
	entries := 0
	for {
		if _, err := tr.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if _, err := io.Copy(io.Discard, tr); err != nil {
			return nil, err
		}
		entries++
	}
	if entries == 0 {
		return nil, errEmptyShard
	}
	return layer, nil
}
