// SPDX-License-Identifier: MPL-2.0

package config

import "context"

// LoadOptions defines explicit configuration loading inputs.
type LoadOptions struct {
	// ConfigFilePath forces loading from a specific config file when set.
	ConfigFilePath string
	// ProjectDir is the project root; defaults to the config file's
	// directory, then the working directory.
	ProjectDir string
}

// Provider loads configuration from explicit options.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Config, error)
	// Path reports the config file Load would read, empty if none.
	Path(opts LoadOptions) (string, error)
}

type fileProvider struct{}

// NewProvider creates a configuration provider.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load reads configuration from the requested source.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	return Load(ctx, opts)
}

// Path reports the config file Load would read.
func (p *fileProvider) Path(opts LoadOptions) (string, error) {
	root, err := projectRoot(opts)
	if err != nil {
		return "", err
	}
	return resolveConfigPath(opts, root)
}
