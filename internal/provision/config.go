// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"io"

	"github.com/charmbracelet/log"
)

type (
	// Config holds the ambient settings of an ImageProvisioner.
	Config struct {
		// Logger receives provisioning decisions.
		Logger *log.Logger

		// Output receives engine build and pull progress.
		Output io.Writer

		// NoCache disables the engine's layer cache for local builds.
		NoCache bool

		// TagLatest also tags every locally built image with the floating
		// "latest" alias of its repository.
		TagLatest bool
	}

	// Option is a functional option for configuring a Config.
	Option func(*Config)
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Logger:    log.New(io.Discard),
		Output:    io.Discard,
		TagLatest: true,
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithOutput sets where engine progress is streamed.
func WithOutput(w io.Writer) Option {
	return func(c *Config) {
		c.Output = w
	}
}

// WithNoCache disables the engine layer cache for builds.
func WithNoCache(noCache bool) Option {
	return func(c *Config) {
		c.NoCache = noCache
	}
}

// WithTagLatest toggles the floating "latest" alias on local builds.
func WithTagLatest(tag bool) Option {
	return func(c *Config) {
		c.TagLatest = tag
	}
}

// Apply applies options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
