// SPDX-License-Identifier: MPL-2.0

// Package config loads the dtox configuration.
//
// Settings come from three layers, later ones winning: built-in defaults, the
// project's dtox.cue file (validated against the embedded #Config schema), and
// a fixed set of environment variables (BASE_MODE, CACHE_MODE, CACHE_TAG, ...).
// This is the only package that reads the process environment; Load also
// captures the host identity and an environment snapshot used later for
// variable forwarding, so every other component works from an explicit Config.
package config
