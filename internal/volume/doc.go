// SPDX-License-Identifier: MPL-2.0

// Package volume seeds the persistent cache volume from the published cache
// image.
//
// Whether a volume is already populated is recorded explicitly: a seeded
// volume carries the dtox.seed label holding the image ID it was seeded from.
// Populate is a no-op when the label matches the freshly pulled image, and
// rebuilds the volume otherwise. Every failure to obtain or copy the cache
// degrades to a cold cache instead of failing the run.
package volume
