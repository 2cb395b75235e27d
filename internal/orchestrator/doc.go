// SPDX-License-Identifier: MPL-2.0

// Package orchestrator composes the dtox components from one Config.
//
// It is the only place that decides ordering: identities are resolved before
// any container operation, images are ensured before the cache volume is
// populated, and the volume is populated before the job is dispatched. The
// cache workflows reuse the same pieces, fanning shard jobs out through
// shard.Builder and merging their artifacts with shard.Merger.
package orchestrator
