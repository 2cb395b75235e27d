// SPDX-License-Identifier: MPL-2.0

// Package shard builds the unified cache image from per-environment shards.
//
// The shard list is the test matrix of the CI workflow: every matrix
// environment maps to exactly one shard. Builder fans shards out in parallel,
// each one a provision-then-dispatch pair producing a tar artifact. Merger
// is the fan-in: it refuses to publish unless every shard is present and
// readable, then stacks one image layer per shard and exports or pushes the
// result.
package shard
