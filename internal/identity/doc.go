// SPDX-License-Identifier: MPL-2.0

// Package identity derives content-addressed image tags from build inputs.
//
// An Identity is the SHA-256 digest of the raw bytes of an ordered set of
// files. The same bytes in the same order always produce the same Identity,
// so an image tagged with it can be reused by any machine that resolves the
// same inputs. The derived image identity covers the base inputs followed by
// the derived inputs, so a base change invalidates both images.
package identity
