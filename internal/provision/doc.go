// SPDX-License-Identifier: MPL-2.0

// Package provision guarantees that a content-addressed image is present in
// the local engine store before anything runs on it.
//
// An image whose identity tag already exists locally is never rebuilt or
// re-pulled. Otherwise the configured Mode decides: build from the local
// Dockerfile, pull from the registry, or fail.
package provision
