// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers for tests that touch the process
// environment, the working directory, or a real container engine.
package testutil
