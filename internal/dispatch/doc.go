// SPDX-License-Identifier: MPL-2.0

// Package dispatch launches one containerized job and reports its exit code.
//
// A Job names the image, its volume bindings, and which host environment
// variables to forward. The dispatcher adds the cross-cutting concerns: host
// user mapping, SSH agent forwarding, TTY handling, the inspect shell, and
// removal of the container on exit or cancellation. The job's exit code is
// returned verbatim; only failures to invoke the engine are errors.
package dispatch
