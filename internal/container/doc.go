// SPDX-License-Identifier: MPL-2.0

// Package container provides a unified abstraction layer for container engines (Docker/Podman).
//
// The Engine interface covers everything the orchestrator asks of an engine:
// image build, pull, tag, and presence checks, disposable container runs, and
// named volume management. DockerEngine and PodmanEngine both embed
// BaseCLIEngine, which owns CLI argument construction and command execution.
//
// Engine selection uses NewEngine(EngineType) with automatic fallback if the
// preferred engine is unavailable, or AutoDetectEngine() for preference-less
// detection (Docker is tried first).
//
// Nothing in this package retries. A failed build or pull is reported once
// and the caller decides whether the failure is fatal.
package container

//go:generate go run go.uber.org/mock/mockgen -source=engine.go -destination=mocks/mock_engine.go -package=mocks
