// SPDX-License-Identifier: MPL-2.0

// Package container drives a local container engine (Docker or Podman) through
// its command-line interface.
//
// The Engine interface covers what browserbox needs from an engine: build an
// image with labels, tag and remove images, read an image label, and run a
// container. DockerEngine and PodmanEngine embed BaseCLIEngine, which builds
// the argument lists and runs the binary through an injectable ExecCommandFunc.
//
// Engine selection uses NewEngine(EngineType) with fallback to the other engine
// when the preferred one is unavailable, or AutoDetectEngine for no preference.
// ParseEngineType normalizes user input such as " Podman ".
package container
