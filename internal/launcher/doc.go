// SPDX-License-Identifier: MPL-2.0

// Package launcher runs the production web server inside the image.
//
// The launcher resolves the listen port from the runtime configuration,
// refuses to start when the port is taken, expands the launch command
// against the runtime environment and supervises the server as a child
// process: output is forwarded line by line as it is produced and a stop
// request becomes SIGTERM, then SIGKILL after the shutdown timeout. The
// launcher never restarts a server; that is the orchestrator's job.
package launcher
