// SPDX-License-Identifier: MPL-2.0

// Package recipe models the runtime image of a headless-browser Python web
// application and renders it as an ordered list of build steps.
//
// A Recipe is loaded from a browserbox.cue file validated against the
// embedded #Recipe schema, or taken from Default. The steps always come out
// in the same order: base image, system packages, working directory,
// dependency manifest, dependency install, application source, environment,
// launch command.
package recipe
