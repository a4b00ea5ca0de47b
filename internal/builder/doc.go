// SPDX-License-Identifier: MPL-2.0

// Package builder turns a recipe and an application source tree into a
// tagged container image.
//
// A build stages a filtered copy of the source tree next to the generated
// Dockerfile, builds it under a staging tag labeled with a content digest,
// and promotes the staging tag to the target only after the whole build
// succeeded. A target that already carries the same digest is left alone.
package builder
