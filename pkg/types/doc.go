// SPDX-License-Identifier: MPL-2.0

// Package types defines small value types shared by the recipe, launcher and
// CLI packages. It imports only the standard library.
package types
