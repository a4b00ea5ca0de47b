// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved, hints
// for fixing it, and optionally a catalog Id whose Markdown guidance the CLI
// renders with glamour.
package issue
