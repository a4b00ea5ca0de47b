// SPDX-License-Identifier: MPL-2.0

// Package browser locates the headless browser engine and its driver on the
// current host and can launch the engine once to prove it starts.
package browser
