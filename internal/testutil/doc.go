// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by browserbox tests: environment
// and home directory overrides that restore themselves, file system helpers
// that fail the test on error, and a semaphore bounding container tests.
package testutil
