// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"runtime"
	"testing"
)

// SetHomeDir points the home directory of the current process at dir and
// returns a function restoring the previous value. The image builder stages
// build contexts below the home directory, so build tests call this first:
//
//	t.Cleanup(testutil.SetHomeDir(t, t.TempDir()))
//
// Windows uses USERPROFILE, everything else HOME.
func SetHomeDir(t testing.TB, dir string) func() {
	t.Helper()

	if runtime.GOOS == "windows" {
		return MustSetenv(t, "USERPROFILE", dir)
	}
	return MustSetenv(t, "HOME", dir)
}
