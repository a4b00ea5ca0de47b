// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"runtime"
	"testing"
)

func TestSetHomeDir(t *testing.T) {
	key := "HOME"
	if runtime.GOOS == "windows" {
		key = "USERPROFILE"
	}

	tmpDir := t.TempDir()
	original, had := os.LookupEnv(key)

	cleanup := SetHomeDir(t, tmpDir)
	if got := os.Getenv(key); got != tmpDir {
		t.Errorf("%s = %q, want %q", key, got, tmpDir)
	}
	if home, err := os.UserHomeDir(); err != nil || home != tmpDir {
		t.Errorf("os.UserHomeDir() = %q, %v, want %q", home, err, tmpDir)
	}

	cleanup()

	got, ok := os.LookupEnv(key)
	if ok != had || got != original {
		t.Errorf("after cleanup %s = %q (set %v), want %q (set %v)", key, got, ok, original, had)
	}
}

func TestMustSetenv_Unset(t *testing.T) {
	const key = "BROWSERBOX_TESTUTIL_UNSET"
	if err := os.Unsetenv(key); err != nil {
		t.Fatal(err)
	}

	cleanup := MustSetenv(t, key, "value")
	if os.Getenv(key) != "value" {
		t.Fatalf("%s not set", key)
	}
	cleanup()
	if _, ok := os.LookupEnv(key); ok {
		t.Errorf("%s still set after cleanup", key)
	}
}

func TestContainerParallelism(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{value: "4", want: 4},
		{value: "0", want: min(runtime.GOMAXPROCS(0), 2)},
		{value: "many", want: min(runtime.GOMAXPROCS(0), 2)},
	}
	for _, tt := range tests {
		t.Setenv("BROWSERBOX_TEST_CONTAINER_PARALLEL", tt.value)
		if got := containerParallelism(); got != tt.want {
			t.Errorf("containerParallelism() with %q = %d, want %d", tt.value, got, tt.want)
		}
	}
}
