// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"strings"
	"testing"
)

const testSchema = `
#Doc: {
	name:   string
	port:   int & >0 & <=65535 | *10000
	tags?: [...string]
}
`

type testDoc struct {
	Name string   `json:"name"`
	Port int      `json:"port"`
	Tags []string `json:"tags,omitempty"`
}

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("defaults are filled in", func(t *testing.T) {
		t.Parallel()

		res, err := Decode[testDoc]([]byte(testSchema), []byte(`name: "app"`), "#Doc")
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if res.Value.Name != "app" || res.Value.Port != 10000 {
			t.Errorf("unexpected value: %+v", res.Value)
		}
	})

	t.Run("constraint violation reports path and filename", func(t *testing.T) {
		t.Parallel()

		_, err := Decode[testDoc]([]byte(testSchema), []byte("name: \"app\"\nport: 70000\n"), "#Doc",
			WithFilename("browserbox.cue"))
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "browserbox.cue") || !strings.Contains(err.Error(), "port") {
			t.Errorf("error should mention filename and field, got %v", err)
		}
	})

	t.Run("missing required field", func(t *testing.T) {
		t.Parallel()

		if _, err := Decode[testDoc]([]byte(testSchema), []byte(`port: 80`), "#Doc"); err == nil {
			t.Error("expected error for missing name")
		}
	})

	t.Run("unknown definition is an internal error", func(t *testing.T) {
		t.Parallel()

		_, err := Decode[testDoc]([]byte(testSchema), []byte(`name: "x"`), "#Missing")
		if err == nil || !strings.Contains(err.Error(), "internal error") {
			t.Errorf("expected internal error, got %v", err)
		}
	})

	t.Run("oversized document is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := Decode[testDoc]([]byte(testSchema), []byte(`name: "app"`), "#Doc", WithMaxFileSize(4))
		if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
			t.Errorf("expected size error, got %v", err)
		}
	})
}

func TestDecodeMap(t *testing.T) {
	t.Parallel()

	m, err := DecodeMap([]byte(testSchema), []byte(`name: "app"`), "#Doc")
	if err != nil {
		t.Fatalf("DecodeMap failed: %v", err)
	}
	if m["name"] != "app" {
		t.Errorf("name = %v, want app", m["name"])
	}
	if _, ok := m["tags"]; ok {
		t.Error("optional tags should be absent")
	}
}
