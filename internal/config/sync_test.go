// SPDX-License-Identifier: MPL-2.0

package config

import (
	"reflect"
	"strings"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// TestConfigSchemaSync keeps the CUE schema fields and the Go JSON tags of
// Config and its nested structs aligned.
func TestConfigSchemaSync(t *testing.T) {
	t.Parallel()

	ctx := cuecontext.New()
	schema := ctx.CompileBytes(configSchema)
	if schema.Err() != nil {
		t.Fatalf("failed to compile schema: %v", schema.Err())
	}
	root := schema.LookupPath(cue.ParsePath("#Config"))
	if root.Err() != nil {
		t.Fatalf("#Config not found: %v", root.Err())
	}
	top := cueFields(t, root)

	tests := []struct {
		name string
		val  cue.Value
		typ  reflect.Type
	}{
		{"Config", root, reflect.TypeFor[Config]()},
		{"UIConfig", top["ui"], reflect.TypeFor[UIConfig]()},
		{"BuildConfig", top["build"], reflect.TypeFor[BuildConfig]()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cueSet := cueFields(t, tt.val)
			goTags := make(map[string]bool)
			for i := range tt.typ.NumField() {
				name, _, _ := strings.Cut(tt.typ.Field(i).Tag.Get("json"), ",")
				goTags[name] = true
			}

			for f := range cueSet {
				if !goTags[f] {
					t.Errorf("CUE field %q has no Go JSON tag", f)
				}
			}
			for f := range goTags {
				if _, ok := cueSet[f]; !ok {
					t.Errorf("Go JSON tag %q has no CUE field", f)
				}
			}
		})
	}
}

func cueFields(t *testing.T, v cue.Value) map[string]cue.Value {
	t.Helper()

	iter, err := v.Fields(cue.Optional(true))
	if err != nil {
		t.Fatalf("failed to iterate fields: %v", err)
	}
	fields := make(map[string]cue.Value)
	for iter.Next() {
		fields[strings.TrimSuffix(iter.Selector().String(), "?")] = iter.Value()
	}
	return fields
}
