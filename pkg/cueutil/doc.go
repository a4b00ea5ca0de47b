// SPDX-License-Identifier: MPL-2.0

// Package cueutil compiles CUE documents against an embedded schema definition
// and decodes the unified value into Go structs.
//
//	//go:embed recipe_schema.cue
//	var schema []byte
//
//	res, err := cueutil.Decode[Recipe](schema, data, "#Recipe",
//	    cueutil.WithFilename("browserbox.cue"))
//
// Errors carry the file name and the JSON-style path of the offending field,
// e.g. "browserbox.cue: env[2].value: conflicting values".
package cueutil
