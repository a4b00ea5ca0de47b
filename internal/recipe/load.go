// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/browserbox/browserbox/pkg/cueutil"
)

//go:embed recipe_schema.cue
var recipeSchema []byte

// Parse decodes a CUE recipe document. Fields the document omits take the
// schema defaults. The decoded recipe is validated before it is returned.
func Parse(data []byte, filename string) (*Recipe, error) {
	res, err := cueutil.Decode[Recipe](recipeSchema, data, "#Recipe", cueutil.WithFilename(filename))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecipe, err)
	}
	r := res.Value
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return r, nil
}

// Load reads and parses the recipe file at path.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe: %w", err)
	}
	return Parse(data, path)
}

// Resolve returns the recipe at explicitPath when set, otherwise the
// browserbox.cue inside contextDir, otherwise Default. The second return
// value is the file the recipe came from, empty for the default.
func Resolve(contextDir, explicitPath string) (*Recipe, string, error) {
	if explicitPath != "" {
		r, err := Load(explicitPath)
		if err != nil {
			return nil, "", err
		}
		return r, explicitPath, nil
	}

	candidate := filepath.Join(contextDir, FileName)
	info, err := os.Stat(candidate)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Default(), "", nil
	case err != nil:
		return nil, "", fmt.Errorf("failed to stat recipe: %w", err)
	case info.IsDir():
		return nil, "", fmt.Errorf("%w: %s is a directory", ErrInvalidRecipe, candidate)
	}

	r, err := Load(candidate)
	if err != nil {
		return nil, "", err
	}
	return r, candidate, nil
}
