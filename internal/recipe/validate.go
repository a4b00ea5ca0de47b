// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/browserbox/browserbox/pkg/types"
)

// ErrInvalidRecipe is the sentinel wrapped by every recipe validation error.
var ErrInvalidRecipe = errors.New("invalid recipe")

var (
	imageRefPattern    = regexp.MustCompile(`^\S+(:\w[\w.-]{0,127}|@sha256:[a-f0-9]{64})$`)
	packageNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9+.-]+$`)
	envNamePattern     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

type (
	// FieldError describes one invalid recipe field.
	FieldError struct {
		Field   string
		Message string
	}

	// ValidationError collects every FieldError found in a recipe.
	ValidationError struct {
		Fields []FieldError
	}
)

func (e FieldError) String() string {
	return e.Field + ": " + e.Message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("invalid recipe: %s", e.Fields[0])
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("invalid recipe: %d errors:\n  %s", len(e.Fields), strings.Join(parts, "\n  "))
}

// Unwrap returns ErrInvalidRecipe.
func (e *ValidationError) Unwrap() error { return ErrInvalidRecipe }

// Validate checks the invariants the build and the launcher rely on:
// a pinned base image, a de-duplicated package list, an absolute working
// directory, a relative manifest path, a non-empty install command, unique
// environment names with a numeric PORT, and a launch command.
func (r *Recipe) Validate() error {
	var fields []FieldError
	add := func(field, format string, args ...any) {
		fields = append(fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !imageRefPattern.MatchString(r.BaseImage) {
		add("base_image", "%q must be pinned by tag (name:tag) or digest (name@sha256:...)", r.BaseImage)
	}

	seenPkg := make(map[string]int, len(r.SystemPackages))
	for i, pkg := range r.SystemPackages {
		field := fmt.Sprintf("system_packages[%d]", i)
		if !packageNamePattern.MatchString(pkg) {
			add(field, "%q is not a valid package name", pkg)
			continue
		}
		if first, dup := seenPkg[pkg]; dup {
			add(field, "duplicate package %q (same as system_packages[%d])", pkg, first)
			continue
		}
		seenPkg[pkg] = i
	}

	if !path.IsAbs(r.Workdir) {
		add("workdir", "%q must be an absolute path", r.Workdir)
	}

	switch {
	case r.Manifest == "":
		add("manifest", "must not be empty")
	case path.IsAbs(r.Manifest):
		add("manifest", "%q must be relative to the build context", r.Manifest)
	case path.Clean(r.Manifest) == ".." || strings.HasPrefix(path.Clean(r.Manifest), "../"):
		add("manifest", "%q escapes the build context", r.Manifest)
	}

	if len(r.Install) == 0 || strings.TrimSpace(r.Install[0]) == "" {
		add("install", "must name a command")
	}

	seenEnv := make(map[string]int, len(r.Env))
	for i, e := range r.Env {
		field := fmt.Sprintf("env[%d]", i)
		if !envNamePattern.MatchString(e.Name) {
			add(field+".name", "%q is not a valid environment variable name", e.Name)
			continue
		}
		if first, dup := seenEnv[e.Name]; dup {
			add(field+".name", "duplicate variable %q (same as env[%d])", e.Name, first)
			continue
		}
		seenEnv[e.Name] = i
		if strings.ContainsAny(e.Value, "\r\n") {
			add(field+".value", "must be a single line")
		}
		if e.Name == EnvPort {
			if _, err := types.ParsePort(e.Value); err != nil {
				add(field+".value", "%v", err)
			}
		}
	}
	if _, ok := seenEnv[EnvPort]; !ok {
		add("env", "%s must be set", EnvPort)
	}

	if strings.TrimSpace(r.Launch.Command) == "" {
		add("launch.command", "must not be empty")
	}
	if r.Browser.Engine == "" {
		add("browser.engine", "must not be empty")
	}
	if r.Browser.Driver == "" {
		add("browser.driver", "must not be empty")
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
