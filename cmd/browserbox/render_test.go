// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/browserbox/browserbox/internal/issue"
)

func TestReportError(t *testing.T) {
	t.Parallel()

	cause := errors.New("base_image: conflicting values")
	withIssue := issue.NewErrorContext().
		WithOperation("load recipe").
		WithResource("browserbox.cue").
		WithIssue(issue.RecipeInvalidId).
		WithSuggestion("Run 'browserbox recipe show' to inspect the effective recipe").
		Wrap(cause).
		BuildError()

	tests := []struct {
		name     string
		err      error
		verbose  bool
		contains []string
		empty    bool
	}{
		{name: "plain error", err: errors.New("boom"), empty: true},
		{
			name:     "suggestions and catalog entry",
			err:      withIssue,
			contains: []string{"recipe show", "Invalid recipe"},
		},
		{
			name:     "wrapped in an exit error",
			err:      &ExitError{Code: 2, Err: fmt.Errorf("build: %w", withIssue)},
			contains: []string{"Invalid recipe"},
		},
		{
			name:     "verbose error chain",
			err:      issue.NewErrorContext().WithOperation("start server").Wrap(cause).BuildError(),
			verbose:  true,
			contains: []string{"Error chain:", "conflicting values"},
		},
		{
			name:  "nothing to add",
			err:   issue.NewErrorContext().WithOperation("start server").Wrap(cause).BuildError(),
			empty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			reportError(&buf, tt.err, tt.verbose)
			out := buf.String()

			if tt.empty && out != "" {
				t.Errorf("reportError() wrote %q, want nothing", out)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("reportError() output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestGetVersionString(t *testing.T) {
	// Mutates the package-level version variables.
	original := Version
	t.Cleanup(func() { Version = original })

	Version = "v1.2.3"
	if got := getVersionString(); !strings.HasPrefix(got, "v1.2.3 (commit:") {
		t.Errorf("getVersionString() = %q", got)
	}

	Version = "dev"
	if got := getVersionString(); got == "" {
		t.Error("getVersionString() is empty for a dev build")
	}
}
