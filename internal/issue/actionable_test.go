// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "load recipe"},
			expected: "failed to load recipe",
		},
		{
			name:     "operation with resource",
			err:      &ActionableError{Operation: "load recipe", Resource: "./browserbox.cue"},
			expected: "failed to load recipe: ./browserbox.cue",
		},
		{
			name:     "operation with cause",
			err:      &ActionableError{Operation: "start server", Cause: errors.New("address already in use")},
			expected: "failed to start server: address already in use",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "build image",
				Resource:  "browserbox-app:latest",
				Cause:     errors.New("exit status 100"),
			},
			expected: "failed to build image: browserbox-app:latest: exit status 100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("underlying error")
	err := &ActionableError{Operation: "test", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if (&ActionableError{Operation: "test"}).Unwrap() != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		verbose  bool
		contains []string
		excludes []string
	}{
		{
			name: "suggestions listed",
			err: &ActionableError{
				Operation:   "load recipe",
				Resource:    "./browserbox.cue",
				Suggestions: []string{"Run 'browserbox recipe init'", "Check CUE syntax"},
			},
			contains: []string{
				"failed to load recipe",
				"./browserbox.cue",
				"• Run 'browserbox recipe init'",
				"• Check CUE syntax",
			},
		},
		{
			name: "no error chain in non-verbose",
			err: &ActionableError{
				Operation: "parse config",
				Cause:     errors.New("syntax error"),
			},
			contains: []string{"failed to parse config: syntax error"},
			excludes: []string{"Error chain:"},
		},
		{
			name: "nested error chain verbose",
			err: &ActionableError{
				Operation: "build image",
				Cause: &ActionableError{
					Operation: "copy source tree",
					Cause:     errors.New("permission denied"),
				},
			},
			verbose: true,
			contains: []string{
				"Error chain:",
				"1. failed to copy source tree: permission denied",
				"2. permission denied",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := tt.err.Format(tt.verbose)
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("Format() missing %q\ngot:\n%s", s, got)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(got, s) {
					t.Errorf("Format() should not contain %q\ngot:\n%s", s, got)
				}
			}
		})
	}
}

func TestActionableError_HasSuggestions(t *testing.T) {
	t.Parallel()

	if !(&ActionableError{Operation: "test", Suggestions: []string{"Try this"}}).HasSuggestions() {
		t.Error("HasSuggestions() should return true when suggestions present")
	}
	if (&ActionableError{Operation: "test"}).HasSuggestions() {
		t.Error("HasSuggestions() should return false when no suggestions")
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	t.Run("missing operation returns nil", func(t *testing.T) {
		t.Parallel()

		if err := NewErrorContext().WithResource("some/path").Build(); err != nil {
			t.Errorf("Build() = %v, want nil", err)
		}
		if err := NewErrorContext().BuildError(); err != nil {
			t.Errorf("BuildError() = %v, want nil", err)
		}
	})

	t.Run("full context", func(t *testing.T) {
		t.Parallel()

		err := NewErrorContext().
			WithOperation("load configuration").
			WithResource("/home/u/.config/browserbox/config.cue").
			WithSuggestion("Check syntax").
			WithSuggestion("Verify permissions").
			WithSuggestion("Run 'browserbox config show'").
			WithIssue(ConfigLoadFailedId).
			Wrap(errors.New("parse error")).
			Build()

		if err.Operation != "load configuration" || err.Resource == "" {
			t.Errorf("unexpected error fields: %+v", err)
		}
		if len(err.Suggestions) != 3 {
			t.Errorf("Suggestions count = %d, want 3", len(err.Suggestions))
		}
		if err.Issue != ConfigLoadFailedId {
			t.Errorf("Issue = %d, want %d", err.Issue, ConfigLoadFailedId)
		}
		if err.Cause == nil || err.Cause.Error() != "parse error" {
			t.Errorf("Cause = %v", err.Cause)
		}
	})

	t.Run("BuildError returns ActionableError", func(t *testing.T) {
		t.Parallel()

		var ae *ActionableError
		if !errors.As(NewErrorContext().WithOperation("test").BuildError(), &ae) {
			t.Error("BuildError() should return *ActionableError")
		}
	})
}

func TestErrorContext_Reuse(t *testing.T) {
	t.Parallel()

	ctx := NewErrorContext().
		WithOperation("stage build context").
		WithResource("/srv/app")

	err1 := ctx.Wrap(errors.New("error 1")).Build()
	err2 := ctx.Wrap(errors.New("error 2")).Build()

	if err1.Cause.Error() == err2.Cause.Error() {
		t.Error("Reused context should allow different causes")
	}
	if err1.Operation != err2.Operation {
		t.Error("Reused context should preserve operation")
	}
}
