// SPDX-License-Identifier: MPL-2.0

package launcher

import (
	"errors"
	"slices"
	"testing"
)

func TestArgv(t *testing.T) {
	t.Parallel()

	env := []string{"PORT=8080", "WORKERS=4"}

	tests := []struct {
		name    string
		command string
		want    []string
	}{
		{
			name:    "default launch command",
			command: "gunicorn --bind 0.0.0.0:${PORT} app:app",
			want:    []string{"gunicorn", "--bind", "0.0.0.0:8080", "app:app"},
		},
		{
			name:    "plain variable",
			command: "gunicorn -w $WORKERS app:app",
			want:    []string{"gunicorn", "-w", "4", "app:app"},
		},
		{
			name:    "unset variable expands to nothing",
			command: "gunicorn --bind 0.0.0.0:${UNSET} app:app",
			want:    []string{"gunicorn", "--bind", "0.0.0.0:", "app:app"},
		},
		{
			name:    "default value",
			command: "serve ${HOST:-0.0.0.0}",
			want:    []string{"serve", "0.0.0.0"},
		},
		{
			name:    "quoted arguments",
			command: `python -c 'print("hi there")'`,
			want:    []string{"python", "-c", `print("hi there")`},
		},
		{
			name:    "pipeline runs under a shell",
			command: "gunicorn app:app | tee server.log",
			want:    []string{ShellPath, "-c", "exec gunicorn app:app | tee server.log"},
		},
		{
			name:    "command substitution runs under a shell",
			command: "gunicorn -w $(nproc) app:app",
			want:    []string{ShellPath, "-c", "exec gunicorn -w $(nproc) app:app"},
		},
		{
			name:    "assignment prefix runs under a shell",
			command: "FLASK_ENV=production gunicorn app:app",
			want:    []string{ShellPath, "-c", "exec FLASK_ENV=production gunicorn app:app"},
		},
		{
			name:    "list runs under a shell",
			command: "migrate && gunicorn app:app",
			want:    []string{ShellPath, "-c", "exec migrate && gunicorn app:app"},
		},
		{
			name:    "redirection runs under a shell",
			command: "gunicorn app:app 2>&1",
			want:    []string{ShellPath, "-c", "exec gunicorn app:app 2>&1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Argv(tt.command, env)
			if err != nil {
				t.Fatalf("Argv(%q) error = %v", tt.command, err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Argv(%q) = %q, want %q", tt.command, got, tt.want)
			}
		})
	}
}

func TestArgv_Errors(t *testing.T) {
	t.Parallel()

	for _, command := range []string{"", "   ", "\n\t"} {
		if _, err := Argv(command, nil); !errors.Is(err, ErrEmptyCommand) {
			t.Errorf("Argv(%q) error = %v, want ErrEmptyCommand", command, err)
		}
	}

	if _, err := Argv("$EMPTY", []string{"EMPTY="}); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("Argv of an empty expansion error = %v, want ErrEmptyCommand", err)
	}

	if _, err := Argv("gunicorn 'app:app", nil); err == nil {
		t.Error("Argv() with an unterminated quote should fail")
	}
}
