// SPDX-License-Identifier: MPL-2.0

package launcher

import (
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// ErrEmptyCommand is returned for a launch command with no words.
var ErrEmptyCommand = errors.New("empty launch command")

// ShellPath runs launch commands that need a shell (pipes, lists,
// redirections, command substitution).
const ShellPath = "/bin/sh"

// Argv turns a shell-form launch command into the argument vector to exec.
//
// A simple command (words and parameter expansions only) is expanded
// in-process against env, so the server runs without a shell in between
// and receives signals directly. Anything else runs under ShellPath with
// exec prepended, which gives the same PID behavior in the common case.
func Argv(command string, env []string) ([]string, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}

	file, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, fmt.Errorf("invalid launch command %q: %w", command, err)
	}

	call, ok := simpleCall(file)
	if !ok {
		return []string{ShellPath, "-c", "exec " + command}, nil
	}

	cfg := &expand.Config{Env: expand.ListEnviron(env...)}
	argv, err := expand.Fields(cfg, call.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to expand launch command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}
	return argv, nil
}

// simpleCall returns the single call expression of file when it can be
// expanded without running a shell.
func simpleCall(file *syntax.File) (*syntax.CallExpr, bool) {
	if len(file.Stmts) != 1 {
		return nil, false
	}
	stmt := file.Stmts[0]
	if stmt.Negated || stmt.Background || stmt.Coprocess || len(stmt.Redirs) > 0 {
		return nil, false
	}
	call, ok := stmt.Cmd.(*syntax.CallExpr)
	if !ok || len(call.Assigns) > 0 || len(call.Args) == 0 {
		return nil, false
	}

	simple := true
	syntax.Walk(call, func(node syntax.Node) bool {
		switch node.(type) {
		case *syntax.CmdSubst, *syntax.ProcSubst, *syntax.ArithmExp, *syntax.ExtGlob:
			simple = false
		}
		return simple
	})
	return call, simple
}
