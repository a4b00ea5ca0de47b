// SPDX-License-Identifier: MPL-2.0

package builder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/browserbox/browserbox/internal/container"
	"github.com/browserbox/browserbox/internal/issue"
	"github.com/browserbox/browserbox/internal/recipe"
	"github.com/browserbox/browserbox/pkg/types"
)

// ErrVerificationFailed is returned by Verification.Err when the image does
// not provide what the recipe promises.
var ErrVerificationFailed = errors.New("image verification failed")

const (
	probeAptLists = "apt-lists"
	probeEngine   = "engine"
	probeDriver   = "driver"
	probePort     = "port"

	aptListsEmpty = "empty"
)

// Verification is the report of a probe run inside a built image.
type Verification struct {
	Image string
	// AptListsEmpty is true when no package index cache is left in the image.
	AptListsEmpty bool
	// EnginePath and DriverPath are the resolved executables, empty if missing.
	EnginePath string
	DriverPath string
	// Port is the PORT baked into the image environment.
	Port string
	// Failures lists every unmet expectation.
	Failures []string
}

// OK reports whether the image passed every check.
func (v *Verification) OK() bool {
	return len(v.Failures) == 0
}

// Err returns nil for a passing image, or an actionable error listing the failures.
func (v *Verification) Err() error {
	if v.OK() {
		return nil
	}
	ctx := issue.NewErrorContext().
		WithOperation("verify image").
		WithResource(v.Image).
		WithIssue(issue.VerificationFailedId)
	for _, f := range v.Failures {
		ctx.WithSuggestion(f)
	}
	return ctx.Wrap(ErrVerificationFailed).BuildError()
}

// Verify runs the image once with a shell probe and checks that the package
// index cache is gone, that the browser engine and driver resolve on the
// search path, and that PORT carries the recipe's value.
func (b *Builder) Verify(ctx context.Context, image string, r *recipe.Recipe) (*Verification, error) {
	if r == nil {
		r = recipe.Default()
	}

	script, err := probeScript(r)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	res, err := b.engine.Run(ctx, container.RunOptions{
		Image:      image,
		Entrypoint: "/bin/sh",
		Command:    []string{"-c", script},
		Remove:     true,
		Stdout:     &stdout,
		Stderr:     &stderr,
	})
	if err != nil {
		return nil, err
	}
	if res.Error != nil {
		return nil, res.Error
	}
	if !res.ExitCode.IsSuccess() {
		return nil, fmt.Errorf("verification probe exited with code %d: %s", res.ExitCode, strings.TrimSpace(stderr.String()))
	}

	v := parseProbe(image, stdout.String())
	v.check(r)

	if v.OK() {
		b.logger.Info("Image verified", "image", image, "engine", v.EnginePath, "driver", v.DriverPath)
	} else {
		b.logger.Warn("Image verification failed", "image", image, "failures", len(v.Failures))
	}
	return v, nil
}

func probeScript(r *recipe.Recipe) (string, error) {
	engine, err := syntax.Quote(r.Browser.Engine, syntax.LangPOSIX)
	if err != nil {
		return "", fmt.Errorf("cannot quote engine name: %w", err)
	}
	driver, err := syntax.Quote(r.Browser.Driver, syntax.LangPOSIX)
	if err != nil {
		return "", fmt.Errorf("cannot quote driver name: %w", err)
	}

	lines := []string{
		fmt.Sprintf(`if [ -z "$(ls -A %s 2>/dev/null)" ]; then echo %s=%s; else echo %s=present; fi`,
			recipe.AptListsDir, probeAptLists, aptListsEmpty, probeAptLists),
		fmt.Sprintf(`echo %s="$(command -v %s || true)"`, probeEngine, engine),
		fmt.Sprintf(`echo %s="$(command -v %s || true)"`, probeDriver, driver),
		fmt.Sprintf(`echo %s="${%s:-}"`, probePort, recipe.EnvPort),
	}
	return strings.Join(lines, "\n"), nil
}

func parseProbe(image, out string) *Verification {
	v := &Verification{Image: image}

	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case probeAptLists:
			v.AptListsEmpty = value == aptListsEmpty
		case probeEngine:
			v.EnginePath = value
		case probeDriver:
			v.DriverPath = value
		case probePort:
			v.Port = value
		}
	}
	return v
}

func (v *Verification) check(r *recipe.Recipe) {
	if !v.AptListsEmpty {
		v.Failures = append(v.Failures, "package index cache left in "+recipe.AptListsDir)
	}
	if v.EnginePath == "" {
		v.Failures = append(v.Failures, fmt.Sprintf("browser engine %q not found on PATH", r.Browser.Engine))
	}
	if v.DriverPath == "" {
		v.Failures = append(v.Failures, fmt.Sprintf("browser driver %q not found on PATH", r.Browser.Driver))
	}
	if got, err := types.ParsePort(v.Port); err != nil || got != r.Port() {
		v.Failures = append(v.Failures, fmt.Sprintf("PORT is %q, want %s", v.Port, r.Port()))
	}
}
