// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// StepKind identifies one build step. The numeric order is the build order.
type StepKind int

const (
	StepBase StepKind = iota
	StepSystemPackages
	StepWorkdir
	StepManifest
	StepInstall
	StepSource
	StepEnv
	StepLaunch
)

var stepNames = [...]string{
	StepBase:           "base",
	StepSystemPackages: "system-packages",
	StepWorkdir:        "workdir",
	StepManifest:       "manifest",
	StepInstall:        "install",
	StepSource:         "source",
	StepEnv:            "env",
	StepLaunch:         "launch",
}

func (k StepKind) String() string {
	if k < 0 || int(k) >= len(stepNames) {
		return fmt.Sprintf("step(%d)", int(k))
	}
	return stepNames[k]
}

// AptListsDir is the package index cache removed in the same layer that
// installs system packages.
const AptListsDir = "/var/lib/apt/lists"

var safeWord = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

type (
	// Step is one build step and the Dockerfile instructions implementing it.
	// A step may have no instructions (an empty package set).
	Step struct {
		Kind         StepKind
		Instructions []string
	}

	// Layout describes where the build inputs sit inside the build context.
	Layout struct {
		// SourceDir is the application source directory relative to the
		// context root. Empty means the context root itself.
		SourceDir string
		// LauncherBinary is the context path of the browserbox binary copied
		// when Launch.EmbedLauncher is set. Empty means "browserbox".
		LauncherBinary string
	}
)

// Steps returns the eight build steps for a context laid out as the
// application directory itself.
func (r *Recipe) Steps() []Step {
	return r.StepsFor(Layout{})
}

// StepsFor returns the eight build steps, in build order, for the given
// context layout.
func (r *Recipe) StepsFor(layout Layout) []Step {
	src := func(p string) string {
		if layout.SourceDir == "" {
			return p
		}
		return path.Join(layout.SourceDir, p)
	}

	return []Step{
		{Kind: StepBase, Instructions: []string{"FROM " + r.BaseImage}},
		{Kind: StepSystemPackages, Instructions: r.systemPackagesInstructions()},
		{Kind: StepWorkdir, Instructions: []string{"WORKDIR " + r.Workdir}},
		{Kind: StepManifest, Instructions: []string{fmt.Sprintf("COPY %s ./%s", src(r.Manifest), r.Manifest)}},
		{Kind: StepInstall, Instructions: []string{"RUN " + shellJoin(r.Install)}},
		{Kind: StepSource, Instructions: []string{"COPY " + sourceRoot(layout.SourceDir) + " ."}},
		{Kind: StepEnv, Instructions: r.envInstructions()},
		{Kind: StepLaunch, Instructions: r.launchInstructions(layout)},
	}
}

func sourceRoot(dir string) string {
	if dir == "" {
		return "."
	}
	return strings.TrimSuffix(dir, "/") + "/"
}

func (r *Recipe) systemPackagesInstructions() []string {
	if len(r.SystemPackages) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("RUN apt-get update \\\n")
	sb.WriteString("    && apt-get install -y --no-install-recommends \\\n")
	for _, pkg := range r.SystemPackages {
		fmt.Fprintf(&sb, "        %s \\\n", pkg)
	}
	fmt.Fprintf(&sb, "    && rm -rf %s/*", AptListsDir)
	return []string{sb.String()}
}

func (r *Recipe) envInstructions() []string {
	if len(r.Env) == 0 {
		return nil
	}
	pairs := make([]string, len(r.Env))
	for i, e := range r.Env {
		pairs[i] = e.Name + "=" + envValue(e.Value)
	}
	return []string{"ENV " + strings.Join(pairs, " \\\n    ")}
}

func (r *Recipe) launchInstructions(layout Layout) []string {
	if !r.Launch.EmbedLauncher {
		// exec keeps the server as PID 1 so it receives the stop signal.
		return []string{"CMD " + execForm("/bin/sh", "-c", "exec "+r.Launch.Command)}
	}
	bin := layout.LauncherBinary
	if bin == "" {
		bin = "browserbox"
	}
	return []string{
		fmt.Sprintf("COPY %s %s", bin, LauncherPath),
		"CMD " + execForm(LauncherPath, "serve", "--command", r.Launch.Command),
	}
}

// Dockerfile renders the steps for a context laid out as the application
// directory itself.
func (r *Recipe) Dockerfile() string {
	return r.DockerfileFor(Layout{})
}

// DockerfileFor renders the steps for the given context layout.
func (r *Recipe) DockerfileFor(layout Layout) string {
	var sb strings.Builder
	sb.WriteString("# Generated by browserbox. Do not edit.\n")
	for _, step := range r.StepsFor(layout) {
		if len(step.Instructions) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n# %s\n", step.Kind)
		for _, in := range step.Instructions {
			sb.WriteString(in)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// shellJoin renders argv as a shell command line, quoting only words that
// need it.
func shellJoin(argv []string) string {
	words := make([]string, len(argv))
	for i, arg := range argv {
		words[i] = quoteWord(arg)
	}
	return strings.Join(words, " ")
}

func quoteWord(s string) string {
	if safeWord.MatchString(s) {
		return s
	}
	q, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		// Only strings with NUL bytes cannot be quoted; JSON quoting keeps
		// the Dockerfile parseable and the build reports the bad word.
		return fmt.Sprintf("%q", s)
	}
	return q
}

// envValue renders an ENV value that Docker reads back verbatim. Inside
// double quotes Docker substitutes $VAR and unescapes \, so both are escaped
// along with the quote itself.
func envValue(s string) string {
	if s != "" && safeWord.MatchString(s) {
		return s
	}
	return `"` + envEscaper.Replace(s) + `"`
}

var envEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`)

// execForm renders the JSON array form of CMD.
func execForm(argv ...string) string {
	return jsonText(argv)
}

func jsonText(v any) string {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v) //nolint:errcheck // strings and []string always encode
	return strings.TrimSuffix(sb.String(), "\n")
}
