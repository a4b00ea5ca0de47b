// SPDX-License-Identifier: MPL-2.0

package browser

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/browserbox/browserbox/internal/issue"
)

// ErrBrowserNotFound is returned by Report.Err when the engine or the driver is missing.
var ErrBrowserNotFound = errors.New("browser not found")

// Well-known install locations, checked before the search path.
var (
	EngineCandidates = []string{"/usr/bin/google-chrome", "/usr/bin/chromium", "/usr/bin/chromium-browser"}
	DriverCandidates = []string{"/usr/local/bin/chromedriver", "/usr/bin/chromedriver", "/usr/lib/chromium/chromedriver"}

	engineNames = []string{"google-chrome", "chromium", "chromium-browser"}
	driverNames = []string{"chromedriver"}
)

type (
	// Report is the result of a Probe.
	Report struct {
		EnginePath string
		DriverPath string
		// Searched lists every location that was tried, in order.
		Searched []string
	}

	// Option configures Probe.
	Option func(*prober)

	prober struct {
		engineNames []string
		driverNames []string
		lookPath    func(string) (string, error)
		stat        func(string) (fs.FileInfo, error)
		rodLookPath func() (string, bool)
	}
)

// WithEngineName puts name first among the engine executables searched on PATH.
func WithEngineName(name string) Option {
	return func(p *prober) {
		if name != "" {
			p.engineNames = prepend(name, p.engineNames)
		}
	}
}

// WithDriverName puts name first among the driver executables searched on PATH.
func WithDriverName(name string) Option {
	return func(p *prober) {
		if name != "" {
			p.driverNames = prepend(name, p.driverNames)
		}
	}
}

// WithLookPath replaces exec.LookPath.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(p *prober) { p.lookPath = fn }
}

// WithStat replaces os.Stat.
func WithStat(fn func(string) (fs.FileInfo, error)) Option {
	return func(p *prober) { p.stat = fn }
}

// WithRodLookPath replaces rod's browser lookup, the last engine fallback.
// Passing nil disables it.
func WithRodLookPath(fn func() (string, bool)) Option {
	return func(p *prober) { p.rodLookPath = fn }
}

// Probe locates the engine and the driver: well-known paths first, then
// the search path, then (engine only) rod's own browser lookup.
func Probe(opts ...Option) Report {
	p := &prober{
		engineNames: engineNames,
		driverNames: driverNames,
		lookPath:    exec.LookPath,
		stat:        os.Stat,
		rodLookPath: launcher.LookPath,
	}
	for _, opt := range opts {
		opt(p)
	}

	var r Report
	r.EnginePath = p.find(&r, EngineCandidates, p.engineNames)
	if r.EnginePath == "" && p.rodLookPath != nil {
		r.Searched = append(r.Searched, "rod launcher lookup")
		if path, ok := p.rodLookPath(); ok && p.executable(path) {
			r.EnginePath = path
		}
	}
	r.DriverPath = p.find(&r, DriverCandidates, p.driverNames)
	return r
}

func (p *prober) find(r *Report, candidates, names []string) string {
	for _, path := range candidates {
		r.Searched = append(r.Searched, path)
		if p.executable(path) {
			return path
		}
	}
	for _, name := range names {
		r.Searched = append(r.Searched, "$PATH/"+name)
		if path, err := p.lookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func (p *prober) executable(path string) bool {
	info, err := p.stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}

// OK reports whether both the engine and the driver were found.
func (r Report) OK() bool {
	return r.EnginePath != "" && r.DriverPath != ""
}

// Missing names what was not found.
func (r Report) Missing() []string {
	var missing []string
	if r.EnginePath == "" {
		missing = append(missing, "browser engine")
	}
	if r.DriverPath == "" {
		missing = append(missing, "browser driver")
	}
	return missing
}

// Err returns nil when the probe found everything, or an actionable error
// wrapping ErrBrowserNotFound.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	return issue.NewErrorContext().
		WithOperation("locate browser").
		WithResource(strings.Join(r.Missing(), ", ")).
		WithIssue(issue.BrowserNotFoundId).
		WithSuggestion("Install chromium and chromedriver, or add them to the recipe's system packages").
		Wrap(ErrBrowserNotFound).
		BuildError()
}

func prepend(name string, names []string) []string {
	out := []string{name}
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
