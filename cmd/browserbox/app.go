// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"

	"github.com/browserbox/browserbox/internal/browser"
	"github.com/browserbox/browserbox/internal/config"
	"github.com/browserbox/browserbox/internal/container"
	"github.com/browserbox/browserbox/internal/issue"
)

type (
	// EngineFactory returns a container engine, preferring the given kind.
	EngineFactory func(preferred config.ContainerEngine) (container.Engine, error)

	// ProbeFunc locates the browser engine and driver on this host.
	ProbeFunc func(opts ...browser.Option) browser.Report

	// SmokeFunc launches the browser engine once.
	SmokeFunc func(ctx context.Context, enginePath string) error

	// Dependencies are the services the commands use. Nil fields get the
	// production implementation.
	Dependencies struct {
		Config  config.Provider
		Engines EngineFactory
		Probe   ProbeFunc
		Smoke   SmokeFunc
	}

	// App wires the dependencies and the global flags for one CLI invocation.
	App struct {
		Config  config.Provider
		Engines EngineFactory
		Probe   ProbeFunc
		Smoke   SmokeFunc

		verbose    bool
		configPath string
		engine     string
	}
)

// NewApp creates an App, filling unset dependencies with the defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:  deps.Config,
		Engines: deps.Engines,
		Probe:   deps.Probe,
		Smoke:   deps.Smoke,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.Engines == nil {
		app.Engines = detectEngine
	}
	if app.Probe == nil {
		app.Probe = browser.Probe
	}
	if app.Smoke == nil {
		app.Smoke = browser.Smoke
	}
	return app
}

// loadConfig loads the CLI configuration and applies the global flags on top.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.configPath})
	if err != nil {
		return nil, err
	}
	if a.engine != "" {
		engine := config.ContainerEngine(a.engine)
		if err := engine.Validate(); err != nil {
			return nil, err
		}
		cfg.ContainerEngine = engine
	}
	if cfg.UI.Verbose {
		a.verbose = true
	}
	return cfg, nil
}

// containerEngine returns the engine selected by cfg.
func (a *App) containerEngine(cfg *config.Config) (container.Engine, error) {
	return a.Engines(cfg.ContainerEngine)
}

func (a *App) logger(w io.Writer, prefix string) *log.Logger {
	l := log.NewWithOptions(w, log.Options{Prefix: prefix})
	if a.verbose {
		l.SetLevel(log.DebugLevel)
	}
	return l
}

// detectEngine is the production EngineFactory.
func detectEngine(preferred config.ContainerEngine) (container.Engine, error) {
	kind, err := container.ParseEngineType(preferred.String())
	if err != nil {
		return nil, err
	}
	engine, err := container.NewEngine(kind)
	if err == nil {
		return engine, nil
	}
	if !errors.Is(err, container.ErrNoEngineAvailable) {
		return nil, err
	}
	return nil, issue.NewErrorContext().
		WithOperation("find container engine").
		WithResource(string(preferred)).
		WithIssue(issue.ContainerEngineNotFoundId).
		WithSuggestion("Install Docker or Podman and make sure its daemon or service is running").
		WithSuggestion("Select the other engine with --engine or container_engine in the config file").
		Wrap(err).
		BuildError()
}
