// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	"slices"

	"github.com/browserbox/browserbox/pkg/types"
)

const (
	// FileName is the recipe file looked up in a build context.
	FileName = "browserbox.cue"

	// DefaultBaseImage is the slim Python runtime the image starts from.
	DefaultBaseImage = "python:3.11-slim"
	// DefaultWorkdir is where the application source lives in the image.
	DefaultWorkdir = "/app"
	// DefaultManifest is the Python dependency manifest.
	DefaultManifest = "requirements.txt"
	// DefaultLaunchCommand serves app:app on all interfaces at ${PORT}.
	DefaultLaunchCommand = "gunicorn --bind 0.0.0.0:${PORT} app:app"
	// DefaultEngine is the browser engine executable name.
	DefaultEngine = "chromium"
	// DefaultDriver is the browser driver executable name.
	DefaultDriver = "chromedriver"

	// EnvPort names the variable carrying the listen port.
	EnvPort = "PORT"
	// EnvDontWriteBytecode disables .pyc generation.
	EnvDontWriteBytecode = "PYTHONDONTWRITEBYTECODE"
	// EnvUnbuffered disables stdout/stderr buffering in the interpreter.
	EnvUnbuffered = "PYTHONUNBUFFERED"

	// LauncherPath is where an embedded browserbox binary is installed.
	LauncherPath = "/usr/local/bin/browserbox"
)

type (
	// Recipe is the complete description of the runtime image.
	Recipe struct {
		BaseImage      string   `json:"base_image"`
		SystemPackages []string `json:"system_packages"`
		Workdir        string   `json:"workdir"`
		Manifest       string   `json:"manifest"`
		Install        []string `json:"install"`
		Env            []EnvVar `json:"env"`
		Launch         Launch   `json:"launch"`
		Browser        Browser  `json:"browser"`
	}

	// EnvVar is one runtime environment entry. Order is preserved.
	EnvVar struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}

	// Launch configures the container start command.
	Launch struct {
		Command       string `json:"command"`
		EmbedLauncher bool   `json:"embed_launcher"`
	}

	// Browser names the executables the image must provide on PATH.
	Browser struct {
		Engine string `json:"engine"`
		Driver string `json:"driver"`
	}
)

// DefaultSystemPackages returns the browser engine, its driver and the
// shared libraries a headless engine needs on a slim Debian base.
func DefaultSystemPackages() []string {
	return []string{
		"chromium",
		"chromium-driver",
		"fonts-liberation",
		"libnss3",
		"libgbm1",
		"libasound2",
		"libatk-bridge2.0-0",
		"libgtk-3-0",
		"libxss1",
		"libx11-xcb1",
	}
}

// DefaultInstall is the install command for a pip manifest.
func DefaultInstall(manifest string) []string {
	return []string{"pip", "install", "--no-cache-dir", "-r", manifest}
}

// Default returns the recipe used when no browserbox.cue is present.
// It must stay in sync with the defaults in recipe_schema.cue.
func Default() *Recipe {
	return &Recipe{
		BaseImage:      DefaultBaseImage,
		SystemPackages: DefaultSystemPackages(),
		Workdir:        DefaultWorkdir,
		Manifest:       DefaultManifest,
		Install:        DefaultInstall(DefaultManifest),
		Env: []EnvVar{
			{Name: EnvDontWriteBytecode, Value: "1"},
			{Name: EnvUnbuffered, Value: "1"},
			{Name: EnvPort, Value: types.DefaultPort.String()},
		},
		Launch: Launch{
			Command: DefaultLaunchCommand,
		},
		Browser: Browser{
			Engine: DefaultEngine,
			Driver: DefaultDriver,
		},
	}
}

// Clone returns a deep copy.
func (r *Recipe) Clone() *Recipe {
	c := *r
	c.SystemPackages = slices.Clone(r.SystemPackages)
	c.Install = slices.Clone(r.Install)
	c.Env = slices.Clone(r.Env)
	return &c
}

// LookupEnv returns the value of the named environment entry.
func (r *Recipe) LookupEnv(name string) (string, bool) {
	for _, e := range r.Env {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

// SetEnv replaces the value of an existing entry or appends a new one.
func (r *Recipe) SetEnv(name, value string) {
	for i := range r.Env {
		if r.Env[i].Name == name {
			r.Env[i].Value = value
			return
		}
	}
	r.Env = append(r.Env, EnvVar{Name: name, Value: value})
}

// Port returns the image's default listen port. Call Validate first; an
// unparseable PORT yields types.DefaultPort.
func (r *Recipe) Port() types.Port {
	raw, ok := r.LookupEnv(EnvPort)
	if !ok {
		return types.DefaultPort
	}
	p, err := types.ParsePort(raw)
	if err != nil {
		return types.DefaultPort
	}
	return p
}

// Environ renders the environment as KEY=value pairs in recipe order.
func (r *Recipe) Environ() []string {
	out := make([]string, 0, len(r.Env))
	for _, e := range r.Env {
		out = append(out, e.Name+"="+e.Value)
	}
	return out
}
