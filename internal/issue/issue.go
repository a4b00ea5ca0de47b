// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	ContainerEngineNotFoundId Id = iota + 1
	RecipeInvalidId
	SourceTreeMissingId
	ManifestMissingId
	ImageBuildFailedId
	VerificationFailedId
	InvalidPortId
	PortUnavailableId
	ServerExitedId
	BrowserNotFoundId
	ConfigLoadFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue markdown with the given glamour style
// ("dark", "light", "notty", "auto" or a JSON style path).
func (i *Issue) Render(stylePath string) (string, error) {
	var sb strings.Builder
	sb.WriteString(string(i.mdMsg))
	if len(i.extLinks) > 0 {
		sb.WriteString("\n\n## See also\n")
		for _, link := range i.extLinks {
			sb.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(sb.String(), stylePath)
}

var (
	render = glamour.Render

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# No container engine available!

Building and verifying images needs Docker or Podman on this machine.

## Things you can try:
- Install Docker or Podman and make sure the binary is on your PATH
- Start the Docker daemon:
~~~
$ sudo systemctl start docker
~~~
- Pick the engine explicitly:
~~~
$ browserbox build --engine podman
~~~`,
		extLinks: []HttpLink{
			"https://docs.docker.com/engine/install/",
			"https://podman.io/docs/installation",
		},
	}

	recipeInvalidIssue = &Issue{
		id: RecipeInvalidId,
		mdMsg: `
# Invalid recipe!

The browserbox.cue file does not match the recipe schema.

## Common issues:
- base_image without a tag or digest (use "python:3.11-slim", not "python")
- The same package listed twice in system_packages
- PORT missing from env, or not a number between 1 and 65535
- Unknown field names

## Things you can try:
- Print the effective recipe:
~~~
$ browserbox recipe show
~~~
- Start over from the defaults:
~~~
$ browserbox recipe init --force
~~~`,
	}

	sourceTreeMissingIssue = &Issue{
		id: SourceTreeMissingId,
		mdMsg: `
# Application source tree not found!

The build context must be a directory containing the application.

## Things you can try:
- Run the build from the application directory, or pass it as an argument:
~~~
$ browserbox build ./myapp
~~~`,
	}

	manifestMissingIssue = &Issue{
		id: ManifestMissingId,
		mdMsg: `
# Dependency manifest not found!

Dependencies are installed from the manifest at the build context root
(requirements.txt unless the recipe says otherwise).

## Things you can try:
- Generate it from your environment:
~~~
$ pip freeze > requirements.txt
~~~
- Point the recipe at the right file with the manifest field`,
	}

	imageBuildFailedIssue = &Issue{
		id: ImageBuildFailedId,
		mdMsg: `
# Image build failed!

A build step failed and no image was tagged. Steps run in order: base image,
system packages, working directory, manifest, dependency install, source,
environment, launch command. Nothing is retried.

## Things you can try:
- Read the build output for the failing step
- Check that every system package exists for the base image distribution
- Check that every dependency in the manifest resolves
- Rebuild without cache:
~~~
$ browserbox build --no-cache
~~~`,
	}

	verificationFailedIssue = &Issue{
		id: VerificationFailedId,
		mdMsg: `
# Image verification failed!

The built image is missing something the application needs at runtime.

## What is checked:
- The package index cache (/var/lib/apt/lists) is empty
- The browser engine and its driver are on the executable search path

## Things you can try:
- Add the missing package to system_packages
- Set browser.engine and browser.driver to the executable names your packages install`,
	}

	invalidPortIssue = &Issue{
		id: InvalidPortId,
		mdMsg: `
# Invalid PORT!

PORT must be a whole number between 1 and 65535. When PORT is unset the
server listens on 10000.

## Things you can try:
- Unset PORT to use the default
- Check the value your platform injects`,
	}

	portUnavailableIssue = &Issue{
		id: PortUnavailableId,
		mdMsg: `
# Port already in use!

The server could not bind 0.0.0.0 on the requested port. browserbox does not
pick another port, because the platform routes traffic to this one.

## Things you can try:
- Stop the process holding the port:
~~~
$ ss -ltnp
~~~
- Set PORT to a free port`,
	}

	serverExitedIssue = &Issue{
		id: ServerExitedId,
		mdMsg: `
# The server exited!

The production server stopped with a non-zero exit code. Its own output above
shows why. browserbox exits with the same code and does not restart it.

## Things you can try:
- Check that the module and object in the launch command exist (app:app)
- Check that the WSGI server is installed by the dependency manifest`,
	}

	browserNotFoundIssue = &Issue{
		id: BrowserNotFoundId,
		mdMsg: `
# Browser engine or driver not found!

Neither the well-known install paths nor the executable search path contain
the browser engine and its driver.

## Things you can try:
- Install them:
~~~
$ apt-get install chromium chromium-driver
~~~
- Check the result:
~~~
$ browserbox doctor --launch
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

## Things you can try:
- Check the file for CUE syntax errors
- Compare it with the defaults:
~~~
$ browserbox config show
~~~
- Find where the file lives:
~~~
$ browserbox config path
~~~`,
	}

	issues = map[Id]*Issue{
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		recipeInvalidIssue.Id():           recipeInvalidIssue,
		sourceTreeMissingIssue.Id():       sourceTreeMissingIssue,
		manifestMissingIssue.Id():         manifestMissingIssue,
		imageBuildFailedIssue.Id():        imageBuildFailedIssue,
		verificationFailedIssue.Id():      verificationFailedIssue,
		invalidPortIssue.Id():             invalidPortIssue,
		portUnavailableIssue.Id():         portUnavailableIssue,
		serverExitedIssue.Id():            serverExitedIssue,
		browserNotFoundIssue.Id():         browserNotFoundIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
	}
)

// Values returns every catalog issue ordered by Id.
func Values() []*Issue {
	ids := slices.Sorted(maps.Keys(issues))
	out := make([]*Issue, len(ids))
	for i, id := range ids {
		out[i] = issues[id]
	}
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
