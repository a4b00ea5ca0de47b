// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand creates the browserbox command tree bound to app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "browserbox",
		Short: "Build and launch runtime images for headless-browser web apps",
		Long: TitleStyle.Render("browserbox") + SubtitleStyle.Render(" - runtime images for headless-browser web apps") + `

browserbox turns a Python web application that drives a browser engine
into a container image: slim interpreter base, browser engine and driver,
pinned dependencies from requirements.txt, and a start command that binds
the platform-assigned PORT (default 10000).

` + SubtitleStyle.Render("Examples:") + `
  browserbox build .                 Build browserbox-app:latest from the current directory
  browserbox dockerfile .            Print the generated Dockerfile
  browserbox run myapp:1.0 --port 8080
  browserbox doctor --launch         Check the browser on this host
  browserbox serve                   Start the server (inside the image)`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/browserbox/config.cue)")
	root.PersistentFlags().StringVar(&app.engine, "engine", "", "container engine to use (docker or podman)")

	root.AddCommand(
		newBuildCommand(app),
		newDockerfileCommand(app),
		newVerifyCommand(app),
		newRunCommand(app),
		newServeCommand(app),
		newDoctorCommand(app),
		newRecipeCommand(app),
		newConfigCommand(app),
		newVersionCommand(),
	)
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version != "dev" {
		return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev (built from source)"
}

// Main runs the CLI and returns the process exit code.
func Main() int {
	app := NewApp(Dependencies{})
	err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	)
	if err != nil {
		reportError(os.Stderr, err, app.verbose)
	}
	return exitCodeFor(err)
}

// Execute runs the CLI and exits. It is called by main.main().
func Execute() {
	os.Exit(Main())
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the browserbox version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "browserbox "+getVersionString())
			return nil
		},
	}
}
