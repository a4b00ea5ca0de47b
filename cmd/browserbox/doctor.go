// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/browserbox/browserbox/internal/browser"
	"github.com/browserbox/browserbox/internal/issue"
	"github.com/browserbox/browserbox/pkg/types"
)

const smokeTimeout = time.Minute

type doctorOptions struct {
	launch     bool
	recipePath string
}

func newDoctorCommand(app *App) *cobra.Command {
	var opts doctorOptions

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the browser engine and driver are usable on this host",
		Long: `Locate the browser engine and its driver the way a server in the image
finds them. With --launch the engine is also started headless once.
Exits with status 2 when something is missing or the launch fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, app, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.launch, "launch", false, "launch the engine headless once")
	cmd.Flags().StringVar(&opts.recipePath, "recipe", "", "recipe naming the engine and driver (default is ./browserbox.cue, else built-in defaults)")

	return cmd
}

func runDoctor(cmd *cobra.Command, app *App, opts doctorOptions) error {
	r, err := loadRecipe(".", opts.recipePath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	report := app.Probe(
		browser.WithEngineName(r.Browser.Engine),
		browser.WithDriverName(r.Browser.Driver),
	)
	app.logger(cmd.ErrOrStderr(), "doctor").Debug("Probe finished", "searched", report.Searched)

	line := func(label, path string) {
		if path == "" {
			fmt.Fprintf(out, "%s %s: %s\n", ErrorStyle.Render(iconFail), label, SubtitleStyle.Render("not found"))
			return
		}
		fmt.Fprintf(out, "%s %s: %s\n", SuccessStyle.Render(iconOK), label, CmdStyle.Render(path))
	}
	fmt.Fprintln(out, TitleStyle.Render("Browser"))
	line("engine", report.EnginePath)
	line("driver", report.DriverPath)

	if !report.OK() {
		return &ExitError{Code: types.ExitCheckFailed, Err: report.Err()}
	}
	if !opts.launch {
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), smokeTimeout)
	defer cancel()
	if err := app.Smoke(ctx, report.EnginePath); err != nil {
		fmt.Fprintf(out, "%s headless launch\n", ErrorStyle.Render(iconFail))
		return &ExitError{Code: types.ExitCheckFailed, Err: issue.NewErrorContext().
			WithOperation("launch browser").
			WithResource(report.EnginePath).
			WithSuggestion("Run the engine by hand with --headless=new --no-sandbox to see its output").
			Wrap(err).
			BuildError()}
	}
	fmt.Fprintf(out, "%s headless launch\n", SuccessStyle.Render(iconOK))
	return nil
}
