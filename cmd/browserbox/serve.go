// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/browserbox/browserbox/internal/config"
	"github.com/browserbox/browserbox/internal/issue"
	"github.com/browserbox/browserbox/internal/launcher"
)

// stopGrace is added to the shutdown timeout before Stop gives up waiting.
const stopGrace = 5 * time.Second

type serveOptions struct {
	command         string
	recipePath      string
	shutdownTimeout time.Duration
}

func newServeCommand(app *App) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the production server (the image's start command)",
		Long: `Start the production server and supervise it until it exits.

The listen port comes from PORT (default 10000); the server is bound to
0.0.0.0. If the port is already in use, serve fails without starting the
server. The launch command is expanded against the environment, so
${PORT} in it resolves to the effective port. Server output is forwarded
line by line. SIGINT or SIGTERM stop the server gracefully. The exit
status is the server's.`,
		Example: `  browserbox serve
  PORT=8080 browserbox serve --command 'gunicorn --bind 0.0.0.0:${PORT} app:app'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, app, opts)
		},
	}

	cmd.Flags().StringVar(&opts.command, "command", "", "launch command (default from the recipe)")
	cmd.Flags().StringVar(&opts.recipePath, "recipe", "", "recipe providing the launch command (default is ./browserbox.cue, else built-in defaults)")
	cmd.Flags().DurationVar(&opts.shutdownTimeout, "shutdown-timeout", launcher.DefaultShutdownTimeout, "time the server gets to exit after SIGTERM before it is killed")

	return cmd
}

func runServe(cmd *cobra.Command, app *App, opts serveOptions) error {
	ctx := cmd.Context()

	command := opts.command
	if command == "" {
		r, err := loadRecipe(".", opts.recipePath)
		if err != nil {
			return err
		}
		command = r.Launch.Command
	}

	rt, err := config.LoadRuntime()
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("read runtime configuration").
			WithResource(config.EnvPort).
			WithIssue(issue.InvalidPortId).
			WithSuggestion("Set PORT to a number between 1 and 65535, or unset it to use the default").
			Wrap(err).
			BuildError()
	}

	logger := app.logger(cmd.ErrOrStderr(), "launcher")
	l := launcher.New(launcher.Config{
		Runtime:         rt,
		Command:         command,
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
		ShutdownTimeout: opts.shutdownTimeout,
		Logger:          logger,
	})
	if err := l.Start(ctx); err != nil {
		return err
	}

	go func() {
		if err := l.WaitListening(ctx); err == nil {
			logger.Info("Server accepting connections", "addr", l.Addr())
		}
	}()

	waitCh := make(chan error, 1)
	go func() { waitCh <- l.Wait() }()

	select {
	case err = <-waitCh:
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), l.ShutdownTimeout()+stopGrace)
		defer cancel()
		if stopErr := l.Stop(stopCtx); stopErr != nil {
			return stopErr
		}
		err = <-waitCh
	}

	var exitErr *launcher.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.Code, Err: err}
	}
	return err
}
