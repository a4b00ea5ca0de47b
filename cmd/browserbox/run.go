// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/browserbox/browserbox/internal/config"
	"github.com/browserbox/browserbox/internal/container"
	"github.com/browserbox/browserbox/pkg/types"
)

type runOptions struct {
	port    int
	name    string
	env     []string
	publish []string
}

func newRunCommand(app *App) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <image>",
		Short: "Run the image locally the way the hosting platform would",
		Long: `Run the image in the foreground with its port published on the host.

With --port the container gets PORT=<port> and publishes <port>:<port>,
like a platform that assigns the port. Without it the image default
(10000) is published. --publish adds further mappings, for example a
debugging port. The exit status is the container's.`,
		Example: `  browserbox run browserbox-app:latest
  browserbox run myapp:1.0 --port 8080 -e LOG_LEVEL=debug
  browserbox run myapp:1.0 --publish 9222:9222`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImage(cmd, app, args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "port assigned to the server (sets PORT)")
	cmd.Flags().StringVar(&opts.name, "name", "", "container name")
	cmd.Flags().StringArrayVarP(&opts.env, "env", "e", nil, "extra environment variable KEY=VALUE (repeatable)")
	cmd.Flags().StringArrayVar(&opts.publish, "publish", nil, "extra port mapping host:container[/protocol] (repeatable)")

	return cmd
}

// runOptionsFor maps the command flags to the engine's run options.
func runOptionsFor(image string, opts runOptions) (container.RunOptions, error) {
	env := make(map[string]string, len(opts.env)+1)
	for _, kv := range opts.env {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return container.RunOptions{}, fmt.Errorf("invalid --env %q: want KEY=VALUE", kv)
		}
		env[key] = value
	}

	port := types.DefaultPort
	if raw, ok := env[config.EnvPort]; ok && opts.port == 0 {
		p, err := types.ParsePort(raw)
		if err != nil {
			return container.RunOptions{}, fmt.Errorf("invalid --env %s=%s: %w", config.EnvPort, raw, err)
		}
		port = p
	}
	if opts.port != 0 {
		port = types.Port(opts.port)
		if err := port.Validate(); err != nil {
			return container.RunOptions{}, err
		}
		env[config.EnvPort] = port.String()
	}

	ports := []container.PortMapping{{HostPort: port, ContainerPort: port, Protocol: container.PortProtocolTCP}}
	for _, p := range opts.publish {
		mapping, err := container.ParsePortMapping(p)
		if err != nil {
			return container.RunOptions{}, fmt.Errorf("invalid --publish %q: %w", p, err)
		}
		ports = append(ports, mapping)
	}

	return container.RunOptions{
		Image:  image,
		Env:    env,
		Ports:  ports,
		Remove: true,
		Name:   opts.name,
		Init:   true,
	}, nil
}

func runImage(cmd *cobra.Command, app *App, image string, opts runOptions) error {
	ctx := cmd.Context()

	runOpts, err := runOptionsFor(image, opts)
	if err != nil {
		return err
	}
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	engine, err := app.containerEngine(cfg)
	if err != nil {
		return err
	}

	runOpts.Stdout = cmd.OutOrStdout()
	runOpts.Stderr = cmd.ErrOrStderr()

	app.logger(cmd.ErrOrStderr(), "run").Info("Starting container",
		"image", image, "engine", engine.Name(), "url", fmt.Sprintf("http://localhost:%d", runOpts.Ports[0].HostPort))

	res, err := engine.Run(ctx, runOpts)
	if err != nil {
		return err
	}
	if res.Error != nil {
		return res.Error
	}
	if !res.ExitCode.IsSuccess() {
		return &ExitError{Code: res.ExitCode}
	}
	return nil
}
