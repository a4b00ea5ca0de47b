// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/browserbox/browserbox/internal/builder"
	"github.com/browserbox/browserbox/internal/recipe"
	"github.com/browserbox/browserbox/pkg/types"
)

type buildOptions struct {
	recipePath string
	tag        string
	noCache    bool
	force      bool
	noVerify   bool
}

func newBuildCommand(app *App) *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build [dir]",
		Short: "Build the runtime image from an application directory",
		Long: `Build the runtime image from an application directory (default ".").

The directory must contain the application source and requirements.txt.
The image is rebuilt only when the Dockerfile, the manifest, the source
tree or the embedded launcher changed, unless --force is given. After the
build the image is probed for the browser engine, its driver and an empty
package index cache; a failed probe exits with status 2.`,
		Example: `  browserbox build
  browserbox build ./app --tag myapp:1.0
  browserbox build --no-cache --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, app, contextDir(args), opts)
		},
	}

	cmd.Flags().StringVar(&opts.recipePath, "recipe", "", "recipe file (default is <dir>/browserbox.cue, else built-in defaults)")
	cmd.Flags().StringVarP(&opts.tag, "tag", "t", "", "image tag (default from config, "+builder.DefaultTag+")")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "do not use the engine's layer cache")
	cmd.Flags().BoolVar(&opts.force, "force", false, "rebuild even when the image is up to date")
	cmd.Flags().BoolVar(&opts.noVerify, "no-verify", false, "skip the verification probe")

	return cmd
}

func runBuild(cmd *cobra.Command, app *App, dir string, opts buildOptions) error {
	ctx := cmd.Context()

	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	r, err := loadRecipe(dir, opts.recipePath)
	if err != nil {
		return err
	}
	engine, err := app.containerEngine(cfg)
	if err != nil {
		return err
	}

	tag := opts.tag
	if tag == "" {
		tag = cfg.Build.Tag
	}

	b := builder.New(engine, builder.WithLogger(app.logger(cmd.ErrOrStderr(), "builder")))
	res, err := b.Build(ctx, builder.Request{
		Recipe:     r,
		ContextDir: dir,
		Tag:        tag,
		NoCache:    opts.noCache || cfg.Build.NoCache,
		Force:      opts.force,
		Verify:     cfg.Build.Verify && !opts.noVerify,
		Output:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if res.Cached {
		fmt.Fprintf(out, "%s %s is up to date\n", SuccessStyle.Render(iconOK), CmdStyle.Render(res.Tag))
	} else {
		fmt.Fprintf(out, "%s Built %s\n", SuccessStyle.Render(iconOK), CmdStyle.Render(res.Tag))
	}
	fmt.Fprintf(out, "  digest: %s\n", SubtitleStyle.Render(res.Digest))

	if res.Verification != nil {
		return verificationResult(out, res.Verification)
	}
	return nil
}

func newDockerfileCommand(app *App) *cobra.Command {
	var recipePath string

	cmd := &cobra.Command{
		Use:   "dockerfile [dir]",
		Short: "Print the Dockerfile generated for an application directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := loadRecipe(contextDir(args), recipePath)
			if err != nil {
				return err
			}
			if err := r.Validate(); err != nil {
				return recipeError(recipePath, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), builder.Dockerfile(r))
			return nil
		},
	}
	cmd.Flags().StringVar(&recipePath, "recipe", "", "recipe file (default is <dir>/browserbox.cue, else built-in defaults)")
	return cmd
}

func newVerifyCommand(app *App) *cobra.Command {
	var recipePath string

	cmd := &cobra.Command{
		Use:   "verify <image>",
		Short: "Probe an image for the browser engine, driver and runtime settings",
		Long: `Run an image once with a probe that checks that the package index cache
is empty, that the browser engine and driver resolve on the search path and
that PORT carries the recipe's value. Exits with status 2 when a check fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := app.loadConfig(ctx)
			if err != nil {
				return err
			}
			r, err := loadRecipe(".", recipePath)
			if err != nil {
				return err
			}
			engine, err := app.containerEngine(cfg)
			if err != nil {
				return err
			}

			b := builder.New(engine, builder.WithLogger(app.logger(cmd.ErrOrStderr(), "verify")))
			v, err := b.Verify(ctx, args[0], r)
			if err != nil {
				return err
			}
			return verificationResult(cmd.OutOrStdout(), v)
		},
	}
	cmd.Flags().StringVar(&recipePath, "recipe", "", "recipe the image was built from (default is ./browserbox.cue, else built-in defaults)")
	return cmd
}

// verificationResult prints v and turns a failed verification into exit status 2.
func verificationResult(w io.Writer, v *builder.Verification) error {
	check := func(ok bool, label, value string) {
		icon := SuccessStyle.Render(iconOK)
		if !ok {
			icon = ErrorStyle.Render(iconFail)
		}
		if value != "" {
			label += ": " + CmdStyle.Render(value)
		}
		fmt.Fprintf(w, "%s %s\n", icon, label)
	}

	fmt.Fprintln(w, TitleStyle.Render("Verification of "+v.Image))
	check(v.AptListsEmpty, "package index cache removed", "")
	check(v.EnginePath != "", "browser engine", v.EnginePath)
	check(v.DriverPath != "", "browser driver", v.DriverPath)
	check(v.Port != "", "PORT", v.Port)

	if v.OK() {
		return nil
	}
	return &ExitError{Code: types.ExitCheckFailed, Err: v.Err()}
}

func contextDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

// loadRecipe resolves the recipe for dir; see recipe.Resolve.
func loadRecipe(dir, explicitPath string) (*recipe.Recipe, error) {
	r, _, err := recipe.Resolve(dir, explicitPath)
	if err != nil {
		return nil, recipeError(explicitPath, err)
	}
	return r, nil
}
