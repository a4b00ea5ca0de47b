// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/browserbox/browserbox/internal/issue"
	"github.com/browserbox/browserbox/internal/recipe"
)

// ErrRecipeExists is returned by recipe init when the file is already present.
var ErrRecipeExists = errors.New("recipe file already exists")

func newRecipeCommand(app *App) *cobra.Command {
	recipeCmd := &cobra.Command{
		Use:   "recipe",
		Short: "Manage the image recipe",
		Long: `Manage the image recipe.

The recipe (` + recipe.FileName + ` in the application directory) describes the
base image, system packages, dependency install, environment and start
command of the runtime image. Without a recipe the built-in defaults apply.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write the default recipe to " + recipe.FileName,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(contextDir(args), recipe.FileName)
			if _, err := os.Stat(path); err == nil && !force {
				return issue.NewErrorContext().
					WithOperation("create recipe").
					WithResource(path).
					WithSuggestion("Use --force to overwrite it").
					Wrap(ErrRecipeExists).
					BuildError()
			}
			if err := os.WriteFile(path, []byte(recipe.GenerateCUE(recipe.Default())), 0o644); err != nil {
				return fmt.Errorf("failed to write recipe: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created %s\n", SuccessStyle.Render(iconOK), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing recipe")

	var recipePath string
	showCmd := &cobra.Command{
		Use:   "show [dir]",
		Short: "Print the effective recipe as CUE",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, source, err := recipe.Resolve(contextDir(args), recipePath)
			if err != nil {
				return recipeError(recipePath, err)
			}
			if source == "" {
				source = "built-in defaults"
			}
			app.logger(cmd.ErrOrStderr(), "recipe").Debug("Recipe resolved", "source", source)
			fmt.Fprint(cmd.OutOrStdout(), recipe.GenerateCUE(r))
			return nil
		},
	}
	showCmd.Flags().StringVar(&recipePath, "recipe", "", "recipe file (default is <dir>/"+recipe.FileName+", else built-in defaults)")

	recipeCmd.AddCommand(initCmd, showCmd)
	return recipeCmd
}

// recipeError wraps a recipe load or validation failure for display.
func recipeError(path string, err error) error {
	if path == "" {
		path = recipe.FileName
	}
	return issue.NewErrorContext().
		WithOperation("load recipe").
		WithResource(path).
		WithIssue(issue.RecipeInvalidId).
		WithSuggestion("Run 'browserbox recipe show' to inspect the effective recipe").
		Wrap(err).
		BuildError()
}
