package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/Spaarsh/oumi/internal/logger"
	"github.com/Spaarsh/oumi/internal/recipes"
)

func fetchCmd() *cli.Command {
	var (
		outputDir string
		token     string
	)

	return &cli.Command{
		Name:      "fetch",
		Usage:     "Download an oumi:// recipe into the local config directory",
		ArgsUsage: "<oumi://path/to/recipe.yaml>",
		Flags:     recipeFlags(&outputDir, &token, "o"),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ref := cmd.Args().First()
			if ref == "" {
				return fmt.Errorf("%w: fetch needs an %s reference", ErrConfiguration, recipes.Scheme)
			}
			if !recipes.IsRemote(ref) {
				return fmt.Errorf("%w: %q does not start with %s", recipes.ErrInvalidReference, ref, recipes.Scheme)
			}
			settings := loadSettings()
			applyRecipeSettings(cmd, settings, &outputDir, &token)

			path, err := newLocator(settings, token).Resolve(ctx, ref, outputDir)
			if err != nil {
				return err
			}
			logger.FromContext(ctx).Debug("fetched recipe", "ref", ref, "path", path)
			_, err = fmt.Fprintln(cmd.Root().Writer, path)
			return err
		},
	}
}
