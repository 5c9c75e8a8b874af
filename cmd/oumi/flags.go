package main

import "github.com/urfave/cli/v3"

var (
	logLevel  string
	logFormat string
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Aliases:     []string{"level", "log"},
			Usage:       "log level (debug, info, warning, error, critical)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
	}
}

// recipeFlags are shared by the commands that resolve oumi:// references.
func recipeFlags(outputDir, token *string, outputAliases ...string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "output-dir",
			Aliases:     outputAliases,
			Usage:       "directory oumi:// recipes are saved under (default $OUMI_DIR or ~/.oumi/configs)",
			Destination: outputDir,
		},
		&cli.StringFlag{
			Name:        "token",
			Usage:       "bearer token sent when downloading recipes",
			Sources:     cli.EnvVars("OUMI_RECIPES_TOKEN"),
			Destination: token,
		},
	}
}

func configFlag(ref *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "path or oumi:// URI of the inference config",
		Required:    true,
		Destination: ref,
	}
}
