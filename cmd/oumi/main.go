package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	_ "github.com/Spaarsh/oumi/internal/engine"
	"github.com/Spaarsh/oumi/internal/logger"
	"github.com/Spaarsh/oumi/internal/version"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "oumi",
		Usage:   "Run inference on model configs and fetch oumi:// recipes",
		Version: version.String(),
		Flags:   loggingFlags(),
		Before:  setupLogger,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			inferCmd(),
			fetchCmd(),
			serveCmd(),
			versionCmd(),
		},
	}
}

// setupLogger places a logger built from the logging flags and user settings in the context.
func setupLogger(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	applyLoggingSettings(cmd, loadSettings())

	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return ctx, err
	}
	log, err := logger.New(cmd.Root().ErrWriter, logFormat, level)
	if err != nil {
		return ctx, err
	}
	return logger.WithContext(ctx, log), nil
}
