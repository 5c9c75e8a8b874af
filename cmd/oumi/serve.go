package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/Spaarsh/oumi/internal/api"
	"github.com/Spaarsh/oumi/internal/inference"
	"github.com/Spaarsh/oumi/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		configRef   string
		outputDir   string
		token       string
		addr        string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:      "serve",
		Usage:     "Serve a model config over an OpenAI-compatible chat completions API",
		ArgsUsage: "[-- key=value ...]",
		Flags: append([]cli.Flag{
			configFlag(&configRef),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		}, recipeFlags(&outputDir, &token)...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			settings := loadSettings()
			applyRecipeSettings(cmd, settings, &outputDir, &token)
			applyServeSettings(cmd, settings, &addr)

			cfg, err := resolveConfig(ctx, newLocator(settings, token), configRef, outputDir, cmd.Args().Slice())
			if err != nil {
				return err
			}

			provider := api.NewLazyEngineProvider(cfg, inference.Options{Logger: log}, api.BuildFunc(buildEngine))
			defer func() {
				if err := provider.Close(); err != nil {
					log.Warn("close engine", "error", err)
				}
			}()
			server := api.NewServer(provider, api.WithLogger(log))

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			log.Info("starting server", "address", addr, "model", cfg.Model.ModelName, "engine", string(cfg.Engine))
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
