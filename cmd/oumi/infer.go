package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/Spaarsh/oumi/internal/config"
	"github.com/Spaarsh/oumi/internal/inference"
	"github.com/Spaarsh/oumi/internal/logger"
	"github.com/Spaarsh/oumi/internal/recipes"
)

// ErrConfiguration reports a command line that cannot run with the resolved config.
var ErrConfiguration = errors.New("configuration error")

const (
	separator    = "------------"
	imageTimeout = 30 * time.Second
)

var buildEngine = inference.Build

func inferCmd() *cli.Command {
	var (
		configRef    string
		outputDir    string
		token        string
		interactive  bool
		imageRef     string
		systemPrompt string
	)

	return &cli.Command{
		Name:      "infer",
		Usage:     "Run inference with a model config",
		ArgsUsage: "[-- key=value ...]",
		Flags: append([]cli.Flag{
			configFlag(&configRef),
			&cli.BoolFlag{
				Name:        "interactive",
				Aliases:     []string{"i"},
				Usage:       "read prompts from the terminal instead of input_path",
				Destination: &interactive,
			},
			&cli.StringFlag{
				Name:        "image",
				Usage:       "image path or http(s) URL attached to every interactive prompt",
				Destination: &imageRef,
			},
			&cli.StringFlag{
				Name:        "system-prompt",
				Usage:       "system prompt for interactive mode",
				Destination: &systemPrompt,
			},
		}, recipeFlags(&outputDir, &token)...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			settings := loadSettings()
			applyRecipeSettings(cmd, settings, &outputDir, &token)

			cfg, err := resolveConfig(ctx, newLocator(settings, token), configRef, outputDir, cmd.Args().Slice())
			if err != nil {
				return err
			}
			if interactive && cfg.InputPath != "" {
				log.Warn("Interactive inference requested, skipping reading from `input_path`.")
			}
			if !interactive && cfg.InputPath == "" {
				return fmt.Errorf("%w: One of `--interactive` or `input_path` must be provided.", ErrConfiguration)
			}

			var image []byte
			switch {
			case imageRef != "" && !interactive:
				log.Warn("--image is only used in interactive mode, ignoring it", "image", imageRef)
			case imageRef != "":
				image, err = inference.LoadImagePNG(ctx, &http.Client{Timeout: imageTimeout}, imageRef)
				if err != nil {
					return fmt.Errorf("load image: %w", err)
				}
			}

			eng, err := buildEngine(cfg, inference.Options{Logger: log})
			if err != nil {
				return err
			}
			defer func() {
				if err := eng.Close(); err != nil {
					log.Warn("close engine", "error", err)
				}
			}()

			out := cmd.Root().Writer
			if interactive {
				return runInteractive(ctx, eng, cfg, cmd.Root().Reader, out, image, systemPrompt)
			}

			results, err := inference.RunBatch(ctx, eng, cfg, inference.BatchOptions{Workers: cfg.RemoteParams.NumWorkers})
			if err != nil {
				return err
			}
			if cfg.OutputPath != "" {
				return nil
			}
			printConversations(out, results)
			return nil
		},
	}
}

// resolveConfig fetches ref when it is an oumi:// reference, then loads and validates it.
func resolveConfig(ctx context.Context, loc *recipes.Locator, ref, outputDir string, overrides []string) (*config.InferenceConfig, error) {
	path, err := loc.Resolve(ctx, ref, outputDir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path, overrides)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runInteractive(ctx context.Context, eng inference.Engine, cfg *config.InferenceConfig, in io.Reader, out io.Writer, image []byte, systemPrompt string) error {
	reader, closeReader, err := newLineReader(in, out)
	if err != nil {
		return err
	}
	defer closeReader()

	return inference.RunInteractive(ctx, eng, cfg, inference.InteractiveOptions{
		Input:        reader,
		Output:       out,
		Image:        image,
		SystemPrompt: systemPrompt,
	})
}

func printConversations(w io.Writer, convs []inference.Conversation) {
	for _, conv := range convs {
		_, _ = fmt.Fprintln(w, separator)
		_, _ = fmt.Fprintln(w, conv.String())
	}
	_, _ = fmt.Fprintln(w, separator)
}
