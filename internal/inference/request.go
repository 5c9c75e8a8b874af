package inference

import (
	"strings"

	"github.com/Spaarsh/oumi/internal/config"
)

// RequestOptions overrides individual generation parameters. Nil fields fall back to the
// config defaults.
type RequestOptions struct {
	Model    string
	Messages []Message

	MaxTokens   *int
	Temperature *float64
	TopP        *float64
	Seed        *int64
	Stop        []string
}

func ResolveRequest(opts RequestOptions, cfg *config.InferenceConfig) Request {
	gen := cfg.Generation
	req := Request{
		Model:       cfg.Model.ModelName,
		Messages:    opts.Messages,
		MaxTokens:   gen.MaxNewTokens,
		Temperature: gen.Temperature,
		TopP:        gen.TopP,
		Seed:        gen.Seed,
		Stop:        gen.StopStrings,
	}

	if m := strings.TrimSpace(opts.Model); m != "" {
		req.Model = m
	}
	if opts.MaxTokens != nil && *opts.MaxTokens > 0 {
		req.MaxTokens = *opts.MaxTokens
	}
	if opts.Temperature != nil && *opts.Temperature >= 0 {
		req.Temperature = *opts.Temperature
	}
	if opts.TopP != nil && *opts.TopP > 0 && *opts.TopP <= 1 {
		req.TopP = *opts.TopP
	}
	if opts.Seed != nil {
		req.Seed = opts.Seed
	}
	if len(opts.Stop) > 0 {
		req.Stop = opts.Stop
	}
	return req
}

// TrimAtStop cuts text at the earliest occurrence of any stop string.
func TrimAtStop(text string, stops []string) string {
	cut := len(text)
	for _, s := range stops {
		if s == "" {
			continue
		}
		if i := strings.Index(text, s); i >= 0 && i < cut {
			cut = i
		}
	}
	return text[:cut]
}
