package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Spaarsh/oumi/internal/config"
	"github.com/Spaarsh/oumi/internal/inference"
)

type Anthropic struct {
	client anthropic.Client
}

func newAnthropic(cfg *config.InferenceConfig, opts inference.Options) (inference.Engine, error) {
	key := apiKey(cfg, "ANTHROPIC_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("no API key: set remote_params.api_key, remote_params.api_key_env or ANTHROPIC_API_KEY")
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(cfg.RemoteParams.MaxRetries),
		option.WithRequestTimeout(cfg.RemoteParams.Timeout()),
	}
	if u := strings.TrimSpace(cfg.RemoteParams.APIURL); u != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(u))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	return &Anthropic{client: anthropic.NewClient(reqOpts...)}, nil
}

func (e *Anthropic) Generate(ctx context.Context, req *inference.Request) (*inference.Result, error) {
	msg, err := e.client.Messages.New(ctx, anthropicParams(req))
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return nil, ErrEmptyResponse
	}
	return &inference.Result{
		Text: b.String(),
		Stats: inference.Stats{
			PromptTokens:    int(msg.Usage.InputTokens),
			TokensGenerated: int(msg.Usage.OutputTokens),
		},
	}, nil
}

func (e *Anthropic) Close() error { return nil }

func anthropicParams(req *inference.Request) anthropic.MessageNewParams {
	system, turns := splitSystem(req.Messages)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages:    make([]anthropic.MessageParam, 0, len(turns)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	// top_p is sent only when it narrows sampling.
	if req.TopP > 0 && req.TopP < 1 {
		params.TopP = anthropic.Float(req.TopP)
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}

	for _, m := range turns {
		if m.Role == inference.RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		var blocks []anthropic.ContentBlockParamUnion
		if len(m.Image) > 0 {
			blocks = append(blocks, anthropic.NewImageBlockBase64("image/png", base64.StdEncoding.EncodeToString(m.Image)))
		}
		if m.Content != "" || len(blocks) == 0 {
			blocks = append(blocks, anthropic.NewTextBlock(m.Content))
		}
		params.Messages = append(params.Messages, anthropic.NewUserMessage(blocks...))
	}
	return params
}
