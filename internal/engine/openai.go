package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/Spaarsh/oumi/internal/config"
	"github.com/Spaarsh/oumi/internal/inference"
)

// OpenAI talks to the Chat Completions API. The REMOTE engine uses the same client against
// any compatible server named by remote_params.api_url.
type OpenAI struct {
	client openai.Client
}

func newRemote(cfg *config.InferenceConfig, opts inference.Options) (inference.Engine, error) {
	if cfg.RemoteParams.APIURL == "" {
		return nil, fmt.Errorf("remote_params.api_url is required")
	}
	return newOpenAIClient(cfg, opts, apiKey(cfg)), nil
}

func newOpenAI(cfg *config.InferenceConfig, opts inference.Options) (inference.Engine, error) {
	key := apiKey(cfg, "OPENAI_API_KEY")
	if key == "" && cfg.RemoteParams.APIURL == "" {
		return nil, fmt.Errorf("no API key: set remote_params.api_key, remote_params.api_key_env or OPENAI_API_KEY")
	}
	return newOpenAIClient(cfg, opts, key), nil
}

func newOpenAIClient(cfg *config.InferenceConfig, opts inference.Options, key string) *OpenAI {
	reqOpts := []option.RequestOption{
		option.WithMaxRetries(cfg.RemoteParams.MaxRetries),
		option.WithRequestTimeout(cfg.RemoteParams.Timeout()),
	}
	if key != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(key))
	}
	if base := chatBaseURL(cfg.RemoteParams.APIURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	return &OpenAI{client: openai.NewClient(reqOpts...)}
}

// chatBaseURL accepts either an API root or a full chat completions endpoint.
func chatBaseURL(apiURL string) string {
	u := strings.TrimRight(strings.TrimSpace(apiURL), "/")
	u = strings.TrimSuffix(u, "/chat/completions")
	if u == "" {
		return ""
	}
	return u + "/"
}

func (e *OpenAI) Generate(ctx context.Context, req *inference.Request) (*inference.Result, error) {
	params := openAIParams(req)
	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return &inference.Result{
		Text: resp.Choices[0].Message.Content,
		Stats: inference.Stats{
			PromptTokens:    int(resp.Usage.PromptTokens),
			TokensGenerated: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

func (e *OpenAI) Close() error { return nil }

func openAIParams(req *inference.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	params.Temperature = openai.Float(req.Temperature)
	if req.TopP > 0 {
		params.TopP = openai.Float(req.TopP)
	}
	if req.Seed != nil {
		params.Seed = openai.Int(*req.Seed)
	}
	if len(req.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.Stop}
	}

	for _, m := range req.Messages {
		switch m.Role {
		case inference.RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case inference.RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			if len(m.Image) == 0 {
				params.Messages = append(params.Messages, openai.UserMessage(m.Content))
				continue
			}
			parts := []openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL:    dataURL(m.Image),
					Detail: "auto",
				}),
			}
			if m.Content != "" {
				parts = append(parts, openai.TextContentPart(m.Content))
			}
			params.Messages = append(params.Messages, openai.UserMessage(parts))
		}
	}
	return params
}
