package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/Spaarsh/oumi/internal/config"
	"github.com/Spaarsh/oumi/internal/inference"
)

type Ollama struct {
	client *api.Client
}

// newOllama connects to remote_params.api_url, or to OLLAMA_HOST when no URL is configured.
func newOllama(cfg *config.InferenceConfig, opts inference.Options) (inference.Engine, error) {
	raw := strings.TrimSpace(cfg.RemoteParams.APIURL)
	if raw == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama client: %w", err)
		}
		return &Ollama{client: client}, nil
	}

	base, err := url.Parse(strings.TrimSuffix(strings.TrimRight(raw, "/"), "/api/chat"))
	if err != nil {
		return nil, fmt.Errorf("remote_params.api_url: %w", err)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.RemoteParams.Timeout()}
	}
	return &Ollama{client: api.NewClient(base, hc)}, nil
}

func (e *Ollama) Generate(ctx context.Context, req *inference.Request) (*inference.Result, error) {
	var (
		b   strings.Builder
		res inference.Result
	)
	err := e.client.Chat(ctx, ollamaRequest(req), func(resp api.ChatResponse) error {
		b.WriteString(resp.Message.Content)
		if resp.Done {
			res.Stats.PromptTokens = resp.PromptEvalCount
			res.Stats.TokensGenerated = resp.EvalCount
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	if b.Len() == 0 {
		return nil, ErrEmptyResponse
	}
	res.Text = b.String()
	return &res, nil
}

func (e *Ollama) Close() error { return nil }

func ollamaRequest(req *inference.Request) *api.ChatRequest {
	stream := false
	out := &api.ChatRequest{
		Model:    req.Model,
		Messages: make([]api.Message, 0, len(req.Messages)),
		Stream:   &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
		},
	}
	if req.MaxTokens > 0 {
		out.Options["num_predict"] = req.MaxTokens
	}
	if req.TopP > 0 {
		out.Options["top_p"] = req.TopP
	}
	if req.Seed != nil {
		out.Options["seed"] = *req.Seed
	}
	if len(req.Stop) > 0 {
		out.Options["stop"] = req.Stop
	}

	for _, m := range req.Messages {
		msg := api.Message{Role: string(m.Role), Content: m.Content}
		if len(m.Image) > 0 {
			msg.Images = []api.ImageData{api.ImageData(m.Image)}
		}
		out.Messages = append(out.Messages, msg)
	}
	return out
}
