package engine

import (
	"context"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	"github.com/Spaarsh/oumi/internal/config"
	"github.com/Spaarsh/oumi/internal/inference"
)

type Gemini struct {
	client *genai.Client
}

func newGemini(cfg *config.InferenceConfig, opts inference.Options) (inference.Engine, error) {
	key := apiKey(cfg, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("no API key: set remote_params.api_key, remote_params.api_key_env or GEMINI_API_KEY")
	}
	timeout := cfg.RemoteParams.Timeout()
	cc := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: strings.TrimSpace(cfg.RemoteParams.APIURL),
			Timeout: &timeout,
		},
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{client: client}, nil
}

func (e *Gemini) Generate(ctx context.Context, req *inference.Request) (*inference.Result, error) {
	contents, gc := geminiRequest(req)
	resp, err := e.client.Models.GenerateContent(ctx, req.Model, contents, gc)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return nil, ErrEmptyResponse
	}
	res := &inference.Result{Text: text}
	if u := resp.UsageMetadata; u != nil {
		res.Stats.PromptTokens = int(u.PromptTokenCount)
		res.Stats.TokensGenerated = int(u.CandidatesTokenCount)
	}
	return res, nil
}

func (e *Gemini) Close() error { return nil }

func geminiRequest(req *inference.Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	system, turns := splitSystem(req.Messages)

	gc := &genai.GenerateContentConfig{}
	temp := float32(req.Temperature)
	gc.Temperature = &temp
	if req.TopP > 0 {
		p := float32(req.TopP)
		gc.TopP = &p
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(min(req.MaxTokens, math.MaxInt32))
	}
	if req.Seed != nil {
		// Gemini seeds are int32; out of range values are clamped.
		s := int32(max(min(*req.Seed, math.MaxInt32), math.MinInt32))
		gc.Seed = &s
	}
	if len(req.Stop) > 0 {
		gc.StopSequences = req.Stop
	}
	if system != "" {
		gc.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		if m.Role == inference.RoleAssistant {
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
			continue
		}
		var parts []*genai.Part
		if len(m.Image) > 0 {
			parts = append(parts, genai.NewPartFromBytes(m.Image, "image/png"))
		}
		if m.Content != "" || len(parts) == 0 {
			parts = append(parts, genai.NewPartFromText(m.Content))
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
	}
	return contents, gc
}
