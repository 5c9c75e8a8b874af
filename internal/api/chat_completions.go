package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/Spaarsh/oumi/internal/config"
	"github.com/Spaarsh/oumi/internal/inference"
)

// ChatCompletionRequest represents an OpenAI-compatible chat completion request.
type ChatCompletionRequest struct {
	Model               string        `json:"model"`
	Messages            []ChatMessage `json:"messages"`
	Temperature         *float64      `json:"temperature,omitempty"`
	TopP                *float64      `json:"top_p,omitempty"`
	Stream              *bool         `json:"stream,omitempty"`
	Stop                any           `json:"stop,omitempty"`
	MaxTokens           *int          `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int          `json:"max_completion_tokens,omitempty"`
	Seed                *int64        `json:"seed,omitempty"`
	User                string        `json:"user,omitempty"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
	Name    string `json:"name,omitempty"`
}

// ChatCompletionResponse is the response for non-streaming chat completions.
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   ChatUsage    `json:"usage"`
}

type ChatChoice struct {
	Index        int          `json:"index"`
	Message      *ChatMessage `json:"message,omitempty"`
	Delta        *ChatMessage `json:"delta,omitempty"`
	FinishReason *string      `json:"finish_reason"`
}

type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionChunk is a streaming SSE chunk.
type ChatCompletionChunk struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
}

func (s *Server) RegisterChatCompletions(e *echo.Echo) {
	e.POST("/v1/chat/completions", s.handleChatCompletions)
	e.GET("/v1/models", s.handleListModels)
}

func (s *Server) handleListModels(c *echo.Context) error {
	data := []map[string]any{{
		"id":       s.provider.ModelID(),
		"object":   "model",
		"created":  s.clock().Unix(),
		"owned_by": "oumi",
	}}
	return c.JSON(http.StatusOK, map[string]any{
		"object": "list",
		"data":   data,
	})
}

func (s *Server) handleChatCompletions(c *echo.Context) error {
	ctx := c.Request().Context()
	req, err := decodeJSON[ChatCompletionRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if len(req.Messages) == 0 {
		return writeBadRequest(c, "messages is required and must not be empty")
	}
	msgs, err := s.chatMessagesToInference(ctx, req.Messages)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	stop, err := parseStop(req.Stop)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	model := req.Model
	if model == "" {
		model = s.provider.ModelID()
	}
	completionID := "chatcmpl-" + uuid.NewString()
	created := s.clock().Unix()

	var result *inference.Result
	err = s.provider.WithEngine(ctx, func(engine inference.Engine, cfg *config.InferenceConfig) error {
		inferReq := chatToInferenceRequest(&req, msgs, stop, cfg)
		res, err := inference.Generate(ctx, engine, &inferReq)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		s.log.Error("chat completion failed", "id", completionID, "error", err)
		return writeServerError(c, err)
	}

	if req.Stream != nil && *req.Stream {
		return s.writeStream(c, completionID, created, model, result.Text)
	}

	finishReason := "stop"
	return c.JSON(http.StatusOK, ChatCompletionResponse{
		ID:      completionID,
		Object:  "chat.completion",
		Created: created,
		Model:   model,
		Choices: []ChatChoice{{
			Index:        0,
			Message:      &ChatMessage{Role: string(inference.RoleAssistant), Content: result.Text},
			FinishReason: &finishReason,
		}},
		Usage: ChatUsage{
			PromptTokens:     result.Stats.PromptTokens,
			CompletionTokens: result.Stats.TokensGenerated,
			TotalTokens:      result.Stats.PromptTokens + result.Stats.TokensGenerated,
		},
	})
}

// writeStream sends a completed reply as a role chunk, one content chunk and a final chunk.
func (s *Server) writeStream(c *echo.Context, id string, created int64, model, text string) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	chunk := func(delta *ChatMessage, finish *string) ChatCompletionChunk {
		return ChatCompletionChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []ChatChoice{{Index: 0, Delta: delta, FinishReason: finish}},
		}
	}
	finishReason := "stop"
	for _, ch := range []ChatCompletionChunk{
		chunk(&ChatMessage{Role: string(inference.RoleAssistant)}, nil),
		chunk(&ChatMessage{Content: text}, nil),
		chunk(&ChatMessage{}, &finishReason),
	} {
		if err := sendSSEChunk(res, ch); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(res, "data: [DONE]\n\n")
	if f, ok := res.(http.Flusher); ok {
		f.Flush()
	}
	return err
}

func sendSSEChunk(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}

func (s *Server) chatMessagesToInference(ctx context.Context, msgs []ChatMessage) ([]inference.Message, error) {
	out := make([]inference.Message, 0, len(msgs))
	for i, m := range msgs {
		role := inference.Role(m.Role)
		if role == "developer" {
			role = inference.RoleSystem
		}
		if !role.Valid() {
			return nil, fmt.Errorf("messages[%d]: unsupported role %q", i, m.Role)
		}
		msg := inference.Message{Role: role}

		switch content := m.Content.(type) {
		case string:
			msg.Content = content
		case nil:
		case []any:
			var texts []string
			for j, raw := range content {
				part, ok := raw.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("messages[%d].content[%d]: expected an object", i, j)
				}
				typ, _ := asString(part["type"])
				switch typ {
				case "text":
					if text, ok := asString(part["text"]); ok {
						texts = append(texts, text)
					}
				case "image_url":
					img, err := s.imageFromPart(ctx, part)
					if err != nil {
						return nil, fmt.Errorf("messages[%d].content[%d]: %w", i, j, err)
					}
					msg.Image = img
				default:
					return nil, fmt.Errorf("messages[%d].content[%d]: unsupported content type %q", i, j, typ)
				}
			}
			msg.Content = strings.Join(texts, "\n")
		default:
			return nil, fmt.Errorf("messages[%d]: unsupported content", i)
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *Server) imageFromPart(ctx context.Context, part map[string]any) ([]byte, error) {
	var u string
	switch v := part["image_url"].(type) {
	case string:
		u = v
	case map[string]any:
		u, _ = asString(v["url"])
	}
	if u == "" {
		return nil, fmt.Errorf("image_url.url is required")
	}
	if inference.IsURL(u) {
		return inference.LoadImagePNG(ctx, s.imageClient, u)
	}
	data, err := decodeDataURL(u)
	if err != nil {
		return nil, err
	}
	return inference.ToPNG(data)
}

func parseStop(v any) ([]string, error) {
	switch stop := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{stop}, nil
	case []any:
		out := make([]string, 0, len(stop))
		for _, s := range stop {
			str, ok := asString(s)
			if !ok {
				return nil, fmt.Errorf("stop must be a string or an array of strings")
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("stop must be a string or an array of strings")
	}
}

func chatToInferenceRequest(req *ChatCompletionRequest, msgs []inference.Message, stop []string, cfg *config.InferenceConfig) inference.Request {
	opts := inference.RequestOptions{
		Model:       req.Model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Seed:        req.Seed,
		Stop:        stop,
	}
	if req.MaxCompletionTokens != nil {
		opts.MaxTokens = req.MaxCompletionTokens
	}
	return inference.ResolveRequest(opts, cfg)
}
