package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Spaarsh/oumi/internal/config"
	"github.com/Spaarsh/oumi/internal/logger"
)

var (
	// ErrNoInput is returned by RunBatch when the config has no input_path.
	ErrNoInput = errors.New("input_path is not set")
	// ErrNoResult is returned when an engine reports neither a result nor an error.
	ErrNoResult = errors.New("engine returned no result")
)

type BatchOptions struct {
	// Workers bounds the number of concurrent engine calls. Values below 1 mean 1.
	Workers int
}

// Generate runs one request and fills in the timing stats.
func Generate(ctx context.Context, eng Engine, req *Request) (*Result, error) {
	start := time.Now()
	res, err := eng.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrNoResult
	}
	res.Text = TrimAtStop(res.Text, req.Stop)
	res.Stats.Duration = time.Since(start)
	if res.Stats.Duration.Seconds() > 0 {
		res.Stats.TPS = float64(res.Stats.TokensGenerated) / res.Stats.Duration.Seconds()
	}
	return res, nil
}

// Infer generates a reply for every conversation. Output order matches input order. The first
// failure cancels the remaining requests.
func Infer(ctx context.Context, eng Engine, cfg *config.InferenceConfig, convs []Conversation, workers int) ([]Conversation, error) {
	out := make([]Conversation, len(convs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for i, conv := range convs {
		g.Go(func() error {
			req := ResolveRequest(RequestOptions{Messages: conv.Messages}, cfg)
			res, err := Generate(gctx, eng, &req)
			if err != nil {
				if conv.ConversationID != "" {
					return fmt.Errorf("conversation %s: %w", conv.ConversationID, err)
				}
				return fmt.Errorf("conversation %d: %w", i, err)
			}
			out[i] = conv.WithReply(res.Text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RunBatch reads cfg.InputPath, generates replies and writes them to cfg.OutputPath when set.
func RunBatch(ctx context.Context, eng Engine, cfg *config.InferenceConfig, opts BatchOptions) ([]Conversation, error) {
	log := logger.FromContext(ctx)
	if cfg.InputPath == "" {
		return nil, ErrNoInput
	}

	convs, err := LoadConversations(cfg.InputPath)
	if err != nil {
		return nil, err
	}
	log.Info("running batch inference",
		"input", cfg.InputPath,
		"conversations", len(convs),
		"workers", max(opts.Workers, 1),
		"engine", string(cfg.Engine),
	)

	start := time.Now()
	results, err := Infer(ctx, eng, cfg, convs, opts.Workers)
	if err != nil {
		return nil, err
	}
	log.Info("batch inference complete", "conversations", len(results), "elapsed", time.Since(start).Round(time.Millisecond))

	if cfg.OutputPath != "" {
		if err := SaveConversations(cfg.OutputPath, results); err != nil {
			return nil, err
		}
		log.Info("wrote results", "output", cfg.OutputPath)
	}
	return results, nil
}
