package api

import (
	"context"
	"sync"

	"github.com/Spaarsh/oumi/internal/config"
	"github.com/Spaarsh/oumi/internal/inference"
)

type EngineProvider interface {
	WithEngine(ctx context.Context, fn func(engine inference.Engine, cfg *config.InferenceConfig) error) error
	ModelID() string
	Close() error
}

// BuildFunc constructs the engine for a config. inference.Build satisfies it.
type BuildFunc func(cfg *config.InferenceConfig, opts inference.Options) (inference.Engine, error)

// LazyEngineProvider builds its engine on the first request and reuses it afterwards.
// A failed build is retried on the next request.
type LazyEngineProvider struct {
	cfg   *config.InferenceConfig
	opts  inference.Options
	build BuildFunc

	mu     sync.Mutex
	engine inference.Engine
}

func NewLazyEngineProvider(cfg *config.InferenceConfig, opts inference.Options, build BuildFunc) *LazyEngineProvider {
	if build == nil {
		build = inference.Build
	}
	return &LazyEngineProvider{cfg: cfg, opts: opts, build: build}
}

func (p *LazyEngineProvider) WithEngine(ctx context.Context, fn func(engine inference.Engine, cfg *config.InferenceConfig) error) error {
	eng, err := p.get()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(eng, p.cfg)
}

func (p *LazyEngineProvider) get() (inference.Engine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.engine != nil {
		return p.engine, nil
	}
	eng, err := p.build(p.cfg, p.opts)
	if err != nil {
		return nil, err
	}
	p.engine = eng
	return eng, nil
}

func (p *LazyEngineProvider) ModelID() string {
	return p.cfg.Model.ModelName
}

func (p *LazyEngineProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.engine == nil {
		return nil
	}
	err := p.engine.Close()
	p.engine = nil
	return err
}
