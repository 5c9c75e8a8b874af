package inference

import (
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/Spaarsh/oumi/internal/config"
	"github.com/Spaarsh/oumi/internal/logger"
)

// Options carries collaborators shared by every engine builder.
type Options struct {
	// HTTPClient is used for provider calls when set.
	HTTPClient *http.Client
	Logger     logger.Logger
}

// Builder constructs an engine for a validated config.
type Builder func(cfg *config.InferenceConfig, opts Options) (Engine, error)

var (
	registryMu sync.RWMutex
	registry   = map[config.EngineType]Builder{}
)

// Register makes a builder available under an engine type. Registering the same type twice panics.
func Register(typ config.EngineType, b Builder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if b == nil {
		panic("inference: nil builder for " + string(typ))
	}
	if _, dup := registry[typ]; dup {
		panic("inference: duplicate builder for " + string(typ))
	}
	registry[typ] = b
}

// Registered lists the engine types that have a builder.
func Registered() []config.EngineType {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]config.EngineType, 0, len(registry))
	for typ := range registry {
		out = append(out, typ)
	}
	slices.Sort(out)
	return out
}

// Build constructs the engine named by cfg.Engine. Nothing is built until this is called.
func Build(cfg *config.InferenceConfig, opts Options) (Engine, error) {
	registryMu.RLock()
	b, ok := registry[cfg.Engine]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no inference engine registered for %q", cfg.Engine)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	eng, err := b(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("build %s engine: %w", cfg.Engine, err)
	}
	return eng, nil
}
