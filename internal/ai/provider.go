package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	appErr "github.com/xxxsen/ragbase/internal/pkg/errors"
)

type IProvider interface {
	Name() string
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

type IEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

type EmbedderOption func(*embedder)

// WithDimension rejects vectors whose length differs from dim.
func WithDimension(dim int) EmbedderOption {
	return func(e *embedder) {
		e.dimension = dim
	}
}

func WithTimeout(timeout time.Duration) EmbedderOption {
	return func(e *embedder) {
		e.timeout = timeout
	}
}

type embedder struct {
	provider  IProvider
	model     string
	dimension int
	timeout   time.Duration
}

func NewEmbedder(p IProvider, model string, opts ...EmbedderOption) IEmbedder {
	e := &embedder{provider: p, model: model}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	values, err := e.provider.Embed(ctx, e.model, text)
	if err != nil {
		return nil, appErr.Embedding(fmt.Errorf("%s/%s: %w", e.provider.Name(), e.model, err))
	}
	if len(values) == 0 {
		return nil, appErr.Embedding(fmt.Errorf("%s/%s: empty embedding", e.provider.Name(), e.model))
	}
	if e.dimension > 0 && len(values) != e.dimension {
		return nil, appErr.Embedding(fmt.Errorf("%s/%s: got %d dimensions, want %d", e.provider.Name(), e.model, len(values), e.dimension))
	}
	return values, nil
}

func (e *embedder) ModelName() string {
	return e.model
}

type ProviderFactory func(args interface{}) (IProvider, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]ProviderFactory{}
)

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func NewProvider(name string, args interface{}) (IProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, appErr.Configuration("embedding.provider is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, appErr.Configuration("unsupported embedding provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return appErr.Configuration("encode embedding provider config: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return appErr.Configuration("decode embedding provider config: %v", err)
	}
	return nil
}
