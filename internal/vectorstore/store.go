package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/ragbase/internal/model"
	appErr "github.com/xxxsen/ragbase/internal/pkg/errors"
)

const (
	DefaultDimension = 768
	DefaultTimeout   = 15 * time.Second
)

// Store persists chunk embeddings and answers nearest-neighbour queries.
// Implementations bootstrap their schema lazily on first use.
type Store interface {
	Provider() string
	Insert(ctx context.Context, title, content string, chunkIndex int, embedding []float32) (int64, error)
	Search(ctx context.Context, embedding []float32, limit int) ([]model.SearchResult, error)
	ListDocuments(ctx context.Context) ([]model.DocumentSummary, error)
	DeleteDocument(ctx context.Context, title string) (int64, error)
	Count(ctx context.Context) (int64, error)
	TestConnection(ctx context.Context) error
	Close() error
}

// IndexMaintainer is implemented by backends whose ANN index is built
// separately from the schema and may need to be retried.
type IndexMaintainer interface {
	EnsureIndex(ctx context.Context) error
}

type Options struct {
	Dimension int
	Timeout   time.Duration
}

func (o Options) normalize() Options {
	if o.Dimension <= 0 {
		o.Dimension = DefaultDimension
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

type Factory func(args interface{}, opts Options) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := normalizeName(name)
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

// New builds a backend without contacting it.
func New(provider string, args interface{}, opts Options) (Store, error) {
	key := normalizeName(provider)
	if key == "" {
		return nil, appErr.Configuration("vector store provider is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, appErr.Configuration("unsupported vector store provider: %s", provider)
	}
	return factory(args, opts.normalize())
}

func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return appErr.Configuration("encode vector store config: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return appErr.Configuration("decode vector store config: %v", err)
	}
	return nil
}

func checkVector(embedding []float32, dimension int) error {
	if len(embedding) != dimension {
		return appErr.Storage(fmt.Errorf("vector dimension mismatch: got %d, want %d", len(embedding), dimension))
	}
	return nil
}

func checkLimit(limit int) error {
	if limit <= 0 {
		return appErr.Invalid("search limit must be positive, got %d", limit)
	}
	return nil
}
