package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/xxxsen/ragbase/internal/model"
	appErr "github.com/xxxsen/ragbase/internal/pkg/errors"
)

const (
	ProviderMemory = "memory"

	defaultMemoryNamespace = "default"
	memoryCollection       = "documents"
)

var errNoEmbeddingFunc = errors.New("memory store only accepts precomputed embeddings")

type memoryConfig struct {
	Namespace string `json:"namespace"`
}

type memoryDocument struct {
	chunks    int64
	createdAt time.Time
}

// memoryNamespace holds the data of one namespace for the lifetime of the
// process, so a store rebuilt for the same namespace sees the same chunks.
type memoryNamespace struct {
	mu        sync.RWMutex
	dimension int
	coll      *chromem.Collection
	nextID    int64
	docs      map[string]*memoryDocument
}

var (
	namespacesMu sync.Mutex
	namespaces   = map[string]*memoryNamespace{}
)

func attachNamespace(name string) *memoryNamespace {
	namespacesMu.Lock()
	defer namespacesMu.Unlock()
	ns, ok := namespaces[name]
	if !ok {
		ns = &memoryNamespace{docs: map[string]*memoryDocument{}}
		namespaces[name] = ns
	}
	return ns
}

type memoryStore struct {
	namespace string
	opts      Options
	ns        *memoryNamespace
}

func (s *memoryStore) Provider() string {
	return ProviderMemory
}

// collection must be called with ns.mu held for writing.
func (s *memoryStore) collection() (*chromem.Collection, error) {
	if s.ns.coll != nil {
		if s.ns.dimension != s.opts.Dimension {
			return nil, appErr.Storage(fmt.Errorf("memory namespace %q holds %d-dimensional vectors, want %d",
				s.namespace, s.ns.dimension, s.opts.Dimension))
		}
		return s.ns.coll, nil
	}
	embed := func(context.Context, string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	}
	coll, err := chromem.NewDB().GetOrCreateCollection(memoryCollection, nil, embed)
	if err != nil {
		return nil, appErr.Storage(fmt.Errorf("memory bootstrap: %w", err))
	}
	s.ns.coll = coll
	s.ns.dimension = s.opts.Dimension
	return coll, nil
}

func (s *memoryStore) Insert(ctx context.Context, title, content string, chunkIndex int, embedding []float32) (int64, error) {
	if err := checkVector(embedding, s.opts.Dimension); err != nil {
		return 0, err
	}
	s.ns.mu.Lock()
	defer s.ns.mu.Unlock()
	coll, err := s.collection()
	if err != nil {
		return 0, err
	}
	now := time.Now()
	id := s.ns.nextID + 1
	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	doc := chromem.Document{
		ID:      strconv.FormatInt(id, 10),
		Content: content,
		Metadata: map[string]string{
			"title":       title,
			"chunk_index": strconv.Itoa(chunkIndex),
		},
		Embedding: vec,
	}
	if err := coll.AddDocument(ctx, doc); err != nil {
		return 0, appErr.Storage(fmt.Errorf("memory insert: %w", err))
	}
	s.ns.nextID = id
	entry, ok := s.ns.docs[title]
	if !ok {
		entry = &memoryDocument{createdAt: now}
		s.ns.docs[title] = entry
	}
	entry.chunks++
	return id, nil
}

func (s *memoryStore) Search(ctx context.Context, embedding []float32, limit int) ([]model.SearchResult, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	if err := checkVector(embedding, s.opts.Dimension); err != nil {
		return nil, err
	}
	s.ns.mu.RLock()
	defer s.ns.mu.RUnlock()
	if s.ns.coll == nil {
		return []model.SearchResult{}, nil
	}
	n := limit
	if total := s.ns.coll.Count(); total < n {
		n = total
	}
	if n == 0 {
		return []model.SearchResult{}, nil
	}
	found, err := s.ns.coll.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, appErr.Storage(fmt.Errorf("memory search: %w", err))
	}
	results := make([]model.SearchResult, 0, len(found))
	for _, r := range found {
		id, _ := strconv.ParseInt(r.ID, 10, 64)
		idx, _ := strconv.Atoi(r.Metadata["chunk_index"])
		results = append(results, model.SearchResult{
			ID:         id,
			Title:      r.Metadata["title"],
			Content:    r.Content,
			ChunkIndex: idx,
			Similarity: model.ClampSimilarity(float64(r.Similarity)),
		})
	}
	return results, nil
}

func (s *memoryStore) ListDocuments(_ context.Context) ([]model.DocumentSummary, error) {
	s.ns.mu.RLock()
	defer s.ns.mu.RUnlock()
	docs := make([]model.DocumentSummary, 0, len(s.ns.docs))
	for title, entry := range s.ns.docs {
		docs = append(docs, model.DocumentSummary{Title: title, Chunks: entry.chunks, CreatedAt: entry.createdAt})
	}
	sortSummaries(docs)
	return docs, nil
}

func (s *memoryStore) DeleteDocument(ctx context.Context, title string) (int64, error) {
	s.ns.mu.Lock()
	defer s.ns.mu.Unlock()
	entry, ok := s.ns.docs[title]
	if !ok || s.ns.coll == nil {
		return 0, nil
	}
	if err := s.ns.coll.Delete(ctx, map[string]string{"title": title}, nil); err != nil {
		return 0, appErr.Storage(fmt.Errorf("memory delete: %w", err))
	}
	delete(s.ns.docs, title)
	return entry.chunks, nil
}

func (s *memoryStore) Count(_ context.Context) (int64, error) {
	s.ns.mu.RLock()
	defer s.ns.mu.RUnlock()
	if s.ns.coll == nil {
		return 0, nil
	}
	return int64(s.ns.coll.Count()), nil
}

func (s *memoryStore) TestConnection(_ context.Context) error {
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}

func sortSummaries(docs []model.DocumentSummary) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].Title < docs[j].Title
	})
}

func createMemoryFactory(args interface{}, opts Options) (Store, error) {
	cfg := &memoryConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(cfg.Namespace)
	if name == "" {
		name = defaultMemoryNamespace
	}
	return &memoryStore{namespace: name, opts: opts, ns: attachNamespace(name)}, nil
}

func init() {
	Register(ProviderMemory, createMemoryFactory)
}
