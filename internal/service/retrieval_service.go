package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragbase/internal/ai"
	"github.com/xxxsen/ragbase/internal/extract"
	"github.com/xxxsen/ragbase/internal/filestore"
	"github.com/xxxsen/ragbase/internal/metrics"
	"github.com/xxxsen/ragbase/internal/model"
	appErr "github.com/xxxsen/ragbase/internal/pkg/errors"
	"github.com/xxxsen/ragbase/internal/vectorstore"
)

const (
	PolicyReplace = "replace"
	PolicyAppend  = "append"

	DefaultQueryLimit = 3
	MaxQueryLimit     = 50

	maxImportSize = 10 << 20
)

// Store is a vector store whose backend can be switched at runtime.
type Store interface {
	vectorstore.Store
	Configure(ctx context.Context, provider string, args interface{}) error
	ActiveProvider() string
}

type Option func(*RetrievalService)

// WithPolicy selects what happens to the chunks of a title that is ingested
// again: replace drops them once every new chunk is embedded, append keeps
// them.
func WithPolicy(policy string) Option {
	return func(s *RetrievalService) {
		s.policy = policy
	}
}

// WithEmbedConcurrency embeds up to n chunks of a document at once.
func WithEmbedConcurrency(n int) Option {
	return func(s *RetrievalService) {
		s.concurrency = n
	}
}

func WithFileStore(files filestore.Store) Option {
	return func(s *RetrievalService) {
		s.files = files
	}
}

type RetrievalService struct {
	chunker     *ai.Chunker
	embedder    ai.IEmbedder
	store       Store
	files       filestore.Store
	policy      string
	concurrency int
	pool        *ants.Pool
	metrics     *metrics.Metrics
}

func NewRetrievalService(chunker *ai.Chunker, embedder ai.IEmbedder, store Store, opts ...Option) (*RetrievalService, error) {
	s := &RetrievalService{
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		policy:      PolicyReplace,
		concurrency: 1,
		metrics:     metrics.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}
	switch s.policy {
	case PolicyReplace, PolicyAppend:
	default:
		return nil, appErr.Configuration("unknown ingest policy: %s", s.policy)
	}
	if s.concurrency > 1 {
		pool, err := ants.NewPool(s.concurrency)
		if err != nil {
			return nil, appErr.Configuration("create embed pool: %v", err)
		}
		s.pool = pool
	}
	return s, nil
}

func (s *RetrievalService) Close() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// IngestError reports an ingestion that stopped part way. Chunks stored
// before the failure are kept.
type IngestError struct {
	Title  string
	Stored int
	Total  int
	Err    error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %q stopped after storing %d of %d chunks: %v", e.Title, e.Stored, e.Total, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

func (s *RetrievalService) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, appErr.Invalid("text is required")
	}
	return s.embed(ctx, text)
}

func (s *RetrievalService) embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := s.embedder.Embed(ctx, text)
	s.metrics.ObserveEmbed(start, err)
	return vec, err
}

func (s *RetrievalService) Ingest(ctx context.Context, title, content string) (*model.IngestResult, error) {
	res, err := s.ingest(ctx, title, content)
	if err != nil {
		s.metrics.ObserveIngestFailure(err)
	}
	return res, err
}

func (s *RetrievalService) ingest(ctx context.Context, title, content string) (*model.IngestResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, appErr.Invalid("title is required")
	}
	chunks := s.chunker.Split(content)
	if len(chunks) == 0 {
		return nil, appErr.ErrEmptyDocument
	}
	logger := logutil.GetLogger(ctx).With(zap.String("title", title), zap.Int("chunks", len(chunks)))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	next := s.embedChunks(ctx, chunks)

	provider := s.store.ActiveProvider()
	if s.policy == PolicyReplace {
		vecs := make([][]float32, len(chunks))
		for i := range chunks {
			vec, err := next(i)
			if err != nil {
				logger.Error("embed chunk failed, previous chunks kept", zap.Int("chunk_index", i), zap.Error(err))
				return nil, &IngestError{Title: title, Total: len(chunks), Err: err}
			}
			vecs[i] = vec
		}
		next = func(i int) ([]float32, error) {
			return vecs[i], nil
		}
		removed, err := s.store.DeleteDocument(ctx, title)
		s.metrics.ObserveStore(provider, "delete", err)
		if err != nil {
			logger.Error("remove previous chunks failed", zap.Error(err))
			return nil, &IngestError{Title: title, Total: len(chunks), Err: err}
		}
		if removed > 0 {
			logger.Info("replaced previous chunks", zap.Int64("removed", removed))
		}
	}
	result := &model.IngestResult{Title: title, IDs: make([]int64, 0, len(chunks))}
	for i, chunk := range chunks {
		vec, err := next(i)
		if err != nil {
			logger.Error("embed chunk failed", zap.Int("chunk_index", i), zap.Error(err))
			return nil, &IngestError{Title: title, Stored: len(result.IDs), Total: len(chunks), Err: err}
		}
		id, err := s.store.Insert(ctx, title, chunk, i, vec)
		s.metrics.ObserveStore(provider, "insert", err)
		if err != nil {
			logger.Error("store chunk failed", zap.Int("chunk_index", i), zap.Error(err))
			return nil, &IngestError{Title: title, Stored: len(result.IDs), Total: len(chunks), Err: err}
		}
		logger.Debug("chunk stored", zap.Int("chunk_index", i), zap.Int64("id", id))
		result.IDs = append(result.IDs, id)
		s.metrics.IngestedChunks.Inc()
	}
	result.ChunkCount = len(result.IDs)
	logger.Info("document ingested", zap.String("provider", provider))
	return result, nil
}

type embedResult struct {
	vec []float32
	err error
}

// embedChunks returns an accessor for the embedding of chunk i. Accessors
// must be called in index order. With a pool the embeddings are computed
// ahead of the caller.
func (s *RetrievalService) embedChunks(ctx context.Context, chunks []string) func(i int) ([]float32, error) {
	if s.pool == nil {
		return func(i int) ([]float32, error) {
			return s.embed(ctx, chunks[i])
		}
	}
	results := make([]chan embedResult, len(chunks))
	for i := range results {
		results[i] = make(chan embedResult, 1)
	}
	go func() {
		for i, chunk := range chunks {
			i, chunk := i, chunk
			if err := s.pool.Submit(func() {
				if err := ctx.Err(); err != nil {
					results[i] <- embedResult{err: appErr.Embedding(err)}
					return
				}
				vec, err := s.embed(ctx, chunk)
				results[i] <- embedResult{vec: vec, err: err}
			}); err != nil {
				results[i] <- embedResult{err: appErr.Embedding(fmt.Errorf("submit embed task: %w", err))}
			}
		}
	}()
	return func(i int) ([]float32, error) {
		r := <-results[i]
		return r.vec, r.err
	}
}

func (s *RetrievalService) Query(ctx context.Context, text string, limit int) ([]model.SearchResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, appErr.Invalid("query is required")
	}
	if limit <= 0 || limit > MaxQueryLimit {
		return nil, appErr.Invalid("limit must be between 1 and %d, got %d", MaxQueryLimit, limit)
	}
	start := time.Now()
	defer func() {
		s.metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()
	vec, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	results, err := s.store.Search(ctx, vec, limit)
	s.metrics.ObserveStore(s.store.ActiveProvider(), "search", err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *RetrievalService) ListDocuments(ctx context.Context) ([]model.DocumentSummary, error) {
	docs, err := s.store.ListDocuments(ctx)
	s.metrics.ObserveStore(s.store.ActiveProvider(), "list", err)
	return docs, err
}

// DeleteDocument removes every chunk of title and returns how many were
// removed. A title with no chunks yields ErrNotFound.
func (s *RetrievalService) DeleteDocument(ctx context.Context, title string) (int64, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, appErr.Invalid("title is required")
	}
	n, err := s.store.DeleteDocument(ctx, title)
	s.metrics.ObserveStore(s.store.ActiveProvider(), "delete", err)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("document %q: %w", title, appErr.ErrNotFound)
	}
	logutil.GetLogger(ctx).Info("document deleted", zap.String("title", title), zap.Int64("chunks", n))
	return n, nil
}

func (s *RetrievalService) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

type HealthReport struct {
	Status    string `json:"status"`
	Documents int64  `json:"documents"`
	Provider  string `json:"provider"`
	Error     string `json:"error,omitempty"`
}

func (s *RetrievalService) Health(ctx context.Context) *HealthReport {
	report := &HealthReport{Status: "healthy", Provider: s.store.ActiveProvider()}
	err := s.store.TestConnection(ctx)
	if err == nil {
		report.Documents, err = s.store.Count(ctx)
	}
	if err != nil {
		logutil.GetLogger(ctx).Warn("health check failed", zap.String("provider", report.Provider), zap.Error(err))
		report.Status = "error"
		report.Documents = 0
		report.Error = err.Error()
	}
	return report
}

func (s *RetrievalService) ActiveProvider() string {
	return s.store.ActiveProvider()
}

func (s *RetrievalService) Providers() []string {
	return vectorstore.Providers()
}

func (s *RetrievalService) ConfigureProvider(ctx context.Context, provider string, params map[string]interface{}) error {
	var args interface{}
	if params != nil {
		args = params
	}
	if err := s.store.Configure(ctx, provider, args); err != nil {
		return err
	}
	s.metrics.ProviderSwitch.WithLabelValues(s.store.ActiveProvider()).Inc()
	return nil
}

// ImportFile ingests a text or Markdown object from the file store. An empty
// title falls back to the file name without extension.
func (s *RetrievalService) ImportFile(ctx context.Context, key, title string) (*model.IngestResult, error) {
	if s.files == nil {
		return nil, appErr.Configuration("file store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, appErr.Invalid("key is required")
	}
	if !extract.Supported(key) {
		return nil, appErr.Invalid("unsupported file type: %s", filepath.Ext(key))
	}
	rc, err := s.files.Open(ctx, key)
	if err != nil {
		if appErr.IsNotFound(err) || appErr.IsInvalid(err) {
			return nil, err
		}
		return nil, appErr.Storage(fmt.Errorf("open %s: %w", key, err))
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxImportSize+1))
	if err != nil {
		return nil, appErr.Storage(fmt.Errorf("read %s: %w", key, err))
	}
	if len(data) > maxImportSize {
		return nil, appErr.Invalid("%s exceeds %d bytes", key, maxImportSize)
	}
	content, err := extract.Text(key, data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		base := filepath.Base(filepath.FromSlash(key))
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return s.Ingest(ctx, title, content)
}
