package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragbase/internal/model"
	appErr "github.com/xxxsen/ragbase/internal/pkg/errors"
)

const (
	ProviderQdrant = "qdrant"

	defaultQdrantHost       = "localhost"
	defaultQdrantPort       = 6334
	defaultQdrantCollection = "documents"
	qdrantScrollPage        = 256
)

type qdrantConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	APIKey     string `json:"api_key"`
	UseTLS     bool   `json:"use_tls"`
	Collection string `json:"collection"`
}

type qdrantStore struct {
	cfg  qdrantConfig
	opts Options
	ids  *idGenerator

	mu     sync.Mutex
	client *qdrant.Client
	ready  bool
}

// conn dials on first use.
func (s *qdrantStore) conn() (*qdrant.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   s.cfg.Host,
		Port:   s.cfg.Port,
		APIKey: s.cfg.APIKey,
		UseTLS: s.cfg.UseTLS,
	})
	if err != nil {
		return nil, appErr.Storage(fmt.Errorf("qdrant connect: %w", err))
	}
	s.client = client
	return client, nil
}

func (s *qdrantStore) ensureCollection(ctx context.Context) (*qdrant.Client, error) {
	client, err := s.conn()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return client, nil
	}
	exists, err := client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return nil, appErr.Storage(fmt.Errorf("qdrant bootstrap: %w", err))
	}
	if !exists {
		err := client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.opts.Dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return nil, appErr.Storage(fmt.Errorf("qdrant create collection: %w", err))
		}
	}
	if err := s.createTitleIndex(ctx, client); err != nil {
		logutil.GetLogger(ctx).Warn("create qdrant title index failed",
			zap.String("collection", s.cfg.Collection), zap.Error(err))
	}
	s.ready = true
	return client, nil
}

func (s *qdrantStore) createTitleIndex(ctx context.Context, client *qdrant.Client) error {
	_, err := client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.cfg.Collection,
		FieldName:      "title",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}
	return nil
}

func (s *qdrantStore) Provider() string {
	return ProviderQdrant
}

func (s *qdrantStore) EnsureIndex(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	client, err := s.ensureCollection(ctx)
	if err != nil {
		return err
	}
	if err := s.createTitleIndex(ctx, client); err != nil {
		return appErr.Storage(err)
	}
	return nil
}

func (s *qdrantStore) Insert(ctx context.Context, title, content string, chunkIndex int, embedding []float32) (int64, error) {
	if err := checkVector(embedding, s.opts.Dimension); err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	client, err := s.ensureCollection(ctx)
	if err != nil {
		return 0, err
	}
	id := s.ids.Next()
	_, err = client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDNum(uint64(id)),
			Vectors: qdrant.NewVectors(embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"title":       title,
				"content":     content,
				"chunk_index": chunkIndex,
				"created_at":  time.Now().UnixMicro(),
			}),
		}},
	})
	if err != nil {
		return 0, appErr.Storage(fmt.Errorf("qdrant insert: %w", err))
	}
	return id, nil
}

func (s *qdrantStore) Search(ctx context.Context, embedding []float32, limit int) ([]model.SearchResult, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	if err := checkVector(embedding, s.opts.Dimension); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	client, err := s.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}
	points, err := client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, appErr.Storage(fmt.Errorf("qdrant search: %w", err))
	}
	results := make([]model.SearchResult, 0, len(points))
	for _, p := range points {
		results = append(results, model.SearchResult{
			ID:         int64(p.GetId().GetNum()),
			Title:      p.GetPayload()["title"].GetStringValue(),
			Content:    p.GetPayload()["content"].GetStringValue(),
			ChunkIndex: int(p.GetPayload()["chunk_index"].GetIntegerValue()),
			Similarity: model.ClampSimilarity(float64(p.GetScore())),
		})
	}
	return results, nil
}

func (s *qdrantStore) ListDocuments(ctx context.Context) ([]model.DocumentSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	client, err := s.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}
	byTitle := map[string]*model.DocumentSummary{}
	var offset *qdrant.PointId
	for {
		points, err := client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.cfg.Collection,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(qdrantScrollPage)),
			WithPayload:    qdrant.NewWithPayloadInclude("title", "created_at"),
		})
		if err != nil {
			return nil, appErr.Storage(fmt.Errorf("qdrant list documents: %w", err))
		}
		for _, p := range points {
			title := p.GetPayload()["title"].GetStringValue()
			createdAt := time.UnixMicro(p.GetPayload()["created_at"].GetIntegerValue())
			doc, ok := byTitle[title]
			if !ok {
				doc = &model.DocumentSummary{Title: title, CreatedAt: createdAt}
				byTitle[title] = doc
			}
			doc.Chunks++
			if createdAt.Before(doc.CreatedAt) {
				doc.CreatedAt = createdAt
			}
		}
		if len(points) < qdrantScrollPage {
			break
		}
		offset = qdrant.NewIDNum(points[len(points)-1].GetId().GetNum() + 1)
	}
	docs := make([]model.DocumentSummary, 0, len(byTitle))
	for _, doc := range byTitle {
		docs = append(docs, *doc)
	}
	sortSummaries(docs)
	return docs, nil
}

func (s *qdrantStore) titleFilter(title string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("title", title)},
	}
}

func (s *qdrantStore) DeleteDocument(ctx context.Context, title string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	client, err := s.ensureCollection(ctx)
	if err != nil {
		return 0, err
	}
	n, err := client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Filter:         s.titleFilter(title),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, appErr.Storage(fmt.Errorf("qdrant delete: %w", err))
	}
	if n == 0 {
		return 0, nil
	}
	_, err = client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(s.titleFilter(title)),
	})
	if err != nil {
		return 0, appErr.Storage(fmt.Errorf("qdrant delete: %w", err))
	}
	return int64(n), nil
}

func (s *qdrantStore) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	client, err := s.ensureCollection(ctx)
	if err != nil {
		return 0, err
	}
	n, err := client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, appErr.Storage(fmt.Errorf("qdrant count: %w", err))
	}
	return int64(n), nil
}

func (s *qdrantStore) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	client, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := client.HealthCheck(ctx); err != nil {
		return appErr.Storage(fmt.Errorf("qdrant connection: %w", err))
	}
	return nil
}

func (s *qdrantStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	s.ready = false
	return err
}

func createQdrantFactory(args interface{}, opts Options) (Store, error) {
	cfg := qdrantConfig{}
	if err := decodeConfig(args, &cfg); err != nil {
		return nil, err
	}
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		cfg.Host = defaultQdrantHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultQdrantPort
	}
	if cfg.Collection == "" {
		cfg.Collection = defaultQdrantCollection
	}
	return &qdrantStore{cfg: cfg, opts: opts, ids: newIDGenerator()}, nil
}

func init() {
	Register(ProviderQdrant, createQdrantFactory)
}
