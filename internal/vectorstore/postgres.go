package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragbase/internal/db"
	"github.com/xxxsen/ragbase/internal/model"
	appErr "github.com/xxxsen/ragbase/internal/pkg/errors"
	"github.com/xxxsen/ragbase/internal/repo"
)

const (
	ProviderLocal = "local"

	defaultPostgresHost = "localhost"
	defaultPostgresPort = 5432
	defaultPostgresUser = "postgres"
	defaultPostgresDB   = "postgres"
)

// postgresStore backs both the self-hosted and the managed Postgres
// providers. They differ only in how the connection settings are derived.
type postgresStore struct {
	provider string
	opts     Options
	conn     *sqlx.DB
	chunks   *repo.ChunkRepo

	mu    sync.Mutex
	ready bool
}

func newPostgresStore(provider string, cfg db.Config, opts Options) (*postgresStore, error) {
	conn, err := db.Open(cfg)
	if err != nil {
		return nil, appErr.Configuration("open %s database: %v", provider, err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxIdleTime(5 * time.Minute)
	return &postgresStore{
		provider: provider,
		opts:     opts,
		conn:     conn,
		chunks:   repo.NewChunkRepo(conn),
	}, nil
}

func (s *postgresStore) Provider() string {
	return s.provider
}

func (s *postgresStore) ensureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if err := db.ApplyMigrations(ctx, s.conn, s.opts.Dimension); err != nil {
		return appErr.Storage(fmt.Errorf("%s bootstrap: %w", s.provider, err))
	}
	if err := db.EnsureVectorIndex(ctx, s.conn); err != nil {
		logutil.GetLogger(ctx).Warn("create vector index failed, searches fall back to sequential scan",
			zap.String("provider", s.provider), zap.Error(err))
	}
	s.ready = true
	return nil
}

func (s *postgresStore) EnsureIndex(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	if err := db.EnsureVectorIndex(ctx, s.conn); err != nil {
		return appErr.Storage(err)
	}
	return nil
}

func (s *postgresStore) Insert(ctx context.Context, title, content string, chunkIndex int, embedding []float32) (int64, error) {
	if err := checkVector(embedding, s.opts.Dimension); err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	if err := s.ensureSchema(ctx); err != nil {
		return 0, err
	}
	id, err := s.chunks.Insert(ctx, &model.Chunk{
		Title:      title,
		Content:    content,
		ChunkIndex: chunkIndex,
		Embedding:  embedding,
	})
	if err != nil {
		return 0, appErr.Storage(fmt.Errorf("%s insert: %w", s.provider, err))
	}
	return id, nil
}

func (s *postgresStore) Search(ctx context.Context, embedding []float32, limit int) ([]model.SearchResult, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	if err := checkVector(embedding, s.opts.Dimension); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	results, err := s.chunks.Search(ctx, embedding, limit)
	if err != nil {
		return nil, appErr.Storage(fmt.Errorf("%s search: %w", s.provider, err))
	}
	return results, nil
}

func (s *postgresStore) ListDocuments(ctx context.Context) ([]model.DocumentSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	docs, err := s.chunks.ListDocuments(ctx)
	if err != nil {
		return nil, appErr.Storage(fmt.Errorf("%s list documents: %w", s.provider, err))
	}
	return docs, nil
}

func (s *postgresStore) DeleteDocument(ctx context.Context, title string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	if err := s.ensureSchema(ctx); err != nil {
		return 0, err
	}
	n, err := s.chunks.DeleteByTitle(ctx, title)
	if err != nil {
		return 0, appErr.Storage(fmt.Errorf("%s delete: %w", s.provider, err))
	}
	return n, nil
}

func (s *postgresStore) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	if err := s.ensureSchema(ctx); err != nil {
		return 0, err
	}
	n, err := s.chunks.Count(ctx)
	if err != nil {
		return 0, appErr.Storage(fmt.Errorf("%s count: %w", s.provider, err))
	}
	return n, nil
}

func (s *postgresStore) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	var one int
	if err := s.conn.GetContext(ctx, &one, "SELECT 1"); err != nil {
		return appErr.Storage(fmt.Errorf("%s connection: %w", s.provider, err))
	}
	return nil
}

func (s *postgresStore) Close() error {
	return s.conn.Close()
}

func createLocalFactory(args interface{}, opts Options) (Store, error) {
	cfg := db.Config{}
	if err := decodeConfig(args, &cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		if cfg.Host == "" {
			cfg.Host = defaultPostgresHost
		}
		if cfg.Port == 0 {
			cfg.Port = defaultPostgresPort
		}
		if cfg.User == "" {
			cfg.User = defaultPostgresUser
		}
		if cfg.DBName == "" {
			cfg.DBName = defaultPostgresDB
		}
	}
	return newPostgresStore(ProviderLocal, cfg, opts)
}

func init() {
	Register(ProviderLocal, createLocalFactory)
}
