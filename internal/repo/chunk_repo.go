package repo

import (
	"context"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/ragbase/internal/model"
	"github.com/xxxsen/ragbase/internal/pkg/dbutil"
)

const chunkTable = "documents"

type ChunkRepo struct {
	db *sqlx.DB
}

func NewChunkRepo(db *sqlx.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) Insert(ctx context.Context, chunk *model.Chunk) (int64, error) {
	data := map[string]interface{}{
		"title":       chunk.Title,
		"content":     chunk.Content,
		"chunk_index": chunk.ChunkIndex,
		"embedding":   pgvector.NewVector(chunk.Embedding),
	}
	sqlStr, args, err := builder.BuildInsert(chunkTable, []map[string]interface{}{data})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr+" RETURNING id, created_at", args)
	if err := r.db.QueryRowxContext(ctx, sqlStr, args...).Scan(&chunk.ID, &chunk.CreatedAt); err != nil {
		return 0, err
	}
	return chunk.ID, nil
}

func (r *ChunkRepo) Search(ctx context.Context, embedding []float32, limit int) ([]model.SearchResult, error) {
	const query = `
		SELECT id, title, content, chunk_index, 1 - (embedding <=> $1) AS similarity
		FROM documents
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	var results []model.SearchResult
	if err := r.db.SelectContext(ctx, &results, query, pgvector.NewVector(embedding), limit); err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Similarity = model.ClampSimilarity(results[i].Similarity)
	}
	return results, nil
}

func (r *ChunkRepo) ListDocuments(ctx context.Context) ([]model.DocumentSummary, error) {
	const query = `
		SELECT title, COUNT(*) AS chunks, MIN(created_at) AS created_at
		FROM documents
		GROUP BY title
		ORDER BY created_at DESC, title ASC
	`
	var docs []model.DocumentSummary
	if err := r.db.SelectContext(ctx, &docs, query); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *ChunkRepo) DeleteByTitle(ctx context.Context, title string) (int64, error) {
	sqlStr, args, err := builder.BuildDelete(chunkTable, map[string]interface{}{"title": title})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ChunkRepo) Count(ctx context.Context) (int64, error) {
	sqlStr, args, err := builder.BuildSelect(chunkTable, nil, []string{"COUNT(*)"})
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var total int64
	if err := r.db.GetContext(ctx, &total, sqlStr, args...); err != nil {
		return 0, err
	}
	return total, nil
}
