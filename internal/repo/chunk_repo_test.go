package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragbase/internal/model"
	"github.com/xxxsen/ragbase/test/testutil"
)

func TestChunkRepoLifecycle(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	r := NewChunkRepo(conn)
	ctx := context.Background()

	for i, vec := range [][]float32{{1, 0, 0}, {0, 1, 0}} {
		id, err := r.Insert(ctx, &model.Chunk{Title: "alpha", Content: "c", ChunkIndex: i, Embedding: vec})
		require.NoError(t, err)
		assert.Positive(t, id)
	}
	_, err := r.Insert(ctx, &model.Chunk{Title: "beta", Content: "b", ChunkIndex: 0, Embedding: []float32{0, 0, 1}})
	require.NoError(t, err)

	results, err := r.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].Title)
	assert.Equal(t, 0, results[0].ChunkIndex)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)

	docs, err := r.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "beta", docs[0].Title)

	total, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	deleted, err := r.DeleteByTitle(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	deleted, err = r.DeleteByTitle(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}
