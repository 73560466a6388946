package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragbase/internal/ai"
	"github.com/xxxsen/ragbase/internal/filestore"
	appErr "github.com/xxxsen/ragbase/internal/pkg/errors"
	"github.com/xxxsen/ragbase/internal/vectorstore"
)

const testDim = 8

var namespaceSeq atomic.Int64

type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	failAt int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	if f.failAt > 0 && call == f.failAt {
		return nil, appErr.Embedding(errors.New("model unavailable"))
	}
	return hashVector(text), nil
}

func (f *fakeEmbedder) ModelName() string {
	return "fake"
}

func (f *fakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func hashVector(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, testDim)
	for i := range vec {
		vec[i] = float32(sum[i])/255 + 0.01
	}
	return vec
}

func newTestService(t *testing.T, emb ai.IEmbedder, opts ...Option) (*RetrievalService, *vectorstore.Manager) {
	t.Helper()
	chunker, err := ai.NewChunker(ai.DefaultChunkSize, ai.DefaultChunkOverlap)
	require.NoError(t, err)
	store, err := vectorstore.NewManager(vectorstore.ProviderMemory, map[string]interface{}{
		vectorstore.ProviderMemory: map[string]interface{}{"namespace": fmt.Sprintf("%s-%d", t.Name(), namespaceSeq.Add(1))},
	}, vectorstore.Options{Dimension: testDim})
	require.NoError(t, err)
	svc, err := NewRetrievalService(chunker, emb, store, opts...)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc, store
}

func sampleText() string {
	var sb strings.Builder
	for i := 0; sb.Len() < 1200; i++ {
		fmt.Fprintf(&sb, "Sentence %d covers objection handling step %d. ", i, i*7)
	}
	return sb.String()
}

func TestIngestRejectsEmpty(t *testing.T) {
	emb := &fakeEmbedder{}
	svc, store := newTestService(t, emb)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "empty", "   \n\t ")
	assert.ErrorIs(t, err, appErr.ErrEmptyDocument)
	assert.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = svc.Ingest(ctx, "  ", "content")
	assert.ErrorIs(t, err, appErr.ErrInvalid)

	assert.Equal(t, 0, emb.Calls())
	total, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestIngestContiguousAndRoundTrip(t *testing.T) {
	emb := &fakeEmbedder{}
	svc, _ := newTestService(t, emb)
	ctx := context.Background()
	text := sampleText()
	chunker, err := ai.NewChunker(ai.DefaultChunkSize, ai.DefaultChunkOverlap)
	require.NoError(t, err)
	chunks := chunker.Split(text)
	require.Greater(t, len(chunks), 1)

	res, err := svc.Ingest(ctx, "playbook", text)
	require.NoError(t, err)
	assert.Equal(t, "playbook", res.Title)
	assert.Equal(t, len(chunks), res.ChunkCount)
	assert.Len(t, res.IDs, len(chunks))

	docs, err := svc.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, int64(len(chunks)), docs[0].Chunks)

	for i, chunk := range chunks {
		results, err := svc.Query(ctx, chunk, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, chunk, results[0].Content)
		assert.Equal(t, i, results[0].ChunkIndex)
		assert.Equal(t, res.IDs[i], results[0].ID)
		assert.InDelta(t, 1.0, results[0].Similarity, 1e-4)
	}
}

func TestIngestConcurrentKeepsOrder(t *testing.T) {
	emb := &fakeEmbedder{}
	svc, _ := newTestService(t, emb, WithEmbedConcurrency(4))
	ctx := context.Background()
	text := sampleText() + sampleText()

	res, err := svc.Ingest(ctx, "doc", text)
	require.NoError(t, err)
	chunker, err := ai.NewChunker(ai.DefaultChunkSize, ai.DefaultChunkOverlap)
	require.NoError(t, err)
	chunks := chunker.Split(text)
	require.Equal(t, len(chunks), res.ChunkCount)
	for i := 1; i < len(res.IDs); i++ {
		assert.Greater(t, res.IDs[i], res.IDs[i-1])
	}
	for i, chunk := range chunks {
		results, err := svc.Query(ctx, chunk, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, i, results[0].ChunkIndex)
	}
}

func TestIngestPartialFailure(t *testing.T) {
	emb := &fakeEmbedder{failAt: 2}
	svc, store := newTestService(t, emb, WithPolicy(PolicyAppend))
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "doc", sampleText())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErr.ErrEmbedding)
	var ingestErr *IngestError
	require.True(t, errors.As(err, &ingestErr))
	assert.Equal(t, 1, ingestErr.Stored)
	assert.Greater(t, ingestErr.Total, 1)

	total, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestIngestPartialFailureConcurrent(t *testing.T) {
	emb := &fakeEmbedder{failAt: 1}
	svc, store := newTestService(t, emb, WithPolicy(PolicyAppend), WithEmbedConcurrency(3))
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "doc", sampleText())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErr.ErrEmbedding)

	total, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Less(t, total, int64(3))
}

func TestIngestPolicies(t *testing.T) {
	ctx := context.Background()
	text := sampleText()

	replace, _ := newTestService(t, &fakeEmbedder{})
	first, err := replace.Ingest(ctx, "doc", text)
	require.NoError(t, err)
	_, err = replace.Ingest(ctx, "doc", text)
	require.NoError(t, err)
	total, err := replace.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(first.ChunkCount), total)

	appendSvc, _ := newTestService(t, &fakeEmbedder{}, WithPolicy(PolicyAppend))
	_, err = appendSvc.Ingest(ctx, "doc", text)
	require.NoError(t, err)
	_, err = appendSvc.Ingest(ctx, "doc", text)
	require.NoError(t, err)
	total, err = appendSvc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2*first.ChunkCount), total)

	chunker, err := ai.NewChunker(10, 2)
	require.NoError(t, err)
	_, err = NewRetrievalService(chunker, &fakeEmbedder{}, nil, WithPolicy("merge"))
	assert.ErrorIs(t, err, appErr.ErrConfiguration)
}

func TestReplaceKeepsPreviousChunksOnEmbedFailure(t *testing.T) {
	for _, concurrency := range []int{1, 3} {
		t.Run(fmt.Sprintf("concurrency_%d", concurrency), func(t *testing.T) {
			emb := &fakeEmbedder{}
			svc, store := newTestService(t, emb, WithEmbedConcurrency(concurrency))
			ctx := context.Background()

			first, err := svc.Ingest(ctx, "doc", sampleText())
			require.NoError(t, err)
			require.Greater(t, first.ChunkCount, 1)

			emb.mu.Lock()
			emb.failAt = emb.calls + 2
			emb.mu.Unlock()

			_, err = svc.Ingest(ctx, "doc", sampleText()+" Revised.")
			require.Error(t, err)
			assert.ErrorIs(t, err, appErr.ErrEmbedding)
			var ingestErr *IngestError
			require.True(t, errors.As(err, &ingestErr))
			assert.Equal(t, 0, ingestErr.Stored)

			total, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(first.ChunkCount), total)
			docs, err := svc.ListDocuments(ctx)
			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, int64(first.ChunkCount), docs[0].Chunks)
		})
	}
}

func TestDeleteDocumentTrimsTitle(t *testing.T) {
	svc, _ := newTestService(t, &fakeEmbedder{})
	ctx := context.Background()
	res, err := svc.Ingest(ctx, " doc ", "A short document about pricing.")
	require.NoError(t, err)
	assert.Equal(t, "doc", res.Title)

	n, err := svc.DeleteDocument(ctx, " doc ")
	require.NoError(t, err)
	assert.Equal(t, int64(res.ChunkCount), n)

	_, err = svc.DeleteDocument(ctx, "   ")
	assert.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestDeleteDocument(t *testing.T) {
	svc, _ := newTestService(t, &fakeEmbedder{})
	ctx := context.Background()
	res, err := svc.Ingest(ctx, "doc", sampleText())
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, "keep", "Another document.")
	require.NoError(t, err)

	n, err := svc.DeleteDocument(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, int64(res.ChunkCount), n)

	_, err = svc.DeleteDocument(ctx, "doc")
	assert.ErrorIs(t, err, appErr.ErrNotFound)

	results, err := svc.Query(ctx, "Sentence 1 covers objection handling step 7.", 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "doc", r.Title)
	}
	total, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestQueryValidation(t *testing.T) {
	emb := &fakeEmbedder{}
	svc, _ := newTestService(t, emb)
	ctx := context.Background()

	_, err := svc.Query(ctx, "  ", 3)
	assert.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = svc.Query(ctx, "q", 0)
	assert.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = svc.Query(ctx, "q", MaxQueryLimit+1)
	assert.ErrorIs(t, err, appErr.ErrInvalid)
	assert.Equal(t, 0, emb.Calls())

	results, err := svc.Query(ctx, "q", DefaultQueryLimit)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = svc.Embed(ctx, "")
	assert.ErrorIs(t, err, appErr.ErrInvalid)
	vec, err := svc.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Len(t, vec, testDim)
}

func TestHealthAndProviderSwitch(t *testing.T) {
	svc, _ := newTestService(t, &fakeEmbedder{})
	ctx := context.Background()
	_, err := svc.Ingest(ctx, "doc", "Some content here.")
	require.NoError(t, err)

	report := svc.Health(ctx)
	assert.Equal(t, "healthy", report.Status)
	assert.Equal(t, int64(1), report.Documents)
	assert.Equal(t, vectorstore.ProviderMemory, report.Provider)

	require.NoError(t, svc.ConfigureProvider(ctx, vectorstore.ProviderMemory, map[string]interface{}{"namespace": t.Name() + "-other"}))
	docs, err := svc.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, svc.ConfigureProvider(ctx, vectorstore.ProviderMemory, nil))
	docs, err = svc.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	err = svc.ConfigureProvider(ctx, "nope", nil)
	assert.ErrorIs(t, err, appErr.ErrConfiguration)
	assert.Contains(t, svc.Providers(), vectorstore.ProviderQdrant)
}

func TestImportFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guide.md"), []byte("# Guide\n\nAlways ask *open* questions."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blank.txt"), []byte("   "), 0o644))
	files, err := filestore.New("local", map[string]interface{}{"dir": dir})
	require.NoError(t, err)

	svc, _ := newTestService(t, &fakeEmbedder{}, WithFileStore(files))
	ctx := context.Background()

	res, err := svc.ImportFile(ctx, "guide.md", "")
	require.NoError(t, err)
	assert.Equal(t, "guide", res.Title)
	assert.Equal(t, 1, res.ChunkCount)

	results, err := svc.Query(ctx, "Guide\nAlways ask open questions.", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Guide\nAlways ask open questions.", results[0].Content)

	_, err = svc.ImportFile(ctx, "blank.txt", "")
	assert.ErrorIs(t, err, appErr.ErrEmptyDocument)
	_, err = svc.ImportFile(ctx, "missing.md", "")
	assert.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = svc.ImportFile(ctx, "deck.pptx", "")
	assert.ErrorIs(t, err, appErr.ErrInvalid)

	bare, _ := newTestService(t, &fakeEmbedder{})
	_, err = bare.ImportFile(ctx, "guide.md", "")
	assert.ErrorIs(t, err, appErr.ErrConfiguration)
}
