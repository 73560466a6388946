package handler_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragbase/internal/ai"
	"github.com/xxxsen/ragbase/internal/filestore"
	"github.com/xxxsen/ragbase/internal/handler"
	"github.com/xxxsen/ragbase/internal/middleware"
	appErr "github.com/xxxsen/ragbase/internal/pkg/errors"
	"github.com/xxxsen/ragbase/internal/service"
	"github.com/xxxsen/ragbase/internal/vectorstore"
)

const testDim = 4

var namespaceSeq atomic.Int64

type hashEmbedder struct {
	fail atomic.Bool
}

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.fail.Load() {
		return nil, appErr.Embedding(errors.New("connection refused"))
	}
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, testDim)
	for i := range vec {
		vec[i] = float32(sum[i])/255 + 0.01
	}
	return vec, nil
}

func (e *hashEmbedder) ModelName() string {
	return "hash"
}

type testServer struct {
	router http.Handler
	emb    *hashEmbedder
	dir    string
}

func setupRouter(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	chunker, err := ai.NewChunker(ai.DefaultChunkSize, ai.DefaultChunkOverlap)
	require.NoError(t, err)
	store, err := vectorstore.NewManager(vectorstore.ProviderMemory, map[string]interface{}{
		vectorstore.ProviderMemory: map[string]interface{}{"namespace": fmt.Sprintf("handler-%d", namespaceSeq.Add(1))},
	}, vectorstore.Options{Dimension: testDim})
	require.NoError(t, err)

	dir := t.TempDir()
	files, err := filestore.New("local", map[string]interface{}{"dir": dir})
	require.NoError(t, err)

	emb := &hashEmbedder{}
	svc, err := service.NewRetrievalService(chunker, emb, store, service.WithFileStore(files))
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	engine := gin.New()
	engine.Use(middleware.RequestID())
	handler.RegisterRoutes(engine.Group(""), handler.RouterDeps{
		Documents: handler.NewDocumentHandler(svc, 1<<20),
		Search:    handler.NewSearchHandler(svc),
		System:    handler.NewSystemHandler(svc),
	})
	return &testServer{router: engine, emb: emb, dir: dir}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	out := map[string]interface{}{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func longText() string {
	var sb strings.Builder
	for i := 0; sb.Len() < 1200; i++ {
		fmt.Fprintf(&sb, "Step %d of the discovery call is to listen. ", i)
	}
	return sb.String()
}

func TestRootAndHealth(t *testing.T) {
	s := setupRouter(t)

	w, body := s.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "ragbase", body["service"])
	require.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w, body = s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, "memory", body["provider"])
	require.EqualValues(t, 0, body["documents"])
}

func TestDocumentLifecycle(t *testing.T) {
	s := setupRouter(t)

	w, body := s.do(t, http.MethodPost, "/documents", map[string]string{"title": "Playbook", "content": longText()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, true, body["success"])
	require.Equal(t, "Playbook", body["title"])
	chunks := int(body["chunks"].(float64))
	require.GreaterOrEqual(t, chunks, 2)
	require.Len(t, body["ids"], chunks)

	w, body = s.do(t, http.MethodGet, "/documents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 1, body["count"])
	docs := body["documents"].([]interface{})
	require.Equal(t, "Playbook", docs[0].(map[string]interface{})["title"])
	require.EqualValues(t, chunks, docs[0].(map[string]interface{})["chunks"])

	w, body = s.do(t, http.MethodPost, "/search", map[string]interface{}{"query": "discovery call"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "discovery call", body["query"])
	results := body["results"].([]interface{})
	require.Len(t, results, min(service.DefaultQueryLimit, chunks))
	require.EqualValues(t, len(results), body["count"])
	first := results[0].(map[string]interface{})
	require.Equal(t, "Playbook", first["title"])
	sim := first["similarity"].(float64)
	require.True(t, sim >= 0 && sim <= 1)

	w, body = s.do(t, http.MethodPost, "/search", map[string]interface{}{"query": "discovery call", "limit": 1})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["results"], 1)

	w, body = s.do(t, http.MethodDelete, "/documents/"+url.PathEscape("Playbook"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["success"])
	require.EqualValues(t, chunks, body["deleted_chunks"])

	w, body = s.do(t, http.MethodDelete, "/documents/Playbook", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "not_found", body["kind"])
	require.Equal(t, false, body["retryable"])
}

func TestCreateValidation(t *testing.T) {
	s := setupRouter(t)

	w, body := s.do(t, http.MethodPost, "/documents", map[string]string{"title": "Empty", "content": "   "})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "validation", body["kind"])

	w, _ = s.do(t, http.MethodPost, "/documents", map[string]string{"content": "body"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	w, _ = s.do(t, http.MethodPost, "/search", map[string]interface{}{"query": "x", "limit": 0})
	require.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = s.do(t, http.MethodPost, "/search", map[string]interface{}{"query": ""})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEmbedEndpoint(t *testing.T) {
	s := setupRouter(t)

	w, body := s.do(t, http.MethodPost, "/embed", map[string]string{"text": "hello"})
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, testDim, body["dimensions"])
	require.Len(t, body["embedding"], testDim)

	s.emb.fail.Store(true)
	w, body = s.do(t, http.MethodPost, "/embed", map[string]string{"text": "hello"})
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Equal(t, "embedding", body["kind"])
	require.Equal(t, true, body["retryable"])
}

func TestProviderEndpoints(t *testing.T) {
	s := setupRouter(t)

	w, body := s.do(t, http.MethodGet, "/provider", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "memory", body["provider"])
	require.Contains(t, body["providers"], "qdrant")

	w, body = s.do(t, http.MethodPut, "/provider", map[string]interface{}{"provider": "nope"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "configuration", body["kind"])

	w, body = s.do(t, http.MethodPut, "/provider", map[string]interface{}{
		"provider": "memory",
		"params":   map[string]interface{}{"namespace": fmt.Sprintf("handler-switch-%d", namespaceSeq.Add(1))},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "memory", body["provider"])
}

func TestImportEndpoint(t *testing.T) {
	s := setupRouter(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, "pricing.md"), []byte("# Pricing\n\nAnnual plans get **two months** free."), 0o644))

	w, body := s.do(t, http.MethodPost, "/documents/import", map[string]string{"key": "pricing.md"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "pricing", body["title"])
	require.EqualValues(t, 1, body["chunks"])

	w, body = s.do(t, http.MethodPost, "/documents/import", map[string]string{"key": "missing.txt"})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "not_found", body["kind"])

	w, _ = s.do(t, http.MethodPost, "/documents/import", map[string]string{"key": "deck.pdf"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ragbase_")
}
