package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/ragbase/internal/pkg/errors"
)

type stubProvider struct {
	values []float32
	err    error
	delay  time.Duration
	model  string
}

func (s *stubProvider) Name() string {
	return "stub"
}

func (s *stubProvider) Embed(ctx context.Context, model string, _ string) ([]float32, error) {
	s.model = model
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.values, s.err
}

func TestEmbedderSuccess(t *testing.T) {
	p := &stubProvider{values: []float32{0.1, 0.2, 0.3}}
	e := NewEmbedder(p, "m1", WithDimension(3))
	values, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, values)
	assert.Equal(t, "m1", p.model)
	assert.Equal(t, "m1", e.ModelName())
}

func TestEmbedderErrors(t *testing.T) {
	tests := []struct {
		name string
		p    *stubProvider
	}{
		{"provider failure", &stubProvider{err: errors.New("connection refused")}},
		{"empty vector", &stubProvider{values: []float32{}}},
		{"dimension mismatch", &stubProvider{values: []float32{1, 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEmbedder(tt.p, "m1", WithDimension(3))
			_, err := e.Embed(context.Background(), "hello")
			require.Error(t, err)
			assert.ErrorIs(t, err, appErr.ErrEmbedding)
			assert.True(t, appErr.IsRetryable(err))
		})
	}
}

func TestEmbedderTimeout(t *testing.T) {
	p := &stubProvider{values: []float32{1}, delay: time.Second}
	e := NewEmbedder(p, "m1", WithTimeout(10*time.Millisecond))
	_, err := e.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErr.ErrEmbedding)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider("", nil)
	assert.ErrorIs(t, err, appErr.ErrConfiguration)

	_, err = NewProvider("nope", nil)
	assert.ErrorIs(t, err, appErr.ErrConfiguration)

	p, err := NewProvider(" Ollama ", map[string]interface{}{"base_url": "http://ollama:11434/"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
	assert.Equal(t, "http://ollama:11434", p.(*ollamaProvider).baseURL)

	p, err = NewProvider("ollama", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultOllamaURL, p.(*ollamaProvider).baseURL)
}

func TestProviderCredentials(t *testing.T) {
	_, err := NewProvider("gemini", map[string]interface{}{})
	assert.ErrorIs(t, err, appErr.ErrConfiguration)

	_, err = NewProvider("openai", map[string]interface{}{})
	assert.ErrorIs(t, err, appErr.ErrConfiguration)

	p, err := NewProvider("openai", map[string]interface{}{"base_url": "http://localhost:8080/v1"})
	require.NoError(t, err)
	assert.Equal(t, "none", p.(*openAIProvider).apiKey)

	p, err = NewProvider("gemini", map[string]interface{}{"api_key": "k", "output_dimensionality": 768})
	require.NoError(t, err)
	assert.Equal(t, int32(768), p.(*geminiProvider).outputDim)
}

func TestWithRateLimit(t *testing.T) {
	inner := NewEmbedder(&stubProvider{values: []float32{1}}, "m1")
	assert.Same(t, inner, WithRateLimit(inner, 0, 1))

	limited := WithRateLimit(inner, 1, 1)
	ctx := context.Background()
	_, err := limited.Embed(ctx, "a")
	require.NoError(t, err)

	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = limited.Embed(cctx, "b")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErr.ErrEmbedding)
	assert.Equal(t, "m1", limited.ModelName())
}
