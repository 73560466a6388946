package ai

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	appErr "github.com/xxxsen/ragbase/internal/pkg/errors"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type openAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type openAIProvider struct {
	apiKey  string
	baseURL string
}

func (p *openAIProvider) Name() string {
	return "openai"
}

func (p *openAIProvider) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	client, err := openai.New(
		openai.WithBaseURL(p.baseURL),
		openai.WithToken(p.apiKey),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, err
	}
	e, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, err
	}
	return e.EmbedQuery(ctx, text)
}

func createOpenAIFactory(args interface{}) (IProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	apiKey := strings.TrimSpace(cfg.APIKey)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
		if apiKey == "" {
			return nil, appErr.Configuration("openai embedding provider requires api_key")
		}
	}
	if apiKey == "" {
		// self-hosted compatible servers usually ignore the token
		apiKey = "none"
	}
	return &openAIProvider{apiKey: apiKey, baseURL: baseURL}, nil
}

func init() {
	Register("openai", createOpenAIFactory)
}
