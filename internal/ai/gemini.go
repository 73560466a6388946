package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	appErr "github.com/xxxsen/ragbase/internal/pkg/errors"
)

type geminiConfig struct {
	APIKey               string `json:"api_key"`
	OutputDimensionality int32  `json:"output_dimensionality"`
	TaskType             string `json:"task_type"`
}

type geminiProvider struct {
	apiKey    string
	outputDim int32
	taskType  string
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	var config *genai.EmbedContentConfig
	if p.taskType != "" || p.outputDim > 0 {
		config = &genai.EmbedContentConfig{TaskType: p.taskType}
		if p.outputDim > 0 {
			dim := p.outputDim
			config.OutputDimensionality = &dim
		}
	}
	resp, err := client.Models.EmbedContent(
		ctx,
		model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		config,
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding values returned")
	}
	return resp.Embeddings[0].Values, nil
}

func createGeminiFactory(args interface{}) (IProvider, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, appErr.Configuration("gemini embedding provider requires api_key")
	}
	return &geminiProvider{
		apiKey:    apiKey,
		outputDim: cfg.OutputDimensionality,
		taskType:  strings.TrimSpace(cfg.TaskType),
	}, nil
}

func init() {
	Register("gemini", createGeminiFactory)
}
