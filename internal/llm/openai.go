package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider implements Provider for the standard OpenAI API. Model
// discovery goes through the official SDK; streaming uses the same
// chat-completions wire path as every other endpoint so fragment
// aggregation behaves identically across providers.
type OpenAIProvider struct {
	client *openai.Client // Used for ListModels
	compat *OpenAICompatProvider
	model  string
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{
		client: &client,
		compat: NewOpenAICompatProvider(openAIBaseURL, apiKey, model, "OpenAI"),
		model:  model,
	}
}

func (p *OpenAIProvider) Name() string {
	return fmt.Sprintf("OpenAI (%s)", p.model)
}

func (p *OpenAIProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	var models []ModelInfo
	for _, m := range page.Data {
		models = append(models, ModelInfo{
			ID:      m.ID,
			Created: m.Created,
			OwnedBy: m.OwnedBy,
		})
	}

	return models, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	return p.compat.Stream(ctx, req)
}
