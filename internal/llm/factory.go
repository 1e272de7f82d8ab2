package llm

import (
	"fmt"
	"strings"
)

// NewProvider picks a provider implementation for an endpoint. The
// official OpenAI endpoint goes through the SDK-backed provider so model
// listing uses the typed client; everything else speaks the compatible
// wire protocol directly.
func NewProvider(name, baseURL, apiKey, model string) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("no api key configured for %s", name)
	}
	if isOpenAIEndpoint(name, baseURL) {
		return WrapWithRetry(NewOpenAIProvider(apiKey, model), DefaultRetryConfig()), nil
	}
	if baseURL == "" {
		return nil, fmt.Errorf("no base url configured for %s", name)
	}
	return WrapWithRetry(NewOpenAICompatProvider(baseURL, apiKey, model, name), DefaultRetryConfig()), nil
}

func isOpenAIEndpoint(name, baseURL string) bool {
	if strings.EqualFold(name, "openai") {
		return true
	}
	return strings.Contains(baseURL, "api.openai.com")
}
