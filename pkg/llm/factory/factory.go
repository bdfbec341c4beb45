package factory

import (
	"fmt"

	"ai-docquery-be/pkg/llm"
	"ai-docquery-be/pkg/llm/ollama"
	"ai-docquery-be/pkg/llm/openai"
)

// NewLLMProvider builds the generation backend selected by name.
func NewLLMProvider(provider, model, ollamaBaseURL, openaiApiKey string) (llm.LLMProvider, error) {
	switch provider {
	case "openai", "":
		return openai.NewOpenAIProvider(openaiApiKey, model), nil
	case "ollama":
		return ollama.NewOllamaProvider(ollamaBaseURL, model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", provider)
	}
}
