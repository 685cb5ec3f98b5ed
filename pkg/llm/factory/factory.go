package factory

import (
	"fmt"

	"video-rag-be/pkg/llm"
	"video-rag-be/pkg/llm/gemini"
	"video-rag-be/pkg/llm/ollama"
)

func NewInvoker(providerType, baseURL string) (llm.Invoker, error) {
	switch providerType {
	case "", "gemini":
		return gemini.NewInvoker(baseURL), nil
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
