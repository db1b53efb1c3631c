package factory

import (
	"fmt"

	"second-brain/pkg/llm"
	"second-brain/pkg/llm/huggingface"
	"second-brain/pkg/llm/ollama"
)

type Options struct {
	Provider string // ollama | huggingface
	Model    string
	BaseURL  string
	ApiKey   string
}

func NewLLMProvider(opts Options) (llm.LLMProvider, error) {
	switch opts.Provider {
	case "ollama":
		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, opts.Model), nil
	case "huggingface":
		if opts.ApiKey == "" {
			return nil, fmt.Errorf("huggingface provider requires an api key")
		}
		return huggingface.NewHuggingFaceProvider(opts.ApiKey, opts.BaseURL, opts.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", opts.Provider)
	}
}
