package answers

import (
	"os"
	"strings"
	"time"
)

// ProviderType identifies which answer provider to use.
type ProviderType string

const (
	ProviderRAG    ProviderType = "rag"
	ProviderOpenAI ProviderType = "openai"
)

// DefaultOpenAIModel is used when OPENAI_MODEL is unset.
const DefaultOpenAIModel = "gpt-4o-mini"

// Config holds configuration for the answer provider.
type Config struct {
	// Provider type: "rag" or "openai"
	Provider ProviderType

	// RAG function config
	RAGEndpoint string
	RAGKey      string

	// OpenAI config
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	Timeout time.Duration
}

// LoadFromEnv loads provider configuration from environment variables.
//
// Environment variables:
//   - ANSWER_PROVIDER: "rag" or "openai" (default: "rag")
//   - RAG_ENDPOINT: URL of the RAG answer function (required if using rag)
//   - RAG_API_KEY: bearer token sent to the RAG function (optional)
//   - OPENAI_API_KEY: API key (required if using openai)
//   - OPENAI_MODEL: chat model (default: gpt-4o-mini)
//   - OPENAI_BASE_URL: alternative API base URL (optional)
//   - ANSWER_TIMEOUT: Go duration (default: 60s)
func LoadFromEnv() Config {
	var provider ProviderType
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ANSWER_PROVIDER"))) {
	case "openai":
		provider = ProviderOpenAI
	default:
		provider = ProviderRAG
	}

	model := strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if model == "" {
		model = DefaultOpenAIModel
	}

	timeout := 60 * time.Second
	if d, err := time.ParseDuration(os.Getenv("ANSWER_TIMEOUT")); err == nil && d > 0 {
		timeout = d
	}

	return Config{
		Provider:      provider,
		RAGEndpoint:   strings.TrimSpace(os.Getenv("RAG_ENDPOINT")),
		RAGKey:        os.Getenv("RAG_API_KEY"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   model,
		OpenAIBaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		Timeout:       timeout,
	}
}

// Validate checks that the configuration is valid for the selected provider.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderRAG:
		if c.RAGEndpoint == "" {
			return ErrMissingRAGEndpoint
		}
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			return ErrMissingOpenAIKey
		}
	}
	return nil
}
