package answers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okayama-voice/opinion-map/internal/posts"
)

// Common errors
var (
	ErrMissingRAGEndpoint = errors.New("RAG_ENDPOINT environment variable is required for rag provider")
	ErrMissingOpenAIKey   = errors.New("OPENAI_API_KEY environment variable is required for openai provider")
	ErrUnknownProvider    = errors.New("unknown provider type")
	ErrProviderFailed     = errors.New("answer provider failed")
	ErrNoProvider         = errors.New("no answer provider configured")
)

// NoAnswer replaces an empty answer from a provider.
const NoAnswer = "回答を取得できませんでした。"

// Query is the question sent to a provider for one post.
type Query struct {
	PostID  int64
	Content string
	City    string
	Ward    string
	Chome   string
}

// Region joins the non-empty region parts.
func (q Query) Region() string {
	var parts []string
	for _, p := range []string{q.City, q.Ward, q.Chome} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Text is the prompt: the region line followed by the question line.
func (q Query) Text() string {
	return "【地域】" + q.Region() + "\n【質問】" + q.Content
}

// QueryFor builds the query of a stored post. A post with no city is asked
// about the fallback city.
func QueryFor(p posts.Post, fallbackCity string) Query {
	q := Query{PostID: p.ID, Content: strings.TrimSpace(p.Content)}
	if p.CityName != nil {
		q.City = *p.CityName
	}
	if p.WardName != nil {
		q.Ward = *p.WardName
	}
	if p.ChomeName != nil {
		q.Chome = *p.ChomeName
	}
	if strings.TrimSpace(q.City) == "" {
		q.City = fallbackCity
	}
	return q
}

// Result is a provider's answer with its cited sources.
type Result struct {
	Answer  string
	Sources []posts.Source
}

// Provider generates answers to post questions.
type Provider interface {
	// Name returns the provider name for logging purposes.
	Name() string
	Answer(ctx context.Context, q Query) (Result, error)
}

var providerRegistry = make(map[ProviderType]func(Config) (Provider, error))

// RegisterProvider registers a provider constructor for a given provider type.
func RegisterProvider(providerType ProviderType, constructor func(Config) (Provider, error)) {
	providerRegistry[providerType] = constructor
}

// NewProvider creates a new Provider based on the configuration.
func NewProvider(cfg Config) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	constructor, ok := providerRegistry[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}

	return constructor(cfg)
}

func normalizeResult(r Result) Result {
	if strings.TrimSpace(r.Answer) == "" {
		r.Answer = NoAnswer
	}
	return r
}
