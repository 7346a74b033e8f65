package answers

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

func init() {
	RegisterProvider(ProviderOpenAI, func(cfg Config) (Provider, error) {
		return NewOpenAIProvider(cfg), nil
	})
}

const systemPrompt = `あなたは自治体の市政情報に詳しいアシスタントです。
住民の意見や質問に対し、市や市議会の取り組みとして知られている範囲で、丁寧かつ簡潔に日本語で回答してください。
不確かなことは推測せず、わからない場合はその旨を伝えてください。`

// OpenAIProvider answers with a single chat completion. It cites no sources.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	oc := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIBaseURL != "" {
		oc.BaseURL = cfg.OpenAIBaseURL
	}
	model := cfg.OpenAIModel
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(oc), model: model}
}

func (p *OpenAIProvider) Name() string { return string(ProviderOpenAI) }

func (p *OpenAIProvider) Answer(ctx context.Context, q Query) (Result, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: q.Text()},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}
	if len(resp.Choices) == 0 {
		return normalizeResult(Result{}), nil
	}
	return normalizeResult(Result{Answer: resp.Choices[0].Message.Content}), nil
}
