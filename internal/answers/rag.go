package answers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okayama-voice/opinion-map/internal/posts"
)

func init() {
	RegisterProvider(ProviderRAG, func(cfg Config) (Provider, error) {
		return NewRAGProvider(cfg), nil
	})
}

// RAGProvider calls the retrieval-augmented answer function over HTTP.
type RAGProvider struct {
	endpoint string
	key      string
	client   *http.Client
}

func NewRAGProvider(cfg Config) *RAGProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RAGProvider{
		endpoint: cfg.RAGEndpoint,
		key:      cfg.RAGKey,
		client:   &http.Client{Timeout: timeout},
	}
}

func (p *RAGProvider) Name() string { return string(ProviderRAG) }

type ragRequest struct {
	PostID    int64  `json:"post_id"`
	Query     string `json:"query"`
	CityName  string `json:"city_name,omitempty"`
	WardName  string `json:"ward_name,omitempty"`
	ChomeName string `json:"chome_name,omitempty"`
}

type ragResponse struct {
	Answer  string         `json:"answer"`
	Sources []posts.Source `json:"sources"`
	Error   string         `json:"error"`
}

func (p *RAGProvider) Answer(ctx context.Context, q Query) (Result, error) {
	body, err := json.Marshal(ragRequest{
		PostID:    q.PostID,
		Query:     q.Text(),
		CityName:  q.City,
		WardName:  q.Ward,
		ChomeName: q.Chome,
	})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.key != "" {
		req.Header.Set("Authorization", "Bearer "+p.key)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Result{}, fmt.Errorf("%w: read response: %w", ErrProviderFailed, err)
	}

	var out ragResponse
	decodeErr := json.Unmarshal(raw, &out)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Result{}, fmt.Errorf("%w: status %d: %s", ErrProviderFailed, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return Result{}, fmt.Errorf("%w: decode response: %w", ErrProviderFailed, decodeErr)
	}

	return normalizeResult(Result{Answer: out.Answer, Sources: out.Sources}), nil
}
