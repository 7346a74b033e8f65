package regions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/okayama-voice/opinion-map/internal/config"
)

// ErrLoadFailed marks a boundary dataset that could not be fetched or decoded.
// A tier that loads fine but keeps zero features is not an error.
var ErrLoadFailed = errors.New("boundary data could not be loaded")

// Source yields the raw feature-collection document of one tier.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

// HTTPSource fetches a dataset over HTTP. Any non-2xx status is a load failure.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s HTTPSource) String() string { return s.URL }

func (s HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrLoadFailed, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", ErrLoadFailed, s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrLoadFailed, s.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrLoadFailed, s.URL, err)
	}
	return body, nil
}

// FileSource reads a dataset from disk.
type FileSource struct {
	Path string
}

func (s FileSource) String() string { return s.Path }

func (s FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return b, nil
}

// SourceFor picks an HTTP source for http(s) URLs and a file source otherwise.
func SourceFor(location string) Source {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return HTTPSource{URL: location}
	}
	return FileSource{Path: strings.TrimPrefix(location, "file://")}
}

// SpecsFromConfig builds the load specs of the configured tiers.
func SpecsFromConfig(tiers []config.TierConfig) ([]TierSpec, error) {
	specs := make([]TierSpec, 0, len(tiers))
	for _, tc := range tiers {
		t, err := ParseTier(tc.Tier)
		if err != nil {
			return nil, err
		}
		specs = append(specs, TierSpec{
			Tier:      t,
			Source:    SourceFor(tc.Source),
			NameField: tc.NameField,
			Color:     tc.Color,
		})
	}
	return specs, nil
}
