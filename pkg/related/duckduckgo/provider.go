package duckduckgo

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/bornholm/rewarder/pkg/related"
	"github.com/bornholm/rewarder/pkg/scraper"
	"github.com/pkg/errors"
)

const DefaultBaseURL = "https://duckduckgo.com"

// Provider reads the DuckDuckGo autocomplete endpoint.
type Provider struct {
	scraper scraper.Scraper
	baseURL string
}

// RelatedTerms implements related.Provider.
func (p *Provider) RelatedTerms(ctx context.Context, word string) ([]string, error) {
	endpoint, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	endpoint = endpoint.JoinPath("/ac/")

	query := endpoint.Query()
	query.Set("q", word)
	query.Set("type", "list")
	endpoint.RawQuery = query.Encode()

	slog.DebugContext(ctx, "fetching duckduckgo suggestions", slog.String("url", endpoint.String()))

	terms, err := related.FetchOpenSearch(ctx, p.scraper, endpoint.String())
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return terms, nil
}

func NewProvider(scraper scraper.Scraper, baseURL string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Provider{
		scraper: scraper,
		baseURL: baseURL,
	}
}

var _ related.Provider = &Provider{}
