package bing

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/bornholm/rewarder/pkg/related"
	"github.com/bornholm/rewarder/pkg/scraper"
	"github.com/pkg/errors"
)

const DefaultBaseURL = "https://api.bing.com"

// Provider reads the Bing OpenSearch suggestions endpoint.
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

	endpoint = endpoint.JoinPath("/osjson.aspx")

	query := endpoint.Query()
	query.Set("query", word)
	endpoint.RawQuery = query.Encode()

	slog.DebugContext(ctx, "fetching bing suggestions", slog.String("url", endpoint.String()))

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
