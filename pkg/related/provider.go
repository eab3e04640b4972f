package related

import (
	"context"
	"io"
	"log/slog"

	"github.com/bornholm/rewarder/pkg/scraper"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// Provider returns query variants lexically related to a word, most relevant
// first. An empty result is valid.
type Provider interface {
	RelatedTerms(ctx context.Context, word string) ([]string, error)
}

type ProviderFunc func(ctx context.Context, word string) ([]string, error)

// RelatedTerms implements Provider.
func (fn ProviderFunc) RelatedTerms(ctx context.Context, word string) ([]string, error) {
	return fn(ctx, word)
}

// Fallback asks each provider in turn and returns the first non-empty
// result. Provider errors are logged and skipped.
type Fallback struct {
	providers []Provider
}

// RelatedTerms implements Provider.
func (f *Fallback) RelatedTerms(ctx context.Context, word string) ([]string, error) {
	var lastErr error

	for _, p := range f.providers {
		terms, err := p.RelatedTerms(ctx, word)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errors.WithStack(ctxErr)
			}

			slog.WarnContext(ctx, "related terms provider failed", slog.String("word", word), slog.Any("error", errors.WithStack(err)))
			lastErr = err
			continue
		}

		if len(terms) > 0 {
			return terms, nil
		}
	}

	if lastErr != nil {
		return nil, errors.WithStack(lastErr)
	}

	return []string{}, nil
}

func NewFallback(providers ...Provider) *Fallback {
	return &Fallback{providers: providers}
}

// FetchOpenSearch retrieves an OpenSearch suggestions document
// (["query", ["suggestion", ...]]) and returns its suggestions.
func FetchOpenSearch(ctx context.Context, s scraper.Scraper, url string) ([]string, error) {
	body, err := s.Get(ctx, url)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, 1e+6))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return ParseOpenSearch(data)
}

func ParseOpenSearch(data []byte) ([]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid suggestions json")
	}

	suggestions := gjson.GetBytes(data, "1")
	if !suggestions.IsArray() {
		return nil, errors.Errorf("unexpected suggestions document: %s", data)
	}

	terms := make([]string, 0)
	for _, s := range suggestions.Array() {
		if term := s.String(); term != "" {
			terms = append(terms, term)
		}
	}

	return terms, nil
}

var (
	_ Provider = ProviderFunc(nil)
	_ Provider = &Fallback{}
)
