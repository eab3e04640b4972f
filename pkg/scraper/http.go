package scraper

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

type HTTPScraper struct {
	client *http.Client
	opts   *Options
}

// Check implements scraper.Scraper.
func (s *HTTPScraper) Check(ctx context.Context, url string) (bool, error) {
	res, err := s.do(ctx, url)
	if err != nil {
		return false, errors.WithStack(err)
	}

	defer res.Body.Close()

	return isSuccess(res.StatusCode), nil
}

// Get implements scraper.Scraper.
func (s *HTTPScraper) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	res, err := s.do(ctx, url)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if !isSuccess(res.StatusCode) {
		defer res.Body.Close()

		body, err := io.ReadAll(io.LimitReader(res.Body, 4e+6)) // Restrict to 4MB
		if err != nil {
			return nil, errors.WithStack(err)
		}

		return nil, errors.WithStack(&StatusError{StatusCode: res.StatusCode, Status: res.Status, Body: body})
	}

	return res.Body, nil
}

func (s *HTTPScraper) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if s.opts.UserAgent != "" {
		req.Header.Set("User-Agent", s.opts.UserAgent)
	}

	if s.opts.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", s.opts.AcceptLanguage)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return res, nil
}

func isSuccess(statusCode int) bool {
	return statusCode >= http.StatusOK && statusCode < http.StatusBadRequest
}

func NewHTTPScraper(client *http.Client, funcs ...OptionFunc) *HTTPScraper {
	return &HTTPScraper{
		client: client,
		opts:   NewOptions(funcs...),
	}
}

var _ Scraper = &HTTPScraper{}
