package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Scraper fetches remote documents on behalf of the trend and related terms
// providers.
type Scraper interface {
	Get(ctx context.Context, url string) (io.ReadCloser, error)
	Check(ctx context.Context, url string) (bool, error)
}

// StatusError is returned when the remote server answered with a non
// successful HTTP status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected response http status %d (%s):\n%s", e.StatusCode, e.Status, e.Body)
}

// Temporary reports whether retrying the request later could succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type Options struct {
	UserAgent      string
	AcceptLanguage string
}

type OptionFunc func(opts *Options)

func WithUserAgent(userAgent string) OptionFunc {
	return func(opts *Options) {
		opts.UserAgent = userAgent
	}
}

func WithAcceptLanguage(lang string) OptionFunc {
	return func(opts *Options) {
		opts.AcceptLanguage = lang
	}
}

func NewOptions(funcs ...OptionFunc) *Options {
	opts := &Options{
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36",
	}
	for _, fn := range funcs {
		fn(opts)
	}

	return opts
}
