package surf

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/bornholm/rewarder/pkg/scraper"
	"github.com/enetx/g"
	"github.com/enetx/surf"
	"github.com/pkg/errors"
)

// Scraper fetches documents with a client impersonating a desktop Chrome
// browser. The client session, and thus its cookies, is shared between calls.
type Scraper struct {
	timeout time.Duration
	once    sync.Once
	client  *surf.Client
}

// Check implements scraper.Scraper.
func (s *Scraper) Check(ctx context.Context, url string) (bool, error) {
	resp := s.getClient().Get(g.String(url)).WithContext(ctx).Do()
	if resp.IsErr() {
		return false, errors.WithStack(resp.Err())
	}

	return resp.IsOk(), nil
}

// Get implements scraper.Scraper.
func (s *Scraper) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	resp := s.getClient().Get(g.String(url)).WithContext(ctx).Do()
	if resp.IsErr() {
		return nil, errors.WithStack(resp.Err())
	}

	return resp.Ok().Body.Reader, nil
}

func (s *Scraper) getClient() *surf.Client {
	s.once.Do(func() {
		builder := surf.NewClient().
			Builder()

		if proxy := os.Getenv("HTTP_PROXY"); proxy != "" {
			builder = builder.Proxy(proxy)
		}

		builder = builder.Impersonate().RandomOS().Chrome().
			Timeout(s.timeout).
			Retry(3, 2).
			Session()

		s.client = builder.Build()
	})

	return s.client
}

func NewScraper(timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Scraper{timeout: timeout}
}

var _ scraper.Scraper = &Scraper{}
