package google

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bornholm/rewarder/pkg/scraper"
	"github.com/bornholm/rewarder/pkg/trend"
	"github.com/gocolly/colly"
	"github.com/pkg/errors"
)

// RSSSource reads the Google Trends "trending now" RSS feed. The feed only
// exposes the current trends, so the requested day is ignored.
type RSSSource struct {
	baseURL   string
	userAgent string
}

// DailyTrends implements trend.Source.
func (s *RSSSource) DailyTrends(ctx context.Context, locale trend.Locale, day time.Time) ([]trend.Trend, error) {
	feedURL, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	feedURL = feedURL.JoinPath("/trending/rss")

	query := feedURL.Query()
	query.Set("geo", locale.Geo)
	feedURL.RawQuery = query.Encode()

	slog.DebugContext(ctx, "fetching trends feed", slog.String("url", feedURL.String()))

	var trends []trend.Trend

	collector := colly.NewCollector(
		colly.UserAgent(s.userAgent),
	)

	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	})

	collector.OnRequest(func(r *colly.Request) {
		if locale.Language != "" {
			r.Headers.Set("Accept-Language", locale.Language)
		}
	})

	collector.OnXML("//item", func(e *colly.XMLElement) {
		title := strings.TrimSpace(e.ChildText("title"))
		if title == "" {
			return
		}

		trends = append(trends, trend.Trend{
			Title:          title,
			RelatedQueries: []string{},
		})
	})

	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := collector.Visit(feedURL.String()); err != nil {
		return nil, trend.NetworkError(errors.WithStack(err))
	}

	if trends == nil {
		return nil, trend.ParseError(errors.New("no item found in trends feed"))
	}

	return trends, nil
}

func NewRSSSource(baseURL string, userAgent string) *RSSSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	if userAgent == "" {
		userAgent = scraper.NewOptions().UserAgent
	}

	return &RSSSource{
		baseURL:   baseURL,
		userAgent: userAgent,
	}
}

var _ trend.Source = &RSSSource{}
