package google

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/bornholm/rewarder/pkg/scraper"
	"github.com/bornholm/rewarder/pkg/trend"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const DefaultBaseURL = "https://trends.google.com"

// DailySource reads the Google Trends daily trends API.
type DailySource struct {
	scraper scraper.Scraper
	baseURL string
}

// DailyTrends implements trend.Source.
func (s *DailySource) DailyTrends(ctx context.Context, locale trend.Locale, day time.Time) ([]trend.Trend, error) {
	endpoint, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	endpoint = endpoint.JoinPath("/trends/api/dailytrends")

	query := endpoint.Query()
	query.Set("hl", locale.Language)
	query.Set("ed", day.Format("20060102"))
	query.Set("geo", locale.Geo)
	query.Set("ns", "15")
	endpoint.RawQuery = query.Encode()

	slog.DebugContext(ctx, "fetching daily trends", slog.String("url", endpoint.String()))

	body, err := s.scraper.Get(ctx, endpoint.String())
	if err != nil {
		var statusErr *scraper.StatusError
		if errors.As(err, &statusErr) && !statusErr.Temporary() {
			return nil, trend.ParseError(errors.WithStack(err))
		}

		return nil, trend.NetworkError(errors.WithStack(err))
	}

	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, trend.NetworkError(errors.WithStack(err))
	}

	return ParseDailyTrends(data)
}

// ParseDailyTrends decodes a daily trends payload, including its anti-XSSI
// prefix.
func ParseDailyTrends(data []byte) ([]trend.Trend, error) {
	start := bytes.IndexByte(data, '{')
	if start == -1 {
		return nil, trend.ParseError(errors.New("no json object in daily trends payload"))
	}

	data = data[start:]

	if !gjson.ValidBytes(data) {
		return nil, trend.ParseError(errors.New("invalid daily trends json"))
	}

	searches := gjson.GetBytes(data, "default.trendingSearchesDays.0.trendingSearches")
	if !searches.Exists() || !searches.IsArray() {
		return nil, trend.ParseError(errors.New("missing trending searches in daily trends payload"))
	}

	trends := make([]trend.Trend, 0)

	for _, s := range searches.Array() {
		title := s.Get("title.query").String()
		if title == "" {
			continue
		}

		related := make([]string, 0)
		for _, q := range s.Get("relatedQueries.#.query").Array() {
			related = append(related, q.String())
		}

		trends = append(trends, trend.Trend{
			Title:          title,
			RelatedQueries: related,
		})
	}

	return trends, nil
}

func NewDailySource(scraper scraper.Scraper, baseURL string) *DailySource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &DailySource{
		scraper: scraper,
		baseURL: baseURL,
	}
}

var _ trend.Source = &DailySource{}
