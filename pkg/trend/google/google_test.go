package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bornholm/rewarder/pkg/scraper"
	"github.com/bornholm/rewarder/pkg/trend"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dailyPayload = `)]}',
{"default":{"trendingSearchesDays":[{"date":"20240509","trendingSearches":[
	{"title":{"query":"Eurovision"},"relatedQueries":[{"query":"Eurovision 2024"},{"query":"eurovision semi final"}]},
	{"title":{"query":"Weather"},"relatedQueries":[]},
	{"title":{"query":""},"relatedQueries":[{"query":"ignored"}]}
]}]}}`

func TestDailySource(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trends/api/dailytrends", r.URL.Path)
		assert.Equal(t, "en", r.URL.Query().Get("hl"))
		assert.Equal(t, "US", r.URL.Query().Get("geo"))
		assert.Equal(t, "20240509", r.URL.Query().Get("ed"))
		assert.Equal(t, "15", r.URL.Query().Get("ns"))

		w.Write([]byte(dailyPayload))
	}))
	defer ts.Close()

	source := NewDailySource(scraper.NewHTTPScraper(ts.Client()), ts.URL)

	trends, err := source.DailyTrends(context.Background(), trend.Locale{Language: "en", Geo: "US"}, time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	if testing.Verbose() {
		spew.Dump(trends)
	}

	assert.Equal(t, []trend.Trend{
		{Title: "Eurovision", RelatedQueries: []string{"Eurovision 2024", "eurovision semi final"}},
		{Title: "Weather", RelatedQueries: []string{}},
	}, trends)
}

func TestDailySourceNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	source := NewDailySource(scraper.NewHTTPScraper(ts.Client()), ts.URL)

	_, err := source.DailyTrends(context.Background(), trend.Locale{}, time.Now())
	assert.ErrorIs(t, err, trend.ErrNetwork)
}

func TestDailySourcePermanentStatus(t *testing.T) {
	var calls atomic.Int32

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	source := trend.WithRetry(NewDailySource(scraper.NewHTTPScraper(ts.Client()), ts.URL), 3, time.Millisecond)

	_, err := source.DailyTrends(context.Background(), trend.Locale{}, time.Now())
	assert.ErrorIs(t, err, trend.ErrParse)
	assert.False(t, errors.Is(err, trend.ErrNetwork))
	assert.Equal(t, int32(1), calls.Load())
}

func TestParseDailyTrendsErrors(t *testing.T) {
	_, err := ParseDailyTrends([]byte("<html>blocked</html>"))
	assert.ErrorIs(t, err, trend.ErrParse)

	_, err = ParseDailyTrends([]byte(`)]}'` + "\n" + `{"default":{}}`))
	assert.ErrorIs(t, err, trend.ErrParse)

	_, err = ParseDailyTrends([]byte(`{"default": `))
	assert.ErrorIs(t, err, trend.ErrParse)
}

const rssPayload = `<?xml version="1.0" encoding="UTF-8"?>
<rss xmlns:ht="https://trends.google.com/trending/rss" version="2.0">
<channel>
<title>Daily Search Trends</title>
<item><title>Champions League</title><ht:approx_traffic>500+</ht:approx_traffic></item>
<item><title>Solar Eclipse</title></item>
</channel>
</rss>`

func TestRSSSource(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trending/rss", r.URL.Path)
		assert.Equal(t, "FR", r.URL.Query().Get("geo"))

		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		w.Write([]byte(rssPayload))
	}))
	defer ts.Close()

	source := NewRSSSource(ts.URL, "")

	trends, err := source.DailyTrends(context.Background(), trend.Locale{Language: "fr", Geo: "FR"}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, []trend.Trend{
		{Title: "Champions League", RelatedQueries: []string{}},
		{Title: "Solar Eclipse", RelatedQueries: []string{}},
	}, trends)
}
