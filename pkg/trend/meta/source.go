package meta

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bornholm/rewarder/pkg/trend"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Source queries several sources concurrently and merges their trends,
// dropping case-insensitive duplicate titles. Results keep the order of the
// sources. An error is only returned when every source failed.
type Source struct {
	sources []trend.Source
}

// DailyTrends implements trend.Source.
func (s *Source) DailyTrends(ctx context.Context, locale trend.Locale, day time.Time) ([]trend.Trend, error) {
	results := make([][]trend.Trend, len(s.sources))

	var errLock sync.Mutex
	var aggregatedErr error
	failures := 0

	var wg sync.WaitGroup

	wg.Add(len(s.sources))

	for i, src := range s.sources {
		go func(i int, source trend.Source) {
			defer wg.Done()

			trends, err := source.DailyTrends(ctx, locale, day)
			if err != nil {
				errLock.Lock()
				aggregatedErr = multierror.Append(aggregatedErr, errors.WithStack(err))
				failures++
				errLock.Unlock()
				return
			}

			results[i] = trends
		}(i, src)
	}

	wg.Wait()

	if len(s.sources) > 0 && failures == len(s.sources) {
		return nil, aggregatedErr
	}

	merged := make([]trend.Trend, 0)
	seen := make(map[string]struct{})

	for _, trends := range results {
		for _, t := range trends {
			key := strings.ToLower(strings.TrimSpace(t.Title))
			if _, exists := seen[key]; exists {
				continue
			}

			seen[key] = struct{}{}
			merged = append(merged, t)
		}
	}

	return merged, nil
}

func NewSource(sources ...trend.Source) *Source {
	return &Source{
		sources: sources,
	}
}

var _ trend.Source = &Source{}
