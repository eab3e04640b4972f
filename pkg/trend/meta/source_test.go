package meta

import (
	"context"
	"testing"
	"time"

	"github.com/bornholm/rewarder/pkg/trend"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func static(trends ...trend.Trend) trend.Source {
	return trend.SourceFunc(func(ctx context.Context, locale trend.Locale, day time.Time) ([]trend.Trend, error) {
		return trends, nil
	})
}

func failing(msg string) trend.Source {
	return trend.SourceFunc(func(ctx context.Context, locale trend.Locale, day time.Time) ([]trend.Trend, error) {
		return nil, trend.NetworkError(errors.New(msg))
	})
}

func TestSourceMergesInOrder(t *testing.T) {
	source := NewSource(
		static(trend.Trend{Title: "Weather"}, trend.Trend{Title: "News"}),
		failing("down"),
		static(trend.Trend{Title: "weather"}, trend.Trend{Title: "Stocks"}),
	)

	trends, err := source.DailyTrends(context.Background(), trend.Locale{}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, []trend.Trend{{Title: "Weather"}, {Title: "News"}, {Title: "Stocks"}}, trends)
}

func TestSourceAllFailing(t *testing.T) {
	source := NewSource(failing("first"), failing("second"))

	_, err := source.DailyTrends(context.Background(), trend.Locale{}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "second")
}
