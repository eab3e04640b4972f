package trend

import (
	"context"
	"time"
)

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, locale Locale, day time.Time) ([]Trend, error)

// DailyTrends implements Source.
func (fn SourceFunc) DailyTrends(ctx context.Context, locale Locale, day time.Time) ([]Trend, error) {
	return fn(ctx, locale, day)
}

var _ Source = SourceFunc(nil)
