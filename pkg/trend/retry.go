package trend

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
)

// Retry retries network failures of the wrapped source with an exponential
// backoff. Parse errors are returned immediately.
type Retry struct {
	source     Source
	baseDelay  time.Duration
	maxRetries int
}

// DailyTrends implements Source.
func (r *Retry) DailyTrends(ctx context.Context, locale Locale, day time.Time) ([]Trend, error) {
	backoff := r.baseDelay
	retries := 0
	for {
		trends, err := r.source.DailyTrends(ctx, locale, day)
		if err != nil {
			if errors.Is(err, ErrNetwork) && retries < r.maxRetries {
				slog.WarnContext(ctx, "trends fetch failed, will retry", slog.Duration("backoff", backoff), slog.Int("retries", retries), slog.Any("error", errors.WithStack(err)))

				timer := time.NewTimer(backoff + time.Duration(rand.Float64()*float64(r.baseDelay)))
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, errors.WithStack(ctx.Err())
				case <-timer.C:
				}

				backoff *= 2
				retries++
				continue
			}

			return nil, errors.WithStack(err)
		}

		return trends, nil
	}
}

var _ Source = &Retry{}

func WithRetry(source Source, maxRetries int, baseDelay time.Duration) *Retry {
	return &Retry{source: source, maxRetries: maxRetries, baseDelay: baseDelay}
}
