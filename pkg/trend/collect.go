package trend

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// Collector gathers unique lowercase search terms from a Source, walking
// backward one day at a time from the day before Today.
type Collector struct {
	source      Source
	locale      Locale
	exclude     []glob.Glob
	maxDays     int
	maxIdleDays int
	now         func() time.Time
}

type CollectorOptions struct {
	// Exclude lists glob patterns of terms that must never be collected.
	Exclude []string
	// MaxDays bounds the number of days walked backward.
	MaxDays int
	// MaxIdleDays stops the walk after this many consecutive days without
	// any new term.
	MaxIdleDays int
	Now         func() time.Time
}

type CollectorOptionFunc func(opts *CollectorOptions)

func WithExclude(patterns ...string) CollectorOptionFunc {
	return func(opts *CollectorOptions) {
		opts.Exclude = append(opts.Exclude, patterns...)
	}
}

func WithMaxDays(days int) CollectorOptionFunc {
	return func(opts *CollectorOptions) {
		opts.MaxDays = days
	}
}

func WithMaxIdleDays(days int) CollectorOptionFunc {
	return func(opts *CollectorOptions) {
		opts.MaxIdleDays = days
	}
}

func WithNow(now func() time.Time) CollectorOptionFunc {
	return func(opts *CollectorOptions) {
		opts.Now = now
	}
}

func NewCollector(source Source, locale Locale, funcs ...CollectorOptionFunc) (*Collector, error) {
	opts := &CollectorOptions{
		MaxDays:     30,
		MaxIdleDays: 3,
		Now:         time.Now,
	}
	for _, fn := range funcs {
		fn(opts)
	}

	exclude := make([]glob.Glob, 0, len(opts.Exclude))
	for _, p := range opts.Exclude {
		pattern, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid exclude pattern '%s'", p)
		}

		exclude = append(exclude, pattern)
	}

	return &Collector{
		source:      source,
		locale:      locale,
		exclude:     exclude,
		maxDays:     opts.MaxDays,
		maxIdleDays: opts.MaxIdleDays,
		now:         opts.Now,
	}, nil
}

// Collect returns at most count unique lowercase terms. Fewer terms are
// returned when the source runs dry. Failing days are skipped.
func (c *Collector) Collect(ctx context.Context, count int) ([]string, error) {
	terms := make([]string, 0, count)
	seen := make(map[string]struct{}, count)

	add := func(raw string) bool {
		term := strings.ToLower(strings.TrimSpace(raw))
		if term == "" {
			return false
		}

		if _, exists := seen[term]; exists {
			return false
		}

		if c.excluded(term) {
			slog.DebugContext(ctx, "excluding term", slog.String("term", term))
			return false
		}

		seen[term] = struct{}{}
		terms = append(terms, term)

		return true
	}

	today := c.now()
	idle := 0

	for i := 1; len(terms) < count; i++ {
		if c.maxDays > 0 && i > c.maxDays {
			slog.WarnContext(ctx, "trend history exhausted", slog.Int("days", c.maxDays), slog.Int("collected", len(terms)), slog.Int("requested", count))
			break
		}

		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(err)
		}

		day := today.AddDate(0, 0, -i)

		trends, err := c.source.DailyTrends(ctx, c.locale, day)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errors.WithStack(ctxErr)
			}

			slog.WarnContext(ctx, "could not fetch daily trends, skipping day", slog.Time("day", day), slog.Any("error", errors.WithStack(err)))
		}

		added := 0
		for _, t := range trends {
			if add(t.Title) {
				added++
			}

			for _, q := range t.RelatedQueries {
				if add(q) {
					added++
				}
			}
		}

		slog.DebugContext(ctx, "collected daily trends", slog.Time("day", day), slog.Int("added", added), slog.Int("total", len(terms)))

		if added == 0 {
			idle++
			if c.maxIdleDays > 0 && idle >= c.maxIdleDays {
				slog.WarnContext(ctx, "trend source stopped yielding new terms", slog.Int("idle_days", idle), slog.Int("collected", len(terms)), slog.Int("requested", count))
				break
			}
		} else {
			idle = 0
		}
	}

	if len(terms) > count {
		terms = terms[:count]
	}

	return terms, nil
}

func (c *Collector) excluded(term string) bool {
	for _, p := range c.exclude {
		if p.Match(term) {
			return true
		}
	}

	return false
}
