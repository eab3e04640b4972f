package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bornholm/rewarder/internal/logx"
	"github.com/bornholm/rewarder/pkg/attempt"
	"github.com/bornholm/rewarder/pkg/pool"
	"github.com/bornholm/rewarder/pkg/progress"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Recorder is notified of every logical search outcome.
type Recorder interface {
	Record(ctx context.Context, outcome attempt.Outcome) error
}

type RecorderFunc func(ctx context.Context, outcome attempt.Outcome) error

func (fn RecorderFunc) Record(ctx context.Context, outcome attempt.Outcome) error {
	return fn(ctx, outcome)
}

// Executor runs one logical search.
type Executor interface {
	Points(ctx context.Context) (int, error)
	Execute(ctx context.Context, term string) (attempt.Outcome, error)
}

var _ Executor = &attempt.Engine{}

// Report summarizes a finished session.
type Report struct {
	StartingPoints int
	FinalPoints    int
	Succeeded      int
	Exhausted      int
	Outcomes       []attempt.Outcome
}

// Failed returns true if at least one logical search ran out of attempts.
func (r Report) Failed() bool {
	return r.Exhausted > 0
}

// Session performs a target number of logical searches, consuming the
// terms of the pool.
type Session struct {
	pool     *pool.Pool
	executor Executor
	opts     *Options
}

func New(p *pool.Pool, executor Executor, funcs ...OptionFunc) *Session {
	return &Session{
		pool:     p,
		executor: executor,
		opts:     NewOptions(funcs...),
	}
}

// Run performs target logical searches. The pool is closed when Run
// returns, whatever the outcome.
func (s *Session) Run(ctx context.Context, target int) (report Report, err error) {
	defer func() {
		if closeErr := s.pool.Close(); closeErr != nil {
			err = multierror.Append(err, errors.Wrap(closeErr, "could not close term pool"))
		}
	}()

	tracker := progress.NewTracker(ctx)

	if s.opts.Refill != nil {
		tracker.Emit(progress.PhaseRefreshing, "refreshing terms pool", 0, target, nil)

		if err := s.pool.EnsureFresh(ctx, s.opts.Now(), s.opts.PoolSize, s.opts.Refill); err != nil {
			return report, errors.Wrap(err, "could not refresh term pool")
		}
	}

	startingPoints, err := s.executor.Points(ctx)
	if err != nil {
		return report, errors.Wrap(err, "could not read starting points")
	}

	report.StartingPoints = startingPoints
	report.FinalPoints = startingPoints
	report.Outcomes = make([]attempt.Outcome, 0, target)

	slog.InfoContext(ctx, "starting searches", slog.Int("target", target), slog.Int("points", startingPoints), slog.Int("pool_size", s.pool.Size()))

	for i := 1; i <= target; i++ {
		term, err := s.pool.PeekNext()
		if err != nil {
			return report, errors.Wrapf(err, "could not pick term for search %d/%d", i, target)
		}

		searchCtx := logx.WithAttrs(ctx, slog.String("search", fmt.Sprintf("%d/%d", i, target)))

		slog.InfoContext(searchCtx, "searching", slog.String("term", term))

		tracker.Emit(progress.PhaseSearching, term, i-1, target, nil)

		outcome, err := s.executor.Execute(searchCtx, term)
		if err != nil {
			return report, errors.Wrapf(err, "search %d/%d failed", i, target)
		}

		report.Outcomes = append(report.Outcomes, outcome)

		slog.InfoContext(searchCtx, "search finished",
			slog.String("term", term),
			slog.String("status", outcome.Status.String()),
			slog.Int("attempts", outcome.Attempts),
			slog.Duration("duration", outcome.Duration().Round(time.Second)),
		)

		if outcome.Succeeded() {
			report.Succeeded++

			if err := s.pool.Remove(ctx, term); err != nil {
				return report, errors.Wrapf(err, "could not remove term '%s'", term)
			}
		} else {
			report.Exhausted++
		}

		report.FinalPoints = outcome.Points

		if s.opts.Recorder != nil {
			if err := s.opts.Recorder.Record(searchCtx, outcome); err != nil {
				slog.WarnContext(searchCtx, "could not record search outcome", slog.Any("error", errors.WithStack(err)))
			}
		}

		if i == target {
			break
		}

		delay := s.pacingDelay()

		tracker.Emit(progress.PhasePacing, term, i, target, map[string]any{
			"delay": delay,
		})

		if err := s.opts.Sleep(ctx, delay); err != nil {
			return report, errors.WithStack(err)
		}
	}

	tracker.Emit(progress.PhaseCompleted, "searches completed", target, target, map[string]any{
		"points":    report.FinalPoints,
		"succeeded": report.Succeeded,
		"exhausted": report.Exhausted,
	})

	slog.InfoContext(ctx, "searches completed",
		slog.Int("points", report.FinalPoints),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("exhausted", report.Exhausted),
	)

	return report, nil
}

func (s *Session) pacingDelay() time.Duration {
	lower, upper := s.opts.MinPacing, s.opts.MaxPacing
	if upper <= lower {
		return lower
	}

	return lower + time.Duration(s.opts.Rand.Int64N(int64(upper-lower)+1))
}
