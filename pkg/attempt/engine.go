package attempt

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/bornholm/rewarder/internal/logx"
	"github.com/bornholm/rewarder/pkg/progress"
	"github.com/bornholm/rewarder/pkg/related"
	"github.com/pkg/errors"
)

var ErrQueryMismatch = errors.New("query field does not hold the submitted text")

const (
	DefaultMaxAttempts   = 6
	DefaultBaseDelay     = 60 * time.Second
	DefaultMaxEntryTries = 100
	// MaxJitter bounds the random seconds added to each retry delay.
	MaxJitter = 10
)

type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	case <-timer.C:
		return nil
	}
}

type Config struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	Strategy      Strategy
	MaxEntryTries int
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:   DefaultMaxAttempts,
		BaseDelay:     DefaultBaseDelay,
		Strategy:      StrategyConstant,
		MaxEntryTries: DefaultMaxEntryTries,
	}
}

type EngineOptions struct {
	Config Config
	Sleep  SleepFunc
	Rand   *rand.Rand
	Now    func() time.Time
}

type EngineOptionFunc func(opts *EngineOptions)

func NewEngineOptions(funcs ...EngineOptionFunc) *EngineOptions {
	opts := &EngineOptions{
		Config: DefaultConfig(),
		Sleep:  Sleep,
		Rand:   rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		Now:    time.Now,
	}

	for _, fn := range funcs {
		fn(opts)
	}

	return opts
}

func WithConfig(config Config) EngineOptionFunc {
	return func(opts *EngineOptions) {
		if config.MaxAttempts <= 0 {
			config.MaxAttempts = DefaultMaxAttempts
		}

		if config.BaseDelay < 0 {
			config.BaseDelay = 0
		}

		if config.MaxEntryTries <= 0 {
			config.MaxEntryTries = DefaultMaxEntryTries
		}

		opts.Config = config
	}
}

func WithSleep(sleep SleepFunc) EngineOptionFunc {
	return func(opts *EngineOptions) {
		opts.Sleep = sleep
	}
}

func WithRand(rnd *rand.Rand) EngineOptionFunc {
	return func(opts *EngineOptions) {
		opts.Rand = rnd
	}
}

func WithNow(now func() time.Time) EngineOptionFunc {
	return func(opts *EngineOptions) {
		opts.Now = now
	}
}

// Engine turns a seed term into one logical search, retrying with related
// terms until the points balance increases or the attempts run out.
type Engine struct {
	search  SearchInterface
	related related.Provider
	opts    *EngineOptions
}

func NewEngine(search SearchInterface, provider related.Provider, funcs ...EngineOptionFunc) *Engine {
	return &Engine{
		search:  search,
		related: provider,
		opts:    NewEngineOptions(funcs...),
	}
}

func (e *Engine) Config() Config {
	return e.opts.Config
}

// Points reads the current balance from the search interface.
func (e *Engine) Points(ctx context.Context) (int, error) {
	points, err := e.search.Points(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	return points, nil
}

// Execute runs one logical search for term. Running out of attempts is
// reported through the outcome status, not as an error. Errors are only
// returned when the initial balance cannot be read or ctx is done.
func (e *Engine) Execute(ctx context.Context, term string) (Outcome, error) {
	config := e.opts.Config

	outcome := Outcome{
		Term:      term,
		Status:    StatusExhausted,
		StartedAt: e.opts.Now(),
		Queries:   make([]string, 0, config.MaxAttempts),
	}

	pointsBefore, err := e.search.Points(ctx)
	if err != nil {
		return outcome, errors.Wrap(err, "could not read points before search")
	}

	outcome.PointsBefore = pointsBefore
	outcome.Points = pointsBefore

	candidates := NewCycle(e.relatedTerms(ctx, term), term)

	slog.DebugContext(ctx, "search candidates ready", slog.String("term", term), slog.Int("candidates", candidates.Len()))

	tracker := progress.NewTracker(ctx)

	for attemptIndex := 0; attemptIndex < config.MaxAttempts; attemptIndex++ {
		if err := ctx.Err(); err != nil {
			outcome.FinishedAt = e.opts.Now()
			return outcome, errors.WithStack(err)
		}

		candidate := candidates.Next()

		attemptCtx := slogContext(ctx, term, candidate, attemptIndex, config.MaxAttempts)

		// Attempt counters stay out of the session completion ratio.
		tracker.Emit(progress.PhaseAttempting, candidate, 0, 0, map[string]any{
			"term":         term,
			"attempt":      attemptIndex + 1,
			"max_attempts": config.MaxAttempts,
		})

		outcome.Attempts++
		outcome.Queries = append(outcome.Queries, candidate)

		pointsAfter, err := e.attempt(attemptCtx, candidate)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				outcome.FinishedAt = e.opts.Now()
				return outcome, errors.WithStack(ctxErr)
			}

			slog.WarnContext(attemptCtx, "search attempt failed", slog.Any("error", err))

		case pointsAfter > pointsBefore:
			outcome.Status = StatusSuccess
			outcome.Points = pointsAfter
			outcome.FinishedAt = e.opts.Now()

			slog.DebugContext(attemptCtx, "search rewarded", slog.Int("points", pointsAfter))

			return outcome, nil

		default:
			slog.DebugContext(attemptCtx, "points did not increase", slog.Int("points", pointsAfter))
		}

		if attemptIndex == config.MaxAttempts-1 {
			break
		}

		delay := e.delay(attemptIndex)

		slog.DebugContext(attemptCtx, "search attempt not rewarded, retrying later", slog.Duration("delay", delay))

		if err := e.opts.Sleep(ctx, delay); err != nil {
			outcome.FinishedAt = e.opts.Now()
			return outcome, errors.WithStack(err)
		}
	}

	outcome.FinishedAt = e.opts.Now()

	slog.ErrorContext(ctx, "reached max search attempts", slog.String("term", term), slog.Int("attempts", outcome.Attempts))

	return outcome, nil
}

func (e *Engine) relatedTerms(ctx context.Context, term string) []string {
	if e.related == nil {
		return nil
	}

	terms, err := e.related.RelatedTerms(ctx, term)
	if err != nil {
		slog.WarnContext(ctx, "could not retrieve related terms, using seed term", slog.String("term", term), slog.Any("error", errors.WithStack(err)))
		return nil
	}

	return terms
}

func (e *Engine) attempt(ctx context.Context, candidate string) (int, error) {
	if err := e.enterQuery(ctx, candidate); err != nil {
		return 0, errors.WithStack(err)
	}

	if err := e.search.Submit(ctx); err != nil {
		return 0, errors.Wrap(err, "could not submit query")
	}

	points, err := e.search.Points(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "could not read points after search")
	}

	return points, nil
}

// enterQuery types the candidate until the query field holds it exactly,
// giving up silently after MaxEntryTries.
func (e *Engine) enterQuery(ctx context.Context, candidate string) error {
	maxTries := e.opts.Config.MaxEntryTries

	var lastErr error

	for try := 0; try < maxTries; try++ {
		if err := e.search.TypeQuery(ctx, candidate); err != nil {
			return errors.Wrap(err, "could not type query")
		}

		value, err := e.search.QueryValue(ctx)
		if err != nil {
			lastErr = errors.WithStack(err)
			continue
		}

		if value == candidate {
			return nil
		}

		lastErr = errors.Wrapf(ErrQueryMismatch, "expected '%s', got '%s'", candidate, value)
	}

	slog.DebugContext(ctx, "query entry never matched, submitting anyway", slog.Int("tries", maxTries), slog.Any("error", lastErr))

	return nil
}

func (e *Engine) delay(attemptIndex int) time.Duration {
	config := e.opts.Config
	jitter := time.Duration(e.opts.Rand.IntN(MaxJitter)+1) * time.Second

	nominal := config.Strategy.NominalDelay(config.BaseDelay, attemptIndex)
	if nominal > MaxDelay-jitter {
		return MaxDelay
	}

	return nominal + jitter
}

func slogContext(ctx context.Context, term, candidate string, attemptIndex, maxAttempts int) context.Context {
	return logx.WithAttrs(ctx,
		slog.String("term", term),
		slog.String("query", candidate),
		slog.Int("attempt", attemptIndex+1),
		slog.Int("max_attempts", maxAttempts),
	)
}
