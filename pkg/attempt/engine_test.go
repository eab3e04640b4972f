package attempt_test

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/bornholm/rewarder/pkg/attempt"
	"github.com/bornholm/rewarder/pkg/progress"
	"github.com/bornholm/rewarder/pkg/related"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearch struct {
	points    []int
	reads     int
	typed     []string
	submitted []string
	field     string
	// garble makes QueryValue return a corrupted value for the first n reads.
	garble int
}

func (s *fakeSearch) TypeQuery(ctx context.Context, text string) error {
	s.typed = append(s.typed, text)
	s.field = text
	return nil
}

func (s *fakeSearch) QueryValue(ctx context.Context) (string, error) {
	if s.garble > 0 {
		s.garble--
		return s.field + "x", nil
	}

	return s.field, nil
}

func (s *fakeSearch) Submit(ctx context.Context) error {
	s.submitted = append(s.submitted, s.field)
	return nil
}

func (s *fakeSearch) Points(ctx context.Context) (int, error) {
	idx := s.reads
	if idx >= len(s.points) {
		idx = len(s.points) - 1
	}

	s.reads++

	return s.points[idx], nil
}

var _ attempt.SearchInterface = &fakeSearch{}

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func staticRelated(terms ...string) related.Provider {
	return related.ProviderFunc(func(ctx context.Context, word string) ([]string, error) {
		return terms, nil
	})
}

func newEngine(search attempt.SearchInterface, provider related.Provider, sleeper *sleepRecorder, config attempt.Config) *attempt.Engine {
	return attempt.NewEngine(search, provider,
		attempt.WithConfig(config),
		attempt.WithSleep(sleeper.Sleep),
		attempt.WithRand(rand.New(rand.NewPCG(1, 2))),
	)
}

func TestExecuteRetryBound(t *testing.T) {
	search := &fakeSearch{points: []int{10}}
	sleeper := &sleepRecorder{}

	engine := newEngine(search, staticRelated("weather today", "weather tomorrow"), sleeper, attempt.Config{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
	})

	outcome, err := engine.Execute(context.Background(), "weather")
	require.NoError(t, err)

	if testing.Verbose() {
		t.Logf("outcome: %s", spew.Sdump(outcome))
	}

	assert.Equal(t, attempt.StatusExhausted, outcome.Status)
	assert.Equal(t, 10, outcome.Points)
	assert.Equal(t, 5, outcome.Attempts)
	assert.Len(t, search.submitted, 5)
	assert.Equal(t, []string{"weather today", "weather tomorrow", "weather today", "weather tomorrow", "weather today"}, search.submitted)

	// No sleep after the last attempt
	assert.Len(t, sleeper.delays, 4)
}

func TestExecuteSuccessShortCircuit(t *testing.T) {
	search := &fakeSearch{points: []int{5, 5, 5, 6}}
	sleeper := &sleepRecorder{}

	engine := newEngine(search, staticRelated("stock price"), sleeper, attempt.Config{
		MaxAttempts: 6,
		BaseDelay:   time.Second,
	})

	outcome, err := engine.Execute(context.Background(), "stocks")
	require.NoError(t, err)

	assert.True(t, outcome.Succeeded())
	assert.Equal(t, 6, outcome.Points)
	assert.Equal(t, 5, outcome.PointsBefore)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Len(t, search.submitted, 3)
	assert.Len(t, sleeper.delays, 2)
}

func TestExecuteEmptyRelatedTerms(t *testing.T) {
	search := &fakeSearch{points: []int{1}}
	sleeper := &sleepRecorder{}

	engine := newEngine(search, staticRelated(), sleeper, attempt.Config{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
	})

	outcome, err := engine.Execute(context.Background(), "news")
	require.NoError(t, err)

	assert.Equal(t, attempt.StatusExhausted, outcome.Status)
	assert.Equal(t, []string{"news", "news", "news", "news"}, search.submitted)
}

func TestExecuteRelatedTermsFailure(t *testing.T) {
	search := &fakeSearch{points: []int{1, 2}}
	sleeper := &sleepRecorder{}

	provider := related.ProviderFunc(func(ctx context.Context, word string) ([]string, error) {
		return nil, errors.New("unavailable")
	})

	engine := newEngine(search, provider, sleeper, attempt.DefaultConfig())

	outcome, err := engine.Execute(context.Background(), "news")
	require.NoError(t, err)

	assert.True(t, outcome.Succeeded())
	assert.Equal(t, []string{"news"}, search.submitted)
}

func TestExecuteExhaustedScenario(t *testing.T) {
	search := &fakeSearch{points: []int{42}}
	sleeper := &sleepRecorder{}

	engine := newEngine(search, staticRelated("weather today"), sleeper, attempt.Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
	})

	outcome, err := engine.Execute(context.Background(), "weather")
	require.NoError(t, err)

	assert.Equal(t, attempt.StatusExhausted, outcome.Status)
	assert.Equal(t, 42, outcome.Points)
	assert.Equal(t, 3, outcome.Attempts)
}

func TestExecuteConstantDelays(t *testing.T) {
	search := &fakeSearch{points: []int{0}}
	sleeper := &sleepRecorder{}

	engine := newEngine(search, staticRelated("a"), sleeper, attempt.Config{
		MaxAttempts: 6,
		BaseDelay:   60 * time.Second,
		Strategy:    attempt.StrategyConstant,
	})

	_, err := engine.Execute(context.Background(), "a")
	require.NoError(t, err)

	require.Len(t, sleeper.delays, 5)

	for _, d := range sleeper.delays {
		assert.GreaterOrEqual(t, d, 61*time.Second)
		assert.LessOrEqual(t, d, 70*time.Second)
	}
}

func TestExecuteExponentialDelays(t *testing.T) {
	search := &fakeSearch{points: []int{0}}
	sleeper := &sleepRecorder{}

	engine := newEngine(search, staticRelated("a"), sleeper, attempt.Config{
		MaxAttempts: 5,
		BaseDelay:   60 * time.Second,
		Strategy:    attempt.StrategyExponential,
	})

	_, err := engine.Execute(context.Background(), "a")
	require.NoError(t, err)

	require.Len(t, sleeper.delays, 4)

	for i, d := range sleeper.delays {
		nominal := (60 * time.Second) << i
		assert.Greater(t, d, nominal)
		assert.LessOrEqual(t, d, nominal+attempt.MaxJitter*time.Second)
	}
}

func TestNominalDelayMonotonicity(t *testing.T) {
	base := 60 * time.Second

	for k := 0; k < 8; k++ {
		current := attempt.StrategyExponential.NominalDelay(base, k)
		next := attempt.StrategyExponential.NominalDelay(base, k+1)
		assert.GreaterOrEqual(t, next, 2*current)

		assert.Equal(t, base, attempt.StrategyConstant.NominalDelay(base, k))
	}
}

func TestNominalDelaySaturates(t *testing.T) {
	base := 60 * time.Second

	previous := time.Duration(0)

	for k := 0; k < 70; k++ {
		current := attempt.StrategyExponential.NominalDelay(base, k)
		assert.Positive(t, current)
		assert.GreaterOrEqual(t, current, previous)

		previous = current
	}

	assert.Equal(t, attempt.MaxDelay, attempt.StrategyExponential.NominalDelay(base, 28))
	assert.Equal(t, attempt.MaxDelay, attempt.StrategyExponential.NominalDelay(base, 63))
}

func TestExecuteLongExponentialDelays(t *testing.T) {
	search := &fakeSearch{points: []int{0}}
	sleeper := &sleepRecorder{}

	engine := newEngine(search, staticRelated("a"), sleeper, attempt.Config{
		MaxAttempts: 31,
		BaseDelay:   60 * time.Second,
		Strategy:    attempt.StrategyExponential,
	})

	_, err := engine.Execute(context.Background(), "a")
	require.NoError(t, err)

	require.Len(t, sleeper.delays, 30)

	for i := 1; i < len(sleeper.delays); i++ {
		assert.Positive(t, sleeper.delays[i])
		assert.GreaterOrEqual(t, sleeper.delays[i], sleeper.delays[i-1])
	}

	assert.Equal(t, attempt.MaxDelay, sleeper.delays[len(sleeper.delays)-1])
}

func TestExecuteQueryMismatchBound(t *testing.T) {
	search := &fakeSearch{points: []int{0, 1}, garble: 1000}
	sleeper := &sleepRecorder{}

	engine := newEngine(search, staticRelated("weather today"), sleeper, attempt.Config{
		MaxAttempts:   2,
		BaseDelay:     time.Second,
		MaxEntryTries: 100,
	})

	outcome, err := engine.Execute(context.Background(), "weather")
	require.NoError(t, err)

	assert.True(t, outcome.Succeeded())
	assert.Len(t, search.typed, 100)
	assert.Len(t, search.submitted, 1)
}

func TestExecuteQueryMismatchRecovers(t *testing.T) {
	search := &fakeSearch{points: []int{0, 1}, garble: 3}
	sleeper := &sleepRecorder{}

	engine := newEngine(search, staticRelated("weather today"), sleeper, attempt.DefaultConfig())

	_, err := engine.Execute(context.Background(), "weather")
	require.NoError(t, err)

	assert.Len(t, search.typed, 4)
	assert.Equal(t, []string{"weather today"}, search.submitted)
}

type failingPoints struct {
	fakeSearch
}

func (s *failingPoints) Points(ctx context.Context) (int, error) {
	return 0, errors.New("balance not visible")
}

func TestExecuteInitialPointsError(t *testing.T) {
	search := &failingPoints{}
	sleeper := &sleepRecorder{}

	engine := newEngine(search, staticRelated("a"), sleeper, attempt.DefaultConfig())

	_, err := engine.Execute(context.Background(), "a")
	assert.Error(t, err)
	assert.Empty(t, search.submitted)
}

func TestExecuteCancelledSleep(t *testing.T) {
	search := &fakeSearch{points: []int{0}}

	engine := attempt.NewEngine(search, staticRelated("a"),
		attempt.WithConfig(attempt.Config{MaxAttempts: 3, BaseDelay: time.Hour}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	outcome, err := engine.Execute(ctx, "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, outcome.Attempts)
}

func TestParseStrategy(t *testing.T) {
	strategy, err := attempt.ParseStrategy("Exponential")
	require.NoError(t, err)
	assert.Equal(t, attempt.StrategyExponential, strategy)

	strategy, err = attempt.ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, attempt.StrategyConstant, strategy)

	_, err = attempt.ParseStrategy("linear")
	assert.ErrorIs(t, err, attempt.ErrUnknownStrategy)

	var s attempt.Strategy
	require.NoError(t, s.UnmarshalText([]byte("exponential")))
	assert.Equal(t, attempt.StrategyExponential, s)

	text, err := s.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "exponential", string(text))
}

func TestCycle(t *testing.T) {
	cycle := attempt.NewCycle([]string{"a", "b"}, "seed")

	got := []string{cycle.Next(), cycle.Next(), cycle.Next()}
	assert.Equal(t, []string{"a", "b", "a"}, got)
	assert.Equal(t, 2, cycle.Len())

	empty := attempt.NewCycle(nil, "seed")
	assert.Equal(t, "seed", empty.Next())
	assert.Equal(t, "seed", empty.Next())
	assert.Equal(t, 1, empty.Len())
}

func TestExecuteAttemptEvents(t *testing.T) {
	search := &fakeSearch{points: []int{3}}
	sleeper := &sleepRecorder{}

	var events []progress.Event
	ctx := progress.WithTracking(context.Background(), func(event progress.Event) {
		events = append(events, event)
	})

	engine := newEngine(search, staticRelated("stocks today"), sleeper, attempt.Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
	})

	_, err := engine.Execute(ctx, "stocks")
	require.NoError(t, err)

	require.Len(t, events, 3)

	for i, e := range events {
		assert.Equal(t, progress.PhaseAttempting, e.Phase)
		assert.Equal(t, "stocks today", e.Step)
		assert.Zero(t, e.Progress)
		assert.Equal(t, i+1, e.Details["attempt"])
		assert.Equal(t, 3, e.Details["max_attempts"])
		assert.Equal(t, "stocks", e.Details["term"])
	}
}

func TestExecuteOutcomeDuration(t *testing.T) {
	search := &fakeSearch{points: []int{7, 8}}

	clock := time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC)
	now := func() time.Time {
		clock = clock.Add(90 * time.Second)
		return clock
	}

	engine := attempt.NewEngine(search, staticRelated("news today"),
		attempt.WithSleep((&sleepRecorder{}).Sleep),
		attempt.WithNow(now),
	)

	outcome, err := engine.Execute(context.Background(), "news")
	require.NoError(t, err)

	assert.True(t, outcome.Succeeded())
	assert.Equal(t, 90*time.Second, outcome.Duration())
}
