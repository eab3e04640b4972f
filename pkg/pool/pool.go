package pool

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// RefillFunc returns up to count fresh candidate terms.
type RefillFunc func(ctx context.Context, count int) ([]string, error)

// Pool is a date-scoped set of unused search terms backed by a Store.
type Pool struct {
	store    Store
	rand     *rand.Rand
	loadDate time.Time
	terms    []string

	mutex     sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

type Options struct {
	Rand *rand.Rand
}

type OptionFunc func(opts *Options)

// WithRand sets the random source used to shuffle refilled terms.
func WithRand(r *rand.Rand) OptionFunc {
	return func(opts *Options) {
		opts.Rand = r
	}
}

// Open loads the persisted state of the given store.
func Open(ctx context.Context, store Store, funcs ...OptionFunc) (*Pool, error) {
	opts := &Options{
		Rand: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, fn := range funcs {
		fn(opts)
	}

	state, err := store.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not load term pool")
	}

	return &Pool{
		store:    store,
		rand:     opts.Rand,
		loadDate: state.LoadDate,
		terms:    slices.Clone(state.Terms),
	}, nil
}

// EnsureFresh rebuilds the pool if it was never loaded or was loaded before
// today. The previous state is kept untouched when refill fails.
func (p *Pool) EnsureFresh(ctx context.Context, today time.Time, count int, refill RefillFunc) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	today = Day(today)

	if !p.loadDate.IsZero() && !dayBefore(p.loadDate, today) {
		slog.DebugContext(ctx, "term pool is fresh", slog.Time("load_date", p.loadDate), slog.Int("size", len(p.terms)))
		return nil
	}

	return p.rebuild(ctx, today, count, refill)
}

// Refresh rebuilds the pool whatever its load date.
func (p *Pool) Refresh(ctx context.Context, today time.Time, count int, refill RefillFunc) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.rebuild(ctx, Day(today), count, refill)
}

func (p *Pool) rebuild(ctx context.Context, today time.Time, count int, refill RefillFunc) error {
	slog.InfoContext(ctx, "refreshing term pool", slog.Time("previous_load_date", p.loadDate), slog.Int("count", count))

	fresh, err := refill(ctx, count)
	if err != nil {
		return errors.Wrap(err, "could not refill term pool")
	}

	terms := Normalize(fresh)
	if len(terms) > count {
		terms = terms[:count]
	}

	p.rand.Shuffle(len(terms), func(i, j int) {
		terms[i], terms[j] = terms[j], terms[i]
	})

	if len(terms) < count {
		slog.WarnContext(ctx, "term pool refilled with fewer terms than requested", slog.Int("requested", count), slog.Int("obtained", len(terms)))
	}

	state := State{LoadDate: today, Terms: terms}

	if err := p.store.Save(ctx, state); err != nil {
		return errors.Wrap(err, "could not save term pool")
	}

	p.loadDate = today
	p.terms = slices.Clone(terms)

	slog.DebugContext(ctx, "term pool refreshed", slog.Any("terms", p.terms))

	return nil
}

// Clear drops every term and the load date, so the next EnsureFresh call
// rebuilds the pool.
func (p *Pool) Clear(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if err := p.store.Clear(ctx); err != nil {
		return errors.Wrap(err, "could not clear term store")
	}

	p.loadDate = time.Time{}
	p.terms = nil

	return nil
}

// PeekNext returns the oldest unused term without consuming it.
func (p *Pool) PeekNext() (string, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.terms) == 0 {
		return "", errors.WithStack(ErrEmptyPool)
	}

	return p.terms[0], nil
}

// Remove retires a consumed term.
func (p *Pool) Remove(ctx context.Context, term string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	idx := slices.Index(p.terms, term)
	if idx == -1 {
		return errors.Wrapf(ErrNotFound, "could not remove '%s'", term)
	}

	if err := p.store.Delete(ctx, term); err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrapf(err, "could not delete '%s' from store", term)
	}

	p.terms = slices.Delete(p.terms, idx, idx+1)

	return nil
}

func (p *Pool) Size() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return len(p.terms)
}

func (p *Pool) LoadDate() time.Time {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.loadDate
}

// Terms returns a copy of the unused terms in consumption order.
func (p *Pool) Terms() []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return slices.Clone(p.terms)
}

// Close releases the underlying store. Subsequent calls return the result of
// the first one.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = errors.WithStack(p.store.Close())
	})

	return p.closeErr
}

// Normalize lowercases and trims the given terms, dropping empty values and
// case-insensitive duplicates. The first occurrence wins.
func Normalize(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	normalized := make([]string, 0, len(terms))

	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}

		if _, exists := seen[t]; exists {
			continue
		}

		seen[t] = struct{}{}
		normalized = append(normalized, t)
	}

	return normalized
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func dayBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()

	if ay != by {
		return ay < by
	}

	if am != bm {
		return am < bm
	}

	return ad < bd
}
