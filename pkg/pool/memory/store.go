package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/bornholm/rewarder/pkg/pool"
	"github.com/pkg/errors"
)

// Store keeps the pool state in memory. Nothing survives the process.
type Store struct {
	mutex  sync.Mutex
	state  pool.State
	closed int
}

// Load implements pool.Store.
func (s *Store) Load(ctx context.Context) (pool.State, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return pool.State{
		LoadDate: s.state.LoadDate,
		Terms:    slices.Clone(s.state.Terms),
	}, nil
}

// Save implements pool.Store.
func (s *Store) Save(ctx context.Context, state pool.State) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.state = pool.State{
		LoadDate: state.LoadDate,
		Terms:    slices.Clone(state.Terms),
	}

	return nil
}

// Clear implements pool.Store.
func (s *Store) Clear(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.state = pool.State{}

	return nil
}

// Delete implements pool.Store.
func (s *Store) Delete(ctx context.Context, term string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	idx := slices.Index(s.state.Terms, term)
	if idx == -1 {
		return errors.WithStack(pool.ErrNotFound)
	}

	s.state.Terms = slices.Delete(s.state.Terms, idx, idx+1)

	return nil
}

// Close implements pool.Store.
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.closed++

	return nil
}

// Closed returns how many times Close was called.
func (s *Store) Closed() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.closed
}

func NewStore(initial ...pool.State) *Store {
	s := &Store{}
	if len(initial) > 0 {
		s.state = pool.State{
			LoadDate: initial[0].LoadDate,
			Terms:    slices.Clone(initial[0].Terms),
		}
	}

	return s
}

var _ pool.Store = &Store{}
