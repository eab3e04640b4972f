package pool

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrEmptyPool = errors.New("term pool is empty")
	ErrNotFound  = errors.New("term not found")
)

// State is the persisted content of a term pool.
type State struct {
	// LoadDate is the calendar date of the last successful refresh. The zero
	// value means the pool was never loaded.
	LoadDate time.Time
	// Terms holds the unused terms in insertion order.
	Terms []string
}

// Store persists the pool state across process runs.
//
// Implementations are not required to support concurrent writers: a store
// must be owned by a single session at a time.
type Store interface {
	Load(ctx context.Context) (State, error)
	// Save replaces the whole persisted state.
	Save(ctx context.Context, state State) error
	Clear(ctx context.Context) error
	// Delete removes a single term, returning ErrNotFound if it is absent.
	Delete(ctx context.Context, term string) error
	Close() error
}
