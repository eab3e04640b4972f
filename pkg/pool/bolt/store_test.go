package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bornholm/rewarder/pkg/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := Open(dir, "Google Trends", time.Second)
	require.NoError(t, err)

	loadDate := time.Date(2024, 5, 3, 0, 0, 0, 0, time.Local)
	terms := []string{"zebra", "apple", "mango", "banana"}

	require.NoError(t, store.Save(ctx, pool.State{LoadDate: loadDate, Terms: terms}))
	require.NoError(t, store.Close())

	assert.FileExists(t, filepath.Join(dir, "google-trends.db"))

	store, err = Open(dir, "Google Trends", time.Second)
	require.NoError(t, err)
	defer store.Close()

	state, err := store.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, terms, state.Terms, "insertion order must survive reopening")
	assert.True(t, loadDate.Equal(state.LoadDate))
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()

	store, err := Open(t.TempDir(), "terms", time.Second)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(ctx, pool.State{LoadDate: time.Now(), Terms: []string{"a", "b", "c"}}))

	require.NoError(t, store.Delete(ctx, "b"))
	assert.ErrorIs(t, store.Delete(ctx, "b"), pool.ErrNotFound)

	state, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, state.Terms)
}

func TestStoreClear(t *testing.T) {
	ctx := context.Background()

	store, err := Open(t.TempDir(), "terms", time.Second)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(ctx, pool.State{LoadDate: time.Now(), Terms: []string{"a"}}))
	require.NoError(t, store.Clear(ctx))

	state, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.Terms)
	assert.True(t, state.LoadDate.IsZero())
}

func TestPoolOverBoltStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := Open(dir, "google_trends", time.Second)
	require.NoError(t, err)

	p, err := pool.Open(ctx, store)
	require.NoError(t, err)

	refill := func(ctx context.Context, count int) ([]string, error) {
		return []string{"Weather", "stocks", "weather"}, nil
	}

	require.NoError(t, p.EnsureFresh(ctx, time.Now(), 5, refill))

	term, err := p.PeekNext()
	require.NoError(t, err)
	require.NoError(t, p.Remove(ctx, term))
	require.NoError(t, p.Close())

	store, err = Open(dir, "google_trends", time.Second)
	require.NoError(t, err)

	p, err = pool.Open(ctx, store)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 1, p.Size())
	assert.NotContains(t, p.Terms(), term)
}
