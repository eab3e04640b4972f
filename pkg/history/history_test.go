package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bornholm/rewarder/pkg/attempt"
	"github.com/bornholm/rewarder/pkg/history"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outcome(term string, status attempt.Status, queries []string, finishedAt time.Time) attempt.Outcome {
	return attempt.Outcome{
		Term:         term,
		Status:       status,
		Points:       12,
		PointsBefore: 10,
		Attempts:     len(queries),
		Queries:      queries,
		StartedAt:    finishedAt.Add(-time.Minute),
		FinishedAt:   finishedAt,
	}
}

func TestIndexRecordAndSearch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.bleve")

	index, err := history.Open(path)
	require.NoError(t, err)

	ctx := context.Background()
	base := time.Date(2024, 5, 12, 9, 0, 0, 0, time.UTC)

	require.NoError(t, index.Record(ctx, outcome("weather", attempt.StatusSuccess, []string{"weather today"}, base)))
	require.NoError(t, index.Record(ctx, outcome("stocks", attempt.StatusExhausted, []string{"stock price", "stocks to buy"}, base.Add(time.Hour))))
	require.NoError(t, index.Record(ctx, outcome("weather radar", attempt.StatusSuccess, []string{"weather radar"}, base.Add(2*time.Hour))))

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	all, err := index.Search("", 10)
	require.NoError(t, err)

	if testing.Verbose() {
		t.Logf("entries: %s", spew.Sdump(all))
	}

	require.Len(t, all, 3)
	assert.Equal(t, "weather radar", all[0].Term)
	assert.Equal(t, "weather", all[2].Term)
	assert.Equal(t, 2, all[2].Gained())

	weather, err := index.Search("term:weather", 10)
	require.NoError(t, err)
	assert.Len(t, weather, 2)

	exhausted, err := index.Search("status:exhausted", 10)
	require.NoError(t, err)
	require.Len(t, exhausted, 1)
	assert.Equal(t, "stocks", exhausted[0].Term)
	assert.Equal(t, []string{"stock price", "stocks to buy"}, exhausted[0].Queries)

	require.NoError(t, index.Close())

	reopened, err := history.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	limited, err := reopened.Search("", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "weather radar", limited[0].Term)
}

func TestMemoryIndex(t *testing.T) {
	index, err := history.OpenMemory()
	require.NoError(t, err)
	defer index.Close()

	entries, err := index.Search("", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, index.Add(history.Entry{Term: "news", Status: "success", FinishedAt: time.Now()}))

	entries, err = index.Search("news", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
}
