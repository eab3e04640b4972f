package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/bornholm/rewarder/pkg/attempt"
	"github.com/bornholm/rewarder/pkg/session"
	"github.com/gosimple/slug"
	"github.com/pkg/errors"
)

const DefaultLimit = 20

// Entry is a past logical search.
type Entry struct {
	ID           string    `json:"id"`
	Term         string    `json:"term"`
	Queries      []string  `json:"queries"`
	Status       string    `json:"status"`
	Points       int       `json:"points"`
	PointsBefore int       `json:"points_before"`
	Attempts     int       `json:"attempts"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Score        float64   `json:"-"`
}

// Gained returns the number of points earned by the search.
func (e Entry) Gained() int {
	if e.Points < e.PointsBefore {
		return 0
	}

	return e.Points - e.PointsBefore
}

// document is the indexed form of an entry. The full entry is kept in the
// raw stored field.
type document struct {
	Term       string    `json:"term"`
	Queries    []string  `json:"queries"`
	Status     string    `json:"status"`
	FinishedAt time.Time `json:"finished_at"`
	Raw        string    `json:"raw"`
}

// Index stores search outcomes in a full-text index.
type Index struct {
	index bleve.Index
	mutex sync.RWMutex
}

// Open opens the index at path, creating it if it does not exist yet.
func Open(path string) (*Index, error) {
	index, err := bleve.Open(path)
	if err != nil {
		if !errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			return nil, errors.Wrapf(err, "could not open history index '%s'", path)
		}

		index, err = bleve.New(path, newIndexMapping())
		if err != nil {
			return nil, errors.Wrapf(err, "could not create history index '%s'", path)
		}
	}

	return &Index{index: index}, nil
}

// OpenMemory creates an index that lives only in memory.
func OpenMemory() (*Index, error) {
	index, err := bleve.NewMemOnly(newIndexMapping())
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &Index{index: index}, nil
}

func newIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()

	termFieldMapping := bleve.NewTextFieldMapping()
	termFieldMapping.Store = false
	termFieldMapping.Index = true
	docMapping.AddFieldMappingsAt("term", termFieldMapping)

	queriesFieldMapping := bleve.NewTextFieldMapping()
	queriesFieldMapping.Store = false
	queriesFieldMapping.Index = true
	docMapping.AddFieldMappingsAt("queries", queriesFieldMapping)

	statusFieldMapping := bleve.NewKeywordFieldMapping()
	statusFieldMapping.Store = false
	statusFieldMapping.Index = true
	docMapping.AddFieldMappingsAt("status", statusFieldMapping)

	finishedAtFieldMapping := bleve.NewDateTimeFieldMapping()
	finishedAtFieldMapping.Store = false
	finishedAtFieldMapping.Index = true
	docMapping.AddFieldMappingsAt("finished_at", finishedAtFieldMapping)

	rawFieldMapping := bleve.NewTextFieldMapping()
	rawFieldMapping.Store = true
	rawFieldMapping.Index = false
	rawFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("raw", rawFieldMapping)

	indexMapping.DefaultMapping = docMapping

	return indexMapping
}

// Record implements session.Recorder.
func (i *Index) Record(ctx context.Context, outcome attempt.Outcome) error {
	entry := Entry{
		Term:         outcome.Term,
		Queries:      outcome.Queries,
		Status:       outcome.Status.String(),
		Points:       outcome.Points,
		PointsBefore: outcome.PointsBefore,
		Attempts:     outcome.Attempts,
		StartedAt:    outcome.StartedAt,
		FinishedAt:   outcome.FinishedAt,
	}

	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = time.Now()
	}

	return i.Add(entry)
}

// Add indexes entry, generating its identifier when empty.
func (i *Index) Add(entry Entry) error {
	if entry.ID == "" {
		entry.ID = fmt.Sprintf("%d-%s", entry.FinishedAt.UnixNano(), slug.Make(entry.Term))
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return errors.WithStack(err)
	}

	doc := document{
		Term:       entry.Term,
		Queries:    entry.Queries,
		Status:     entry.Status,
		FinishedAt: entry.FinishedAt,
		Raw:        string(raw),
	}

	i.mutex.Lock()
	defer i.mutex.Unlock()

	if err := i.index.Index(entry.ID, doc); err != nil {
		return errors.Wrapf(err, "could not index entry '%s'", entry.ID)
	}

	return nil
}

// Search returns the entries matching query, most recent first. An empty
// query matches every entry.
func (i *Index) Search(query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var searchRequest *bleve.SearchRequest
	if query == "" {
		searchRequest = bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	} else {
		searchRequest = bleve.NewSearchRequest(bleve.NewQueryStringQuery(query))
	}

	searchRequest.Size = limit
	searchRequest.Fields = []string{"raw"}
	searchRequest.SortBy([]string{"-finished_at"})

	i.mutex.RLock()
	defer i.mutex.RUnlock()

	searchResults, err := i.index.Search(searchRequest)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	entries := make([]Entry, 0, len(searchResults.Hits))
	for _, hit := range searchResults.Hits {
		raw, ok := hit.Fields["raw"].(string)
		if !ok {
			continue
		}

		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, errors.Wrapf(err, "could not decode entry '%s'", hit.ID)
		}

		entry.Score = hit.Score

		entries = append(entries, entry)
	}

	return entries, nil
}

func (i *Index) Count() (uint64, error) {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	count, err := i.index.DocCount()
	if err != nil {
		return 0, errors.WithStack(err)
	}

	return count, nil
}

func (i *Index) Close() error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	return errors.WithStack(i.index.Close())
}

var _ session.Recorder = &Index{}
