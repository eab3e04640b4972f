package attempt

import (
	"context"
	"time"
)

// SearchInterface is the search page the engine drives.
type SearchInterface interface {
	// TypeQuery replaces the content of the query field with text.
	TypeQuery(ctx context.Context, text string) error
	// QueryValue reads back the current content of the query field.
	QueryValue(ctx context.Context) (string, error)
	// Submit submits the search form.
	Submit(ctx context.Context) error
	// Points reads the current reward points balance.
	Points(ctx context.Context) (int, error)
}

type Status int

const (
	StatusSuccess Status = iota
	StatusExhausted
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Outcome reports the result of one logical search.
type Outcome struct {
	Term   string
	Status Status
	// Points is the balance after the successful attempt, or the balance
	// observed before the first attempt when exhausted.
	Points       int
	PointsBefore int
	// Attempts is the number of submitted queries.
	Attempts   int
	Queries    []string
	StartedAt  time.Time
	FinishedAt time.Time
}

func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

func (o Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}
