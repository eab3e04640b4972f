package trend

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNetwork = errors.New("network error")
	ErrParse   = errors.New("parse error")
)

type Locale struct {
	Language string `yaml:"language" json:"language"`
	Geo      string `yaml:"geo" json:"geo"`
}

type Trend struct {
	Title          string
	RelatedQueries []string
}

// Source returns the trending searches of a given day.
type Source interface {
	DailyTrends(ctx context.Context, locale Locale, day time.Time) ([]Trend, error)
}

// NetworkError marks err as a transport failure.
func NetworkError(err error) error {
	return &classifiedError{kind: ErrNetwork, err: err}
}

// ParseError marks err as an unexpected payload.
func ParseError(err error) error {
	return &classifiedError{kind: ErrParse, err: err}
}

type classifiedError struct {
	kind error
	err  error
}

func (e *classifiedError) Error() string {
	return e.kind.Error() + ": " + e.err.Error()
}

func (e *classifiedError) Unwrap() []error {
	return []error{e.kind, e.err}
}
