package file

import (
	"context"
	"os"
	"time"

	"github.com/bornholm/rewarder/pkg/trend"
	"github.com/pkg/errors"
	"go.yaml.in/yaml/v3"
)

// Seeds is the document format of a seed file:
//
//	terms:
//	  - weather
//	  - title: stock market
//	    related: [dow jones, nasdaq]
type Seeds struct {
	Terms []Seed `yaml:"terms"`
}

type Seed struct {
	Title   string   `yaml:"title"`
	Related []string `yaml:"related,omitempty"`
}

// UnmarshalYAML accepts either a plain string or a mapping.
func (s *Seed) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Title = node.Value
		return nil
	}

	type plain Seed
	var p plain
	if err := node.Decode(&p); err != nil {
		return errors.WithStack(err)
	}

	*s = Seed(p)

	return nil
}

// Source serves a static list of terms read from a YAML file. The file is read
// on each call and the requested day is ignored.
type Source struct {
	path string
}

// DailyTrends implements trend.Source.
func (s *Source) DailyTrends(ctx context.Context, locale trend.Locale, day time.Time) ([]trend.Trend, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read seed file '%s'", s.path)
	}

	var seeds Seeds
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, trend.ParseError(errors.Wrapf(err, "could not parse seed file '%s'", s.path))
	}

	trends := make([]trend.Trend, 0, len(seeds.Terms))
	for _, seed := range seeds.Terms {
		trends = append(trends, trend.Trend{
			Title:          seed.Title,
			RelatedQueries: seed.Related,
		})
	}

	return trends, nil
}

func NewSource(path string) *Source {
	return &Source{path: path}
}

var _ trend.Source = &Source{}
