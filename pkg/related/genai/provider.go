package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bornholm/genai/llm"
	"github.com/bornholm/rewarder/pkg/related"
	"github.com/pkg/errors"
)

const systemPrompt = `You generate web search queries a curious person could type after searching for a given topic.
Answer only with a JSON object of the form {"queries": ["...", "..."]}.
Queries must be short, in the language of the topic, and must not repeat the topic verbatim.`

var ErrMalformedReply = errors.New("no queries object in model reply")

type queriesResponse struct {
	Queries []string `json:"queries"`
}

// Provider asks a language model for query variants.
type Provider struct {
	client llm.ChatCompletionClient
	count  int
}

// RelatedTerms implements related.Provider.
func (p *Provider) RelatedTerms(ctx context.Context, word string) ([]string, error) {
	messages := []llm.Message{
		llm.NewMessage(llm.RoleSystem, systemPrompt),
		llm.NewMessage(llm.RoleUser, fmt.Sprintf("Topic: %s\nNumber of queries: %d", word, p.count)),
	}

	response, err := p.client.ChatCompletion(ctx,
		llm.WithMessages(messages...),
		llm.WithTemperature(0.7),
	)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	terms, err := parseQueries(response.Message(), p.count)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	slog.DebugContext(ctx, "generated related queries", slog.String("word", word), slog.Any("queries", terms))

	return terms, nil
}

// parseQueries extracts at most count non blank queries from the model
// reply.
func parseQueries(message llm.Message, count int) ([]string, error) {
	results, err := llm.ParseJSON[queriesResponse](message)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse related queries response")
	}

	if len(results) == 0 {
		return nil, errors.WithStack(ErrMalformedReply)
	}

	terms := make([]string, 0, len(results[0].Queries))
	for _, q := range results[0].Queries {
		if q = strings.TrimSpace(q); q != "" {
			terms = append(terms, q)
		}
	}

	if len(terms) > count {
		terms = terms[:count]
	}

	return terms, nil
}

func NewProvider(client llm.ChatCompletionClient, count int) *Provider {
	if count <= 0 {
		count = 8
	}

	return &Provider{
		client: client,
		count:  count,
	}
}

var _ related.Provider = &Provider{}
