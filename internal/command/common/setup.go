package common

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bornholm/genai/llm/circuitbreaker"
	"github.com/bornholm/genai/llm/provider"
	"github.com/bornholm/genai/llm/provider/env"
	"github.com/bornholm/genai/llm/ratelimit"
	"github.com/bornholm/genai/llm/retry"
	"github.com/bornholm/rewarder/internal/config"
	"github.com/bornholm/rewarder/pkg/history"
	"github.com/bornholm/rewarder/pkg/pool"
	"github.com/bornholm/rewarder/pkg/pool/bolt"
	"github.com/bornholm/rewarder/pkg/pool/memory"
	"github.com/bornholm/rewarder/pkg/related"
	"github.com/bornholm/rewarder/pkg/related/bing"
	"github.com/bornholm/rewarder/pkg/related/duckduckgo"
	"github.com/bornholm/rewarder/pkg/scraper"
	"github.com/bornholm/rewarder/pkg/scraper/surf"
	"github.com/bornholm/rewarder/pkg/session"
	"github.com/bornholm/rewarder/pkg/trend"
	"github.com/bornholm/rewarder/pkg/trend/file"
	"github.com/bornholm/rewarder/pkg/trend/google"
	"github.com/bornholm/rewarder/pkg/trend/meta"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	_ "github.com/bornholm/genai/llm/provider/all"

	relatedgenai "github.com/bornholm/rewarder/pkg/related/genai"
)

const (
	storeLockTimeout = 5 * time.Second
	historyDirName   = "history.bleve"
	llmEnvPrefix     = "REWARDER_LLM_"
)

func ConfigFlag() cli.Flag {
	return &cli.StringFlag{
		Name:      "config",
		Aliases:   []string{"c"},
		EnvVars:   []string{"REWARDER_CONFIG"},
		Usage:     "Path to the YAML configuration file",
		TakesFile: true,
	}
}

func LoadConfig(cliCtx *cli.Context) (*config.Config, error) {
	conf, err := config.Load(cliCtx.String("config"))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return conf, nil
}

// NewScraper returns the HTTP client used by the trend and related terms
// providers.
func NewScraper(conf *config.Config) scraper.Scraper {
	timeout := conf.Browser.Timeout()

	if conf.HTTP.Impersonate {
		return surf.NewScraper(timeout)
	}

	options := []scraper.OptionFunc{
		scraper.WithAcceptLanguage(conf.Locale.Language),
	}

	if conf.Browser.UserAgent != "" {
		options = append(options, scraper.WithUserAgent(conf.Browser.UserAgent))
	}

	return scraper.NewHTTPScraper(&http.Client{Timeout: timeout}, options...)
}

func NewTrendSource(conf *config.Config, s scraper.Scraper) (trend.Source, error) {
	sources := make([]trend.Source, 0, len(conf.Terms.Sources))

	for _, name := range conf.Terms.Sources {
		switch name {
		case config.SourceGoogle:
			sources = append(sources, trend.WithRetry(google.NewDailySource(s, ""), 3, 2*time.Second))
		case config.SourceGoogleRSS:
			sources = append(sources, google.NewRSSSource("", conf.Browser.UserAgent))
		case config.SourceFile:
			sources = append(sources, file.NewSource(conf.Terms.SeedsFile))
		default:
			return nil, errors.Wrapf(config.ErrInvalidConfig, "unknown terms source '%s'", name)
		}
	}

	if len(sources) == 1 {
		return sources[0], nil
	}

	return meta.NewSource(sources...), nil
}

// NewRefill returns the function rebuilding the term pool from the
// configured trend sources.
func NewRefill(conf *config.Config, s scraper.Scraper) (pool.RefillFunc, error) {
	source, err := NewTrendSource(conf, s)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	collector, err := trend.NewCollector(source, conf.Locale,
		trend.WithExclude(conf.Terms.Exclude...),
		trend.WithMaxDays(conf.Terms.MaxDays),
	)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return collector.Collect, nil
}

func NewRelatedProvider(ctx context.Context, conf *config.Config, s scraper.Scraper) (related.Provider, error) {
	providers := make([]related.Provider, 0, len(conf.Related.Providers))

	for _, name := range conf.Related.Providers {
		switch name {
		case config.ProviderBing:
			providers = append(providers, bing.NewProvider(s, ""))
		case config.ProviderDuckDuckGo:
			providers = append(providers, duckduckgo.NewProvider(s, ""))
		case config.ProviderLLM:
			llmProvider, err := newLLMProvider(ctx)
			if err != nil {
				return nil, errors.WithStack(err)
			}

			providers = append(providers, llmProvider)
		default:
			return nil, errors.Wrapf(config.ErrInvalidConfig, "unknown related terms provider '%s'", name)
		}
	}

	return related.NewFallback(providers...), nil
}

func newLLMProvider(ctx context.Context) (*relatedgenai.Provider, error) {
	baseClient, err := provider.Create(ctx, env.With(llmEnvPrefix, ".env"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create llm client")
	}

	retryClient := retry.Wrap(baseClient, time.Second, 3)

	rateLimitedClient := ratelimit.Wrap(retryClient, time.Minute/30, 1)

	resilientClient := circuitbreaker.NewClient(rateLimitedClient, 5, 5*time.Second)

	return relatedgenai.NewProvider(resilientClient, 0), nil
}

// PoolSize returns the number of terms collected on refresh.
func PoolSize(conf *config.Config) int {
	return max(conf.Searches, session.DefaultPoolSize)
}

// OpenPool opens the persisted term pool, or an empty in-memory one when
// ephemeral is true.
func OpenPool(ctx context.Context, conf *config.Config, ephemeral bool) (*pool.Pool, error) {
	var store pool.Store

	if ephemeral {
		store = memory.NewStore()
	} else {
		if err := os.MkdirAll(conf.DataDir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "could not create data directory '%s'", conf.DataDir)
		}

		boltStore, err := bolt.Open(conf.DataDir, conf.Terms.Store, storeLockTimeout)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		store = boltStore
	}

	p, err := pool.Open(ctx, store)
	if err != nil {
		if closeErr := store.Close(); closeErr != nil {
			slog.WarnContext(ctx, "could not close term store", slog.Any("error", errors.WithStack(closeErr)))
		}

		return nil, errors.WithStack(err)
	}

	return p, nil
}

func OpenHistory(conf *config.Config) (*history.Index, error) {
	if err := os.MkdirAll(conf.DataDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "could not create data directory '%s'", conf.DataDir)
	}

	index, err := history.Open(filepath.Join(conf.DataDir, historyDirName))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return index, nil
}
