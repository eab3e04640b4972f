package config

import (
	"bytes"
	"io"
	"os"
	"slices"
	"time"

	"github.com/bornholm/rewarder/pkg/attempt"
	"github.com/bornholm/rewarder/pkg/browser"
	"github.com/bornholm/rewarder/pkg/trend"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.yaml.in/yaml/v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	SourceGoogle    = "google"
	SourceGoogleRSS = "google_rss"
	SourceFile      = "file"

	ProviderBing       = "bing"
	ProviderDuckDuckGo = "duckduckgo"
	ProviderLLM        = "llm"
)

type Config struct {
	Searches int             `yaml:"searches" json:"searches" jsonschema:"minimum=1,description=Number of logical searches per session"`
	Profile  browser.Profile `yaml:"profile" json:"profile" jsonschema:"enum=desktop,enum=mobile,description=Browser profile"`
	Locale   trend.Locale    `yaml:"locale" json:"locale"`
	Attempts Attempts        `yaml:"attempts" json:"attempts"`
	Pacing   Pacing          `yaml:"pacing" json:"pacing"`
	Terms    Terms           `yaml:"terms" json:"terms"`
	Related  Related         `yaml:"related" json:"related"`
	Browser  Browser         `yaml:"browser" json:"browser"`
	HTTP     HTTP            `yaml:"http" json:"http"`
	History  History         `yaml:"history" json:"history"`
	DataDir  string          `yaml:"data_dir" json:"data_dir" jsonschema:"description=Directory holding the term pool and the search history"`
}

type Attempts struct {
	Max                int              `yaml:"max" json:"max" jsonschema:"minimum=1,description=Maximum submissions per logical search"`
	BaseDelayInSeconds int              `yaml:"base_delay_in_seconds" json:"base_delay_in_seconds" jsonschema:"minimum=0"`
	Strategy           attempt.Strategy `yaml:"strategy" json:"strategy" jsonschema:"type=string,enum=constant,enum=exponential"`
}

func (a Attempts) BaseDelay() time.Duration {
	return time.Duration(a.BaseDelayInSeconds) * time.Second
}

func (a Attempts) Engine() attempt.Config {
	return attempt.Config{
		MaxAttempts:   a.Max,
		BaseDelay:     a.BaseDelay(),
		Strategy:      a.Strategy,
		MaxEntryTries: attempt.DefaultMaxEntryTries,
	}
}

type Pacing struct {
	MinDelayInSeconds int `yaml:"min_delay_in_seconds" json:"min_delay_in_seconds" jsonschema:"minimum=0"`
	MaxDelayInSeconds int `yaml:"max_delay_in_seconds" json:"max_delay_in_seconds" jsonschema:"minimum=0"`
}

func (p Pacing) Bounds() (time.Duration, time.Duration) {
	return time.Duration(p.MinDelayInSeconds) * time.Second, time.Duration(p.MaxDelayInSeconds) * time.Second
}

type Terms struct {
	Store     string   `yaml:"store" json:"store" jsonschema:"description=Storage name of the term pool"`
	Sources   []string `yaml:"sources" json:"sources" jsonschema:"enum=google,enum=google_rss,enum=file"`
	SeedsFile string   `yaml:"seeds_file" json:"seeds_file"`
	Exclude   []string `yaml:"exclude" json:"exclude" jsonschema:"description=Glob patterns of terms to ignore"`
	MaxDays   int      `yaml:"max_days" json:"max_days" jsonschema:"minimum=1"`
}

type Related struct {
	Providers []string `yaml:"providers" json:"providers" jsonschema:"enum=bing,enum=duckduckgo,enum=llm"`
}

type Browser struct {
	Headless         bool   `yaml:"headless" json:"headless"`
	UserAgent        string `yaml:"user_agent" json:"user_agent"`
	Proxy            string `yaml:"proxy" json:"proxy" jsonschema:"description=Proxy server of the browser (defaults to HTTP_PROXY)"`
	TimeoutInSeconds int    `yaml:"timeout_in_seconds" json:"timeout_in_seconds" jsonschema:"minimum=1"`
}

// Options returns the browser options matching the configuration.
func (b Browser) Options(profile browser.Profile) []browser.OptionFunc {
	options := []browser.OptionFunc{
		browser.WithHeadless(b.Headless),
		browser.WithUserAgent(b.UserAgent),
		browser.WithProfile(profile),
		browser.WithTimeout(b.Timeout()),
	}

	if b.Proxy != "" {
		options = append(options, browser.WithProxy(b.Proxy))
	}

	return options
}

func (b Browser) Timeout() time.Duration {
	return time.Duration(b.TimeoutInSeconds) * time.Second
}

type HTTP struct {
	Impersonate bool `yaml:"impersonate" json:"impersonate" jsonschema:"description=Use a browser impersonating HTTP client for trends and suggestions"`
}

type History struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

func Default() *Config {
	return &Config{
		Searches: 30,
		Profile:  browser.ProfileDesktop,
		Locale: trend.Locale{
			Language: "en",
			Geo:      "US",
		},
		Attempts: Attempts{
			Max:                attempt.DefaultMaxAttempts,
			BaseDelayInSeconds: int(attempt.DefaultBaseDelay / time.Second),
			Strategy:           attempt.StrategyConstant,
		},
		Pacing: Pacing{
			MinDelayInSeconds: 10,
			MaxDelayInSeconds: 15,
		},
		Terms: Terms{
			Store:   "google_trends",
			Sources: []string{SourceGoogle},
			Exclude: []string{},
			MaxDays: 30,
		},
		Related: Related{
			Providers: []string{ProviderBing},
		},
		Browser: Browser{
			TimeoutInSeconds: 60,
		},
		HTTP: HTTP{
			Impersonate: true,
		},
		History: History{
			Enabled: true,
		},
		DataDir: ".",
	}
}

// Load reads the YAML file at path over the default values. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	conf := Default()

	if path == "" {
		return conf, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read config file '%s'", path)
	}

	if err := Decode(bytes.NewReader(data), conf); err != nil {
		return nil, errors.Wrapf(err, "could not parse config file '%s'", path)
	}

	return conf, nil
}

// Decode reads YAML from r into conf and validates the result. Unknown keys
// are rejected.
func Decode(r io.Reader, conf *Config) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	if err := decoder.Decode(conf); err != nil && !errors.Is(err, io.EOF) {
		return errors.WithStack(err)
	}

	if err := conf.Validate(); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (c *Config) Validate() error {
	if c.Searches < 1 {
		return errors.Wrap(ErrInvalidConfig, "searches must be greater than 0")
	}

	if c.Profile != browser.ProfileDesktop && c.Profile != browser.ProfileMobile {
		return errors.Wrapf(ErrInvalidConfig, "unknown profile '%s'", c.Profile)
	}

	if c.Attempts.Max < 1 {
		return errors.Wrap(ErrInvalidConfig, "attempts.max must be greater than 0")
	}

	if c.Attempts.BaseDelayInSeconds < 0 {
		return errors.Wrap(ErrInvalidConfig, "attempts.base_delay_in_seconds must not be negative")
	}

	if c.Pacing.MinDelayInSeconds < 0 || c.Pacing.MaxDelayInSeconds < c.Pacing.MinDelayInSeconds {
		return errors.Wrap(ErrInvalidConfig, "pacing delays must satisfy 0 <= min_delay_in_seconds <= max_delay_in_seconds")
	}

	if c.Terms.Store == "" {
		return errors.Wrap(ErrInvalidConfig, "terms.store must not be empty")
	}

	if len(c.Terms.Sources) == 0 {
		return errors.Wrap(ErrInvalidConfig, "terms.sources must not be empty")
	}

	for _, source := range c.Terms.Sources {
		if !slices.Contains([]string{SourceGoogle, SourceGoogleRSS, SourceFile}, source) {
			return errors.Wrapf(ErrInvalidConfig, "unknown terms source '%s'", source)
		}

		if source == SourceFile && c.Terms.SeedsFile == "" {
			return errors.Wrap(ErrInvalidConfig, "terms.seeds_file is required by the file source")
		}
	}

	if c.Terms.MaxDays < 1 {
		return errors.Wrap(ErrInvalidConfig, "terms.max_days must be greater than 0")
	}

	for _, provider := range c.Related.Providers {
		if !slices.Contains([]string{ProviderBing, ProviderDuckDuckGo, ProviderLLM}, provider) {
			return errors.Wrapf(ErrInvalidConfig, "unknown related terms provider '%s'", provider)
		}
	}

	if c.Browser.TimeoutInSeconds < 1 {
		return errors.Wrap(ErrInvalidConfig, "browser.timeout_in_seconds must be greater than 0")
	}

	return nil
}

// Schema returns the JSON schema of the configuration file.
func Schema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		FieldNameTag:   "yaml",
		DoNotReference: true,
	}

	schema := reflector.Reflect(&Config{})
	schema.Title = "rewarder configuration"

	return schema
}
