// Package app builds the ingestion pipeline and everything it hangs off of
// from the shared configuration the binaries read.
package app

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jdholdren/newsroom/internal/database"
	"github.com/jdholdren/newsroom/internal/dedup"
	"github.com/jdholdren/newsroom/internal/fetch"
	"github.com/jdholdren/newsroom/internal/llm"
	"github.com/jdholdren/newsroom/internal/metrics"
	"github.com/jdholdren/newsroom/internal/moderation"
	"github.com/jdholdren/newsroom/internal/pipeline"
	"github.com/jdholdren/newsroom/internal/registry"
)

// Config is what every binary needs to run the pipeline.
type Config struct {
	Database     string `env:"DATABASE, default=newsroom.db"`
	RegistryFile string `env:"REGISTRY_FILE"`

	AnthropicAPIKey   string `env:"ANTHROPIC_API_KEY, required"`
	Model             string `env:"LLM_MODEL"`
	LLMPerMinute      int    `env:"LLM_REQUESTS_PER_MINUTE, default=50"`
	LLMBurst          int    `env:"LLM_BURST, default=5"`
	LLMRetries        uint64 `env:"LLM_RETRIES, default=2"`
	TargetLanguage    string `env:"TARGET_LANGUAGE, default=en"`
	SemanticDedupSize int    `env:"SEMANTIC_DEDUP_RECENT, default=10"`

	// Passed through as is: 0 keeps every item and a BATCH_PAUSE of 0 turns
	// the pause off.
	RelevanceThreshold int           `env:"RELEVANCE_THRESHOLD, default=3"`
	BatchSize          int           `env:"BATCH_SIZE, default=3"`
	BatchPause         time.Duration `env:"BATCH_PAUSE, default=1s"`

	FetchTimeout   time.Duration `env:"FETCH_TIMEOUT, default=10s"`
	FetchRetries   uint64        `env:"FETCH_RETRIES, default=2"`
	MaxItems       int           `env:"MAX_ITEMS_PER_FEED, default=10"`
	FetchUserAgent string        `env:"FETCH_USER_AGENT"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
	LogLevel     string `env:"LOG_LEVEL, default=info"`
}

// Deps is the built graph. The binaries pick what they need from it.
type Deps struct {
	Registry registry.Registry
	Repo     database.Repo
	Metrics  *metrics.Metrics
	Fetcher  *fetch.Fetcher
	Pipeline *pipeline.Pipeline
}

// Build wires the pipeline on top of an already migrated database.
func Build(cfg Config, dbx *sqlx.DB) (Deps, error) {
	reg, err := registry.Load(cfg.RegistryFile)
	if err != nil {
		return Deps{}, fmt.Errorf("error loading registry: %w", err)
	}

	detector, err := llm.NewDetector(cfg.TargetLanguage, llm.DefaultLanguages)
	if err != nil {
		return Deps{}, fmt.Errorf("error creating language detector: %w", err)
	}

	var (
		repo    = database.New(dbx)
		m       = metrics.New()
		fetcher = fetch.New(fetch.Config{
			Timeout:    cfg.FetchTimeout,
			MaxItems:   cfg.MaxItems,
			MaxRetries: cfg.FetchRetries,
			BatchSize:  cfg.BatchSize,
			BatchPause: cfg.BatchPause,
			UserAgent:  cfg.FetchUserAgent,
		})
		client = llm.NewClient(cfg.AnthropicAPIKey)
		claude = llm.NewClaude(&client, llm.NewLimiter(cfg.LLMPerMinute, cfg.LLMBurst),
			llm.WithModel(cfg.Model),
			llm.WithRetries(cfg.LLMRetries, time.Second),
			llm.WithObserver(m.ObserveLLMCall),
		)
		enricher = llm.NewEnricher(claude)
	)

	p := pipeline.New(pipeline.Params{
		Config: pipeline.Config{
			Threshold:  cfg.RelevanceThreshold,
			BatchSize:  cfg.BatchSize,
			BatchPause: cfg.BatchPause,
		},
		Sources:   reg,
		Fetcher:   fetcher,
		Deduper:   dedup.New(repo, enricher, dedup.WithRecent(cfg.SemanticDedupSize)),
		Enricher:  enricher,
		Detector:  detector,
		Moderator: moderation.NewQueue(repo),
		Store:     repo,
		Observer:  m,
	})

	return Deps{
		Registry: reg,
		Repo:     repo,
		Metrics:  m,
		Fetcher:  fetcher,
		Pipeline: p,
	}, nil
}
