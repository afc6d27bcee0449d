// Package pipeline runs ingestion: fetch every source, drop duplicates, enrich
// what's left through the model, filter on relevance and store the rest.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goaway "github.com/TwiN/go-away"
	"github.com/samber/lo"

	"github.com/jdholdren/newsroom/internal/batch"
	"github.com/jdholdren/newsroom/internal/dedup"
	"github.com/jdholdren/newsroom/internal/fetch"
	"github.com/jdholdren/newsroom/internal/llm"
	"github.com/jdholdren/newsroom/internal/logger"
	"github.com/jdholdren/newsroom/internal/newsroom"
)

// Defaults for Config's zero values.
const (
	DefaultThreshold  = 3
	DefaultBatchSize  = 3
	DefaultBatchPause = time.Second
)

type (
	Sources interface {
		Sources() []newsroom.FeedSource
	}

	Fetcher interface {
		FetchAll(ctx context.Context, sources []newsroom.FeedSource) []fetch.Result
	}

	Deduper interface {
		Check(ctx context.Context, item newsroom.RawItem) (dedup.Verdict, error)
	}

	Enricher interface {
		Enrich(ctx context.Context, in llm.Input) newsroom.Enrichment
		Translate(ctx context.Context, text, targetLanguage string) (string, error)
	}

	// LanguageDetector decides whether an item needs translating first.
	LanguageDetector interface {
		NeedsTranslation(text string) (string, bool)
		TargetName() string
	}

	// Moderator stores flagged articles together with their queue item.
	Moderator interface {
		Hold(ctx context.Context, a newsroom.Article, reason string) (newsroom.Article, newsroom.ModerationItem, error)
	}

	Store interface {
		InsertArticle(ctx context.Context, a newsroom.Article) (newsroom.Article, error)
		InsertRun(ctx context.Context, r newsroom.Report) error
	}

	// Observer gets every item outcome and finished run, for metrics.
	Observer interface {
		ObserveItem(o newsroom.ItemOutcome)
		ObserveRun(r newsroom.Report)
	}

	// Config is taken as given: a zero Threshold keeps everything and a zero
	// BatchPause means no pause. Start from [DefaultConfig] for the defaults.
	Config struct {
		// Items scoring below this are dropped.
		Threshold int
		// Zero or less is DefaultBatchSize.
		BatchSize int
		// Wait between batches. Zero or less means none.
		BatchPause time.Duration
	}

	// Params are the pipeline's collaborators. Detector and Observer are optional.
	Params struct {
		Config    Config
		Sources   Sources
		Fetcher   Fetcher
		Deduper   Deduper
		Enricher  Enricher
		Detector  LanguageDetector
		Moderator Moderator
		Store     Store
		Observer  Observer
	}

	Pipeline struct {
		cfg       Config
		sources   Sources
		fetcher   Fetcher
		deduper   Deduper
		enricher  Enricher
		detector  LanguageDetector
		moderator Moderator
		store     Store
		observer  Observer
		now       func() time.Time
	}
)

type noopObserver struct{}

func (noopObserver) ObserveItem(newsroom.ItemOutcome) {}
func (noopObserver) ObserveRun(newsroom.Report)       {}

func DefaultConfig() Config {
	return Config{
		Threshold:  DefaultThreshold,
		BatchSize:  DefaultBatchSize,
		BatchPause: DefaultBatchPause,
	}
}

func New(p Params) *Pipeline {
	cfg := p.Config
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchPause < 0 {
		cfg.BatchPause = 0
	}

	obs := p.Observer
	if obs == nil {
		obs = noopObserver{}
	}

	return &Pipeline{
		cfg:       cfg,
		sources:   p.Sources,
		fetcher:   p.Fetcher,
		deduper:   p.Deduper,
		enricher:  p.Enricher,
		detector:  p.Detector,
		moderator: p.Moderator,
		store:     p.Store,
		observer:  obs,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run fetches every registered source, processes the items and records the
// run. The report is returned even if recording it fails.
func (p *Pipeline) Run(ctx context.Context) (newsroom.Report, error) {
	runID := newsroom.NewRunID()
	ctx = logger.Ctx(ctx, slog.String("run_id", runID))
	started := p.now()
	slog.InfoContext(ctx, "starting ingestion run")

	items, failures := p.Fetch(ctx, p.sources.Sources())
	report := p.Process(ctx, runID, items)
	report.StartedAt = started
	report.Failures = failures
	report.FetchFailures = len(failures)
	report.FinishedAt = p.now()

	if err := p.Record(ctx, report); err != nil {
		return report, err
	}

	return report, nil
}

// Fetch pulls the items of every source, collecting the sources that failed.
func (p *Pipeline) Fetch(ctx context.Context, sources []newsroom.FeedSource) ([]newsroom.RawItem, newsroom.SourceFailures) {
	var (
		items    []newsroom.RawItem
		failures newsroom.SourceFailures
	)
	for _, res := range p.fetcher.FetchAll(ctx, sources) {
		if res.Err != nil {
			failures = append(failures, newsroom.SourceFailure{Source: res.Source.Name, Error: res.Err.Error()})
			continue
		}
		items = append(items, res.Items...)
	}

	return items, failures
}

// Record stores a finished report and counts it.
func (p *Pipeline) Record(ctx context.Context, report newsroom.Report) error {
	p.observer.ObserveRun(report)
	slog.InfoContext(ctx, "ingestion run finished",
		"processed", report.Processed,
		"stored", report.Stored,
		"duplicates", report.Duplicates,
		"low_relevance", report.LowRelevance,
		"flagged", report.Flagged,
		"errors", report.Errors,
		"fetch_failures", report.FetchFailures,
	)

	if err := p.store.InsertRun(ctx, report); err != nil {
		return fmt.Errorf("error recording run: %w", err)
	}

	return nil
}

// Process takes a run's items through deduplication, enrichment, the
// relevance filter and storage. Items move through the stages one at a time
// and items in the same batch run concurrently.
//
// Failures are kept per item; Process itself never fails.
func (p *Pipeline) Process(ctx context.Context, runID string, items []newsroom.RawItem) newsroom.Report {
	ctx = logger.Ctx(ctx, slog.String("run_id", runID))
	report := newsroom.Report{ID: runID, StartedAt: p.now()}

	unique, dups := dedup.InRun(items)
	for _, item := range dups {
		p.add(&report, newsroom.ItemOutcome{
			Title:     item.Title,
			SourceURL: item.SourceURL,
			Stage:     newsroom.StageDedup,
			Outcome:   newsroom.OutcomeDuplicate,
			Reason:    "repeated within the run",
		})
	}

	outcomes := make([]newsroom.ItemOutcome, len(unique))
	_, err := batch.Run(ctx, lo.Range(len(unique)), p.cfg.BatchSize, p.cfg.BatchPause, func(ctx context.Context, i int) error {
		outcomes[i] = p.processItem(ctx, runID, unique[i])
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "run stopped before every item was processed", "error", err)
	}
	for _, o := range outcomes {
		// Never reached when the run was cancelled
		if o.Outcome == "" {
			continue
		}
		p.add(&report, o)
	}
	report.FinishedAt = p.now()

	return report
}

func (p *Pipeline) add(report *newsroom.Report, o newsroom.ItemOutcome) {
	report.Add(o)
	p.observer.ObserveItem(o)
}

func (p *Pipeline) processItem(ctx context.Context, runID string, item newsroom.RawItem) newsroom.ItemOutcome {
	ctx = logger.Ctx(ctx, slog.String("source", item.SourceName), slog.String("item_url", item.SourceURL))
	out := newsroom.ItemOutcome{
		Title:     item.Title,
		SourceURL: item.SourceURL,
	}
	fail := func(stage string, err error) newsroom.ItemOutcome {
		slog.ErrorContext(ctx, "error processing item", "stage", stage, "error", err)
		out.Stage = stage
		out.Outcome = newsroom.OutcomeError
		out.Error = err.Error()
		return out
	}

	verdict, err := p.deduper.Check(ctx, item)
	if err != nil {
		return fail(newsroom.StageDedup, err)
	}
	if verdict.Duplicate {
		out.Stage = newsroom.StageDedup
		out.Outcome = newsroom.OutcomeDuplicate
		out.ArticleID = verdict.MatchingID
		out.Reason = verdict.Reason
		return out
	}

	in := p.translate(ctx, item)
	enrichment := p.enricher.Enrich(ctx, in)
	out.Fallbacks = enrichment.Fallbacks

	if score := enrichment.Relevance.Score; score < p.cfg.Threshold {
		out.Stage = newsroom.StageRelevance
		out.Outcome = newsroom.OutcomeLowRelevance
		out.Reason = fmt.Sprintf("relevance %d below threshold %d", score, p.cfg.Threshold)
		return out
	}

	// Dedup looks titles up as they come off the feed, so the normalized
	// title is the untranslated one.
	article := newsroom.Article{
		IdempotencyKey:       newsroom.IdempotencyKey(item.SourceURL),
		RunID:                runID,
		Title:                in.Title,
		TitleNormalized:      newsroom.NormalizeTitle(item.Title),
		Content:              in.Content,
		Summary:              enrichment.Summary,
		Categories:           enrichment.Categories,
		Keywords:             enrichment.Keywords,
		RelevanceScore:       enrichment.Relevance.Score,
		RelevanceExplanation: enrichment.Relevance.Explanation,
		Language:             enrichment.Language,
		SourceURL:            item.SourceURL,
		SourceName:           item.SourceName,
		ImageURL:             item.ImageURL,
		Status:               newsroom.ArticleStatusPublished,
		PublishedAt:          item.PublishedAt,
	}

	if goaway.IsProfane(in.Title) || goaway.IsProfane(in.Content) {
		const reason = "flagged by the profanity filter"
		held, _, err := p.moderator.Hold(ctx, article, reason)
		if errors.Is(err, newsroom.ErrConflict) {
			out.Stage = newsroom.StagePersist
			out.Outcome = newsroom.OutcomeDuplicate
			out.Reason = "already stored"
			return out
		}
		if err != nil {
			return fail(newsroom.StageModerate, err)
		}
		out.ArticleID = held.ID
		out.Stage = newsroom.StageModerate
		out.Outcome = newsroom.OutcomeFlagged
		out.Reason = reason
		return out
	}

	article, err = p.store.InsertArticle(ctx, article)
	if errors.Is(err, newsroom.ErrConflict) {
		out.Stage = newsroom.StagePersist
		out.Outcome = newsroom.OutcomeDuplicate
		out.Reason = "already stored"
		return out
	}
	if err != nil {
		return fail(newsroom.StagePersist, err)
	}
	out.ArticleID = article.ID
	out.Stage = newsroom.StagePersist
	out.Outcome = newsroom.OutcomeStored
	return out
}

// Translates the item when it isn't in the target language. On failure the
// original text is kept and the failure goes along as a fallback.
func (p *Pipeline) translate(ctx context.Context, item newsroom.RawItem) llm.Input {
	in := llm.Input{Title: item.Title, Content: item.Content}
	if p.detector == nil {
		return in
	}

	lang, needs := p.detector.NeedsTranslation(item.Title + "\n" + item.Content)
	in.Language = lang
	if !needs {
		return in
	}

	target := p.detector.TargetName()
	title, err := p.enricher.Translate(ctx, item.Title, target)
	if err == nil {
		var content string
		content, err = p.enricher.Translate(ctx, item.Content, target)
		if err == nil {
			in.Title, in.Content, in.Translated = title, content, true
			return in
		}
	}

	slog.WarnContext(ctx, "translation failed, enriching original text", "language", lang, "error", err)
	in.Failures = map[string]string{newsroom.StageTranslate: err.Error()}
	return in
}

// RunEvery runs the pipeline right away and then on every tick until the
// context is done. A failed run is logged and the next one goes ahead.
func (p *Pipeline) RunEvery(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.Run(ctx); err != nil {
			slog.ErrorContext(ctx, "error running ingestion", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
