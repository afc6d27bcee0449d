package llm

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/jdholdren/newsroom/internal/newsroom"
)

var (
	//go:embed prompts/system.txt
	systemPrompt string
	//go:embed prompts/summarize.txt
	summarizePrompt string
	//go:embed prompts/categorize.txt
	categorizePrompt string
	//go:embed prompts/keywords.txt
	keywordsPrompt string
	//go:embed prompts/relevance.txt
	relevancePrompt string
	//go:embed prompts/translate.txt
	translatePrompt string
	//go:embed prompts/duplicate.txt
	duplicatePrompt string
)

// Values used when a stage can't get a usable answer out of the model.
const (
	FallbackScore       = 5
	FallbackCategory    = "General"
	FallbackExplanation = "relevance could not be assessed"
)

// Longest chunk of content sent along in a prompt.
const maxPromptContent = 4000

type (
	// Enricher turns raw items into enrichment results through the model.
	Enricher struct {
		llm Completer
		now func() time.Time
	}

	// Input is the item being enriched, after any translation.
	Input struct {
		Title      string
		Content    string
		Language   string
		Translated bool
		// Stages that already fell back before enrichment, like translation.
		Failures map[string]string
	}

	// Comparable is one side of a duplicate comparison.
	Comparable struct {
		Title   string
		Content string
	}

	DuplicateVerdict struct {
		Duplicate  bool    `json:"duplicate"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
)

func NewEnricher(c Completer) *Enricher {
	return &Enricher{
		llm: c,
		now: time.Now,
	}
}

func (e *Enricher) complete(ctx context.Context, stage Stage, schema map[string]any, prompt string, out validator) error {
	raw, err := e.llm.Complete(ctx, Request{
		Stage:     stage,
		System:    systemPrompt,
		Prompt:    prompt,
		Schema:    schema,
		MaxTokens: 1024,
	})
	if err != nil {
		return err
	}

	return decodeStrict(raw, out)
}

func (e *Enricher) Summarize(ctx context.Context, title, content string) (newsroom.Summary, error) {
	var out summaryOutput
	if err := e.complete(ctx, StageSummary, summarySchema, fmt.Sprintf(summarizePrompt, title, clip(content)), &out); err != nil {
		return newsroom.Summary{}, err
	}

	return newsroom.Summary{
		MainPoints:     *out.MainPoints,
		Implications:   *out.Implications,
		RelevanceScore: *out.RelevanceScore,
	}, nil
}

func (e *Enricher) Categorize(ctx context.Context, title, content string) ([]string, error) {
	var out categoriesOutput
	prompt := fmt.Sprintf(categorizePrompt, strings.Join(Categories, ", "), title, clip(content))
	if err := e.complete(ctx, StageCategories, categoriesSchema, prompt, &out); err != nil {
		return nil, err
	}

	cats := lo.Uniq(*out.Categories)
	if len(cats) > maxCategories {
		cats = cats[:maxCategories]
	}
	return cats, nil
}

func (e *Enricher) ExtractKeywords(ctx context.Context, title, content string) ([]string, error) {
	var out keywordsOutput
	if err := e.complete(ctx, StageKeywords, keywordsSchema, fmt.Sprintf(keywordsPrompt, title, clip(content)), &out); err != nil {
		return nil, err
	}

	return normalizeKeywords(*out.Keywords), nil
}

func (e *Enricher) AssessRelevance(ctx context.Context, title, content string) (newsroom.RelevanceAssessment, error) {
	var out relevanceOutput
	if err := e.complete(ctx, StageRelevance, relevanceSchema, fmt.Sprintf(relevancePrompt, title, clip(content)), &out); err != nil {
		return newsroom.RelevanceAssessment{}, err
	}

	return newsroom.RelevanceAssessment{
		Score:       *out.Score,
		Explanation: *out.Explanation,
	}, nil
}

// Translate renders text in the target language, given by its English name.
func (e *Enricher) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	var out translationOutput
	if err := e.complete(ctx, StageTranslate, translationSchema, fmt.Sprintf(translatePrompt, targetLanguage, clip(text)), &out); err != nil {
		return "", err
	}

	return strings.TrimSpace(*out.Translation), nil
}

// CompareDuplicate asks whether candidate and existing cover the same story.
func (e *Enricher) CompareDuplicate(ctx context.Context, candidate, existing Comparable) (DuplicateVerdict, error) {
	var out duplicateOutput
	prompt := fmt.Sprintf(duplicatePrompt,
		candidate.Title, clip(candidate.Content),
		existing.Title, clip(existing.Content),
	)
	if err := e.complete(ctx, StageDuplicate, duplicateSchema, prompt, &out); err != nil {
		return DuplicateVerdict{}, err
	}

	return DuplicateVerdict{
		Duplicate:  *out.Duplicate,
		Confidence: *out.Confidence,
		Reason:     *out.Reason,
	}, nil
}

// Enrich runs the four enrichment calls concurrently.
//
// It never fails: a stage whose call errors or whose output doesn't fit the
// schema gets its fallback value, and is listed in the result's Fallbacks
// with the reason in Failures.
func (e *Enricher) Enrich(ctx context.Context, in Input) newsroom.Enrichment {
	var (
		g errgroup.Group

		summary    newsroom.Summary
		categories []string
		keywords   []string
		relevance  newsroom.RelevanceAssessment

		summaryErr, categoriesErr, keywordsErr, relevanceErr error
	)
	g.Go(func() error {
		summary, summaryErr = e.Summarize(ctx, in.Title, in.Content)
		return nil
	})
	g.Go(func() error {
		categories, categoriesErr = e.Categorize(ctx, in.Title, in.Content)
		return nil
	})
	g.Go(func() error {
		keywords, keywordsErr = e.ExtractKeywords(ctx, in.Title, in.Content)
		return nil
	})
	g.Go(func() error {
		relevance, relevanceErr = e.AssessRelevance(ctx, in.Title, in.Content)
		return nil
	})
	_ = g.Wait()

	res := newsroom.Enrichment{
		Language:    in.Language,
		Translated:  in.Translated,
		ProcessedAt: e.now().UTC(),
		Failures:    map[string]string{},
	}
	for _, stage := range slices.Sorted(maps.Keys(in.Failures)) {
		res.Fallbacks = append(res.Fallbacks, stage)
		res.Failures[stage] = in.Failures[stage]
	}
	fallback := func(stage Stage, err error) {
		slog.WarnContext(ctx, "enrichment stage fell back to defaults", "stage", stage, "error", err)
		res.Fallbacks = append(res.Fallbacks, string(stage))
		res.Failures[string(stage)] = err.Error()
	}

	res.Summary = summary
	if summaryErr != nil {
		fallback(StageSummary, summaryErr)
		res.Summary = newsroom.Summary{MainPoints: []string{}, RelevanceScore: FallbackScore}
	}
	res.Categories = categories
	if categoriesErr != nil {
		fallback(StageCategories, categoriesErr)
		res.Categories = []string{FallbackCategory}
	}
	res.Keywords = keywords
	if keywordsErr != nil {
		fallback(StageKeywords, keywordsErr)
		res.Keywords = []string{}
	}
	res.Relevance = relevance
	if relevanceErr != nil {
		fallback(StageRelevance, relevanceErr)
		res.Relevance = newsroom.RelevanceAssessment{Score: FallbackScore, Explanation: FallbackExplanation}
	}
	if len(res.Failures) == 0 {
		res.Failures = nil
	}

	return res
}

func clip(s string) string {
	if len(s) <= maxPromptContent {
		return s
	}
	return strings.ToValidUTF8(s[:maxPromptContent], "")
}
