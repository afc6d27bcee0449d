// Package llm talks to the language model: enrichment of items, translation
// and duplicate comparisons.
//
// Every call asks for output constrained to a JSON schema and decodes it
// strictly. Anything that doesn't match is an [ErrSchemaMismatch].
package llm

import (
	"context"
	"errors"
)

// ErrSchemaMismatch is returned when the model's output doesn't fit the
// schema it was asked for.
var ErrSchemaMismatch = errors.New("llm output does not match schema")

// Stage names a kind of call, used for logging, metrics and fallbacks.
type Stage string

const (
	StageSummary    Stage = "summary"
	StageCategories Stage = "categories"
	StageKeywords   Stage = "keywords"
	StageRelevance  Stage = "relevance"
	StageTranslate  Stage = "translate"
	StageDuplicate  Stage = "duplicate"
)

type (
	// Request is a single round trip to the model.
	Request struct {
		Stage     Stage
		System    string
		Prompt    string
		Schema    map[string]any
		MaxTokens int64
	}

	// Completer sends a request to a model and returns its raw text output.
	Completer interface {
		Complete(ctx context.Context, req Request) (string, error)
	}
)
